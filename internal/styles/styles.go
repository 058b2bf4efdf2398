// Package styles provides colored console output for operator-facing
// log lines.
package styles

import (
	"fmt"
	"log"

	"github.com/charmbracelet/lipgloss"
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6EC4F4"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6EF4A1"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F45E6E"))
)

// Infof logs an informational line in the info color.
func Infof(format string, a ...interface{}) {
	log.Print(infoStyle.Render(fmt.Sprintf(format, a...)))
}

// Successf logs a line in the success color.
func Successf(format string, a ...interface{}) {
	log.Print(successStyle.Render(fmt.Sprintf(format, a...)))
}

// Errorf logs a line in the error color.
func Errorf(format string, a ...interface{}) {
	log.Print(errorStyle.Render(fmt.Sprintf(format, a...)))
}

// Sprintf renders text in the named style without logging it.
func Sprintf(style string, format string, a ...interface{}) string {
	text := fmt.Sprintf(format, a...)
	switch style {
	case "error":
		return errorStyle.Render(text)
	case "success":
		return successStyle.Render(text)
	default:
		return infoStyle.Render(text)
	}
}
