package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/easel/internal/models"
	"github.com/fentz26/easel/internal/styles"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connected clients and in-flight tasks",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(apiAddr + "/tools/connection_status")
	if err != nil {
		return fmt.Errorf("query tool API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tool API returned %s", resp.Status)
	}

	var report models.StatusReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	fmt.Println(styles.Sprintf("info", "Clients: %d", report.TotalClients))
	for _, c := range report.Clients {
		line := fmt.Sprintf("  %s  %s  connected=%t  last_active=%s",
			c.ID, c.Status, c.Connected, c.LastActive.Format(time.RFC3339))
		if c.CurrentTaskID != "" {
			line += "  task=" + c.CurrentTaskID
		}
		if c.Status == models.ClientStatusBusy {
			fmt.Println(styles.Sprintf("error", "%s", line))
		} else {
			fmt.Println(styles.Sprintf("success", "%s", line))
		}
	}

	fmt.Println(styles.Sprintf("info", "Tasks: %d", report.TotalTasks))
	for _, t := range report.Tasks {
		fmt.Printf("  %s  %s  client=%s  images=%d  created=%s\n",
			t.ID, t.Status, t.ClientID, t.ImageCount, t.CreatedAt.Format(time.RFC3339))
	}
	return nil
}
