// Package models defines the core domain types for Easel.
package models

import "time"

// ClientStatus represents the availability of a connected draw client.
type ClientStatus string

const (
	ClientStatusIdle ClientStatus = "idle"
	ClientStatusBusy ClientStatus = "busy"
)

// TaskStatus represents the current state of a dispatched draw task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusTimeout   TaskStatus = "timeout"
	TaskStatusError     TaskStatus = "error"
)

// Terminal reports whether the status permits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusTimeout || s == TaskStatusError
}

// Task represents one dispatched draw job and its lifecycle record.
// ClientID is fixed at creation; the client may disconnect before the
// task reaches a terminal state.
type Task struct {
	ID         string        `json:"id"`
	Prompt     string        `json:"prompt"`
	ClientID   string        `json:"client_id"`
	Status     TaskStatus    `json:"status"`
	Timeout    time.Duration `json:"-"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	ResultURLs []string      `json:"result_urls,omitempty"`
}

// ClientInfo is a point-in-time snapshot of a registered client.
type ClientInfo struct {
	ID            string       `json:"id"`
	Connected     bool         `json:"connected"`
	Status        ClientStatus `json:"status"`
	CurrentTaskID string       `json:"current_task_id,omitempty"`
	LastActive    time.Time    `json:"last_active"`
	EndpointHint  string       `json:"endpoint_hint,omitempty"`
}

// TaskInfo is a point-in-time snapshot of a task for status reporting.
type TaskInfo struct {
	ID         string     `json:"id"`
	ClientID   string     `json:"client_id"`
	Status     TaskStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ImageCount int        `json:"image_count"`
}

// StatusReport describes the full dispatcher state for the
// connection-status tool.
type StatusReport struct {
	TotalClients int          `json:"total_clients"`
	Clients      []ClientInfo `json:"clients"`
	TotalTasks   int          `json:"total_tasks"`
	Tasks        []TaskInfo   `json:"tasks"`
}

// DispatchResult is the caller-visible outcome of one dispatch call.
type DispatchResult struct {
	Status       string   `json:"status"`
	Message      string   `json:"message,omitempty"`
	ImageURLs    []string `json:"image_urls,omitempty"`
	ReceivedURLs []string `json:"received_urls,omitempty"`
}
