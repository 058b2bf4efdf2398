package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fentz26/easel/internal/models"
)

// drawCommand is the payload delivered to a client for one task.
type drawCommand struct {
	Type   string `json:"type"`
	TaskID string `json:"task_id"`
	Prompt string `json:"prompt"`
}

// Dispatch runs one end-to-end draw job: validate the prompt, run a
// housekeeping pass, bind an idle client, deliver the command, then
// wait for the task's terminal state. The returned result always
// carries a caller-visible status; the error is one of the package
// sentinels (or a context error) describing why status is "error".
func (d *Dispatcher) Dispatch(ctx context.Context, prompt string) (models.DispatchResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return errorResult("prompt must not be empty", nil), ErrEmptyPrompt
	}

	// Opportunistic housekeeping keeps state bounded without a
	// background timer.
	d.Tick()

	task, conn, err := d.bindIdleClient(prompt)
	if err != nil {
		return errorResult("no idle clients", nil), err
	}

	payload, err := json.Marshal(drawCommand{Type: "drawImage", TaskID: task.ID, Prompt: prompt})
	if err != nil {
		d.ForceError(task.ID)
		return errorResult("internal encoding error", nil), fmt.Errorf("encode draw command: %w", err)
	}

	if err := conn.Send(payload); err != nil {
		log.Printf("Delivery to client %s failed: %v", task.ClientID, err)
		d.ForceError(task.ID)
		return errorResult("delivery failed", nil), ErrDeliveryFailed
	}
	log.Printf("Dispatched task %s to client %s", task.ID, task.ClientID)

	return d.await(ctx, task.ID, task.Timeout)
}

// bindIdleClient selects an idle client, creates the task and marks the
// client busy as one unit under the lock, so no client is ever busy
// without a bound task or vice versa.
func (d *Dispatcher) bindIdleClient(prompt string) (models.Task, Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.selectIdleLocked()
	if !ok {
		return models.Task{}, nil, ErrNoIdleClients
	}
	t := d.createTaskLocked(prompt, c.id, d.cfg.TaskTimeout)
	d.markBusyLocked(c, t.ID)
	return copyTask(t), c.conn, nil
}

// await polls the task until it reaches a terminal state, the timeout
// elapses or the caller cancels. Whatever path exits, the task is left
// terminal and its client released; the deferred sweep also covers
// abnormal exits.
func (d *Dispatcher) await(ctx context.Context, taskID string, timeout time.Duration) (models.DispatchResult, error) {
	defer func() {
		if t, ok := d.GetTask(taskID); ok && !t.Status.Terminal() {
			d.ForceError(taskID)
		}
	}()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// Always re-fetch: the task can go terminal between polls.
		t, ok := d.GetTask(taskID)
		if !ok {
			return errorResult("task no longer tracked", nil), ErrClientLost
		}
		switch t.Status {
		case models.TaskStatusCompleted:
			return models.DispatchResult{Status: "success", ImageURLs: t.ResultURLs}, nil
		case models.TaskStatusTimeout:
			return errorResult("timeout waiting for images", t.ResultURLs), ErrTimeout
		case models.TaskStatusError:
			return errorResult("client lost", t.ResultURLs), ErrClientLost
		}

		select {
		case <-ctx.Done():
			d.ForceError(taskID)
			return errorResult("dispatch canceled", partialURLs(d, taskID)), ctx.Err()
		case <-deadline.C:
			d.ForceTimeout(taskID)
			return errorResult("timeout waiting for images", partialURLs(d, taskID)), ErrTimeout
		case <-ticker.C:
		}
	}
}

func partialURLs(d *Dispatcher, taskID string) []string {
	if t, ok := d.GetTask(taskID); ok {
		return t.ResultURLs
	}
	return nil
}

func errorResult(message string, received []string) models.DispatchResult {
	return models.DispatchResult{Status: "error", Message: message, ReceivedURLs: received}
}
