package dispatch

import (
	"log"
	"strings"
	"time"

	"github.com/fentz26/easel/internal/models"
	"github.com/google/uuid"
)

// CreateTask allocates a pending task bound to clientID. A zero timeout
// falls back to the configured default.
func (d *Dispatcher) CreateTask(prompt, clientID string, timeout time.Duration) (models.Task, error) {
	if strings.TrimSpace(prompt) == "" {
		return models.Task{}, ErrEmptyPrompt
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return copyTask(d.createTaskLocked(prompt, clientID, timeout)), nil
}

func (d *Dispatcher) createTaskLocked(prompt, clientID string, timeout time.Duration) *models.Task {
	if timeout <= 0 {
		timeout = d.cfg.TaskTimeout
	}
	t := &models.Task{
		ID:        uuid.New().String(),
		Prompt:    prompt,
		ClientID:  clientID,
		Status:    models.TaskStatusPending,
		Timeout:   timeout,
		CreatedAt: time.Now(),
	}
	d.tasks[t.ID] = t
	return t
}

// GetTask returns a copy of the task, or false if it is not tracked.
func (d *Dispatcher) GetTask(taskID string) (models.Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tasks[taskID]
	if !ok {
		return models.Task{}, false
	}
	return copyTask(t), true
}

// Complete marks the task completed with the collected image URLs and
// returns its client to idle. Silently ignored if the task is absent or
// already terminal: the first terminal transition wins.
func (d *Dispatcher) Complete(taskID string, urls []string) {
	d.transition(taskID, models.TaskStatusCompleted, urls)
}

// ForceTimeout terminalizes the task as timed out. Same idempotency
// rule as Complete.
func (d *Dispatcher) ForceTimeout(taskID string) {
	d.transition(taskID, models.TaskStatusTimeout, nil)
}

// ForceError terminalizes the task as errored. Same idempotency rule
// as Complete.
func (d *Dispatcher) ForceError(taskID string) {
	d.transition(taskID, models.TaskStatusError, nil)
}

func (d *Dispatcher) transition(taskID string, status models.TaskStatus, urls []string) {
	d.mu.Lock()
	t, ok := d.tasks[taskID]
	if !ok {
		d.mu.Unlock()
		log.Printf("Task %s not tracked, %s dropped", taskID, status)
		return
	}
	if !d.terminalizeLocked(t, status, urls) {
		d.mu.Unlock()
		return
	}
	done := copyTask(t)
	d.mu.Unlock()
	d.record(done)
}

// terminalizeLocked applies the terminal transition and releases the
// owning client if it is still bound to this task. Returns false when
// the task was already terminal.
func (d *Dispatcher) terminalizeLocked(t *models.Task, status models.TaskStatus, urls []string) bool {
	if t.Status.Terminal() {
		return false
	}
	t.Status = status
	if len(urls) > 0 {
		t.ResultURLs = append(t.ResultURLs, urls...)
	}
	now := time.Now()
	t.FinishedAt = &now

	if c, ok := d.clients[t.ClientID]; ok && c.currentTaskID == t.ID {
		d.markIdleLocked(c)
	}
	return true
}

// CompleteForClient resolves an inbound image-result event to the
// client's bound task. Unmatched events are logged and dropped; that is
// not an error condition, just a late or stray result.
func (d *Dispatcher) CompleteForClient(clientID string, urls []string) bool {
	d.mu.Lock()
	c, ok := d.clients[clientID]
	if !ok || c.currentTaskID == "" {
		d.mu.Unlock()
		log.Printf("Dropping image event from client %s: no bound task (%d urls)", clientID, len(urls))
		return false
	}
	c.lastActive = time.Now()
	taskID := c.currentTaskID
	d.mu.Unlock()

	d.Complete(taskID, urls)
	return true
}

// PruneOlderThan deletes every task older than maxAge regardless of
// status and returns the number removed. Clients still bound to a
// pruned task are released first.
func (d *Dispatcher) PruneOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	d.mu.Lock()
	removed := 0
	for id, t := range d.tasks {
		if !t.CreatedAt.Before(cutoff) {
			continue
		}
		if c, ok := d.clients[t.ClientID]; ok && c.currentTaskID == t.ID {
			d.markIdleLocked(c)
		}
		delete(d.tasks, id)
		removed++
	}
	d.mu.Unlock()

	if removed > 0 {
		log.Printf("Pruned %d aged tasks", removed)
	}
	return removed
}

func copyTask(t *models.Task) models.Task {
	cp := *t
	cp.ResultURLs = append([]string(nil), t.ResultURLs...)
	return cp
}
