package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/fentz26/easel/internal/models"
)

// Tick performs one housekeeping pass: force-timeout overdue pending
// tasks, drop clients whose transport has closed, and prune aged tasks
// once the store exceeds the high-water mark. Safe to call from the
// dispatch path and from the background loop concurrently; already
// removed or terminal entries are skipped.
func (d *Dispatcher) Tick() {
	d.expireOverdue()
	d.PruneClosed()

	d.mu.Lock()
	over := len(d.tasks) > d.cfg.TaskHighWater
	d.mu.Unlock()
	if over {
		d.PruneOlderThan(d.cfg.TaskRetention)
	}
}

// expireOverdue times out every pending task whose deadline has passed.
func (d *Dispatcher) expireOverdue() int {
	now := time.Now()

	d.mu.Lock()
	var expired []models.Task
	for _, t := range d.tasks {
		if t.Status != models.TaskStatusPending {
			continue
		}
		if now.After(t.CreatedAt.Add(t.Timeout)) {
			d.terminalizeLocked(t, models.TaskStatusTimeout, nil)
			expired = append(expired, copyTask(t))
		}
	}
	d.mu.Unlock()

	if len(expired) > 0 {
		log.Printf("Janitor timed out %d overdue tasks", len(expired))
	}
	d.record(expired...)
	return len(expired)
}

// RunJanitor ticks at the given interval until the context is canceled.
// Optional: the dispatch path already ticks opportunistically.
func (d *Dispatcher) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Tick()
		}
	}
}
