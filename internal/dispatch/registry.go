package dispatch

import (
	"log"
	"time"

	"github.com/fentz26/easel/internal/models"
)

// Register inserts a new idle client. Registration order determines its
// place in the round-robin rotation.
func (d *Dispatcher) Register(clientID string, conn Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.clients[clientID]; !exists {
		d.order = append(d.order, clientID)
	}
	d.clients[clientID] = &client{
		id:         clientID,
		status:     models.ClientStatusIdle,
		lastActive: time.Now(),
		conn:       conn,
	}
	log.Printf("Client %s registered (%d total)", clientID, len(d.clients))
}

// Unregister removes a client. Any pending task still bound to it is
// forced to error. Idempotent if the client is absent.
func (d *Dispatcher) Unregister(clientID string) {
	d.mu.Lock()
	orphaned := d.unregisterLocked(clientID)
	d.mu.Unlock()
	d.record(orphaned...)
}

// unregisterLocked removes the client and errors its pending tasks,
// returning terminal copies for the recorder.
func (d *Dispatcher) unregisterLocked(clientID string) []models.Task {
	if _, ok := d.clients[clientID]; !ok {
		return nil
	}
	delete(d.clients, clientID)
	for i, id := range d.order {
		if id == clientID {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}

	var orphaned []models.Task
	for _, t := range d.tasks {
		if t.ClientID == clientID && !t.Status.Terminal() {
			d.terminalizeLocked(t, models.TaskStatusError, nil)
			orphaned = append(orphaned, copyTask(t))
		}
	}
	log.Printf("Client %s unregistered (%d remaining, %d tasks errored)", clientID, len(d.clients), len(orphaned))
	return orphaned
}

// MarkBusy binds a task to a client. No-op if the client is absent.
func (d *Dispatcher) MarkBusy(clientID, taskID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.clients[clientID]; ok {
		d.markBusyLocked(c, taskID)
	}
}

// MarkIdle returns a client to the idle pool. No-op if absent.
func (d *Dispatcher) MarkIdle(clientID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.clients[clientID]; ok {
		d.markIdleLocked(c)
	}
}

func (d *Dispatcher) markBusyLocked(c *client, taskID string) {
	c.status = models.ClientStatusBusy
	c.currentTaskID = taskID
	c.lastActive = time.Now()
}

func (d *Dispatcher) markIdleLocked(c *client) {
	c.status = models.ClientStatusIdle
	c.currentTaskID = ""
	c.lastActive = time.Now()
}

// RecordActivity refreshes a client's liveness timestamp from an
// out-of-band signal, optionally updating its endpoint hint.
func (d *Dispatcher) RecordActivity(clientID, endpointHint string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clients[clientID]
	if !ok {
		return
	}
	c.lastActive = time.Now()
	if endpointHint != "" {
		c.endpointHint = endpointHint
	}
}

// PruneClosed unregisters every client whose connection reports closed
// and returns the number removed.
func (d *Dispatcher) PruneClosed() int {
	d.mu.Lock()
	var closed []string
	for id, c := range d.clients {
		if !c.conn.Open() {
			closed = append(closed, id)
		}
	}
	var orphaned []models.Task
	for _, id := range closed {
		orphaned = append(orphaned, d.unregisterLocked(id)...)
	}
	d.mu.Unlock()

	d.record(orphaned...)
	return len(closed)
}
