// Package dispatch implements the draw-job dispatcher core: a client
// registry with liveness tracking, an in-memory task store, round-robin
// idle-client selection, the end-to-end dispatch coordinator and the
// janitor. All shared state lives behind one mutex because task and
// client records cross-reference each other on every transition.
package dispatch

import (
	"sync"
	"time"

	"github.com/fentz26/easel/internal/models"
)

// Conn is the non-owning handle the dispatcher uses to reach a client.
// The transport layer owns the connection lifecycle; the dispatcher only
// sends through it and asks whether it is still open.
type Conn interface {
	Send(payload []byte) error
	Open() bool
}

// Recorder receives a copy of every task that reaches a terminal state.
// Implementations must not call back into the Dispatcher.
type Recorder interface {
	Record(task models.Task)
}

// client is the registry's record for one connected draw client.
// currentTaskID is non-empty iff status is busy.
type client struct {
	id            string
	status        models.ClientStatus
	currentTaskID string
	lastActive    time.Time
	endpointHint  string
	conn          Conn
}

// Dispatcher owns the authoritative client and task collections.
type Dispatcher struct {
	cfg      *Config
	recorder Recorder

	mu      sync.Mutex
	clients map[string]*client
	order   []string // registration order, drives round-robin
	cursor  int
	tasks   map[string]*models.Task
}

// New creates a dispatcher with no clients and no tasks.
func New(cfg *Config) *Dispatcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Dispatcher{
		cfg:     cfg,
		clients: make(map[string]*client),
		tasks:   make(map[string]*models.Task),
	}
}

// SetRecorder wires an audit sink for terminal tasks. Must be called
// before the dispatcher starts receiving traffic.
func (d *Dispatcher) SetRecorder(r Recorder) {
	d.recorder = r
}

// record hands terminal task copies to the recorder, if any.
// Callers must not hold d.mu.
func (d *Dispatcher) record(tasks ...models.Task) {
	if d.recorder == nil {
		return
	}
	for _, t := range tasks {
		d.recorder.Record(t)
	}
}

// Status returns a snapshot of every client and task.
func (d *Dispatcher) Status() models.StatusReport {
	d.mu.Lock()
	defer d.mu.Unlock()

	report := models.StatusReport{
		TotalClients: len(d.clients),
		Clients:      make([]models.ClientInfo, 0, len(d.clients)),
		TotalTasks:   len(d.tasks),
		Tasks:        make([]models.TaskInfo, 0, len(d.tasks)),
	}

	for _, id := range d.order {
		c := d.clients[id]
		report.Clients = append(report.Clients, models.ClientInfo{
			ID:            c.id,
			Connected:     c.conn.Open(),
			Status:        c.status,
			CurrentTaskID: c.currentTaskID,
			LastActive:    c.lastActive,
			EndpointHint:  c.endpointHint,
		})
	}

	for _, t := range d.tasks {
		report.Tasks = append(report.Tasks, models.TaskInfo{
			ID:         t.ID,
			ClientID:   t.ClientID,
			Status:     t.Status,
			CreatedAt:  t.CreatedAt,
			ImageCount: len(t.ResultURLs),
		})
	}

	return report
}
