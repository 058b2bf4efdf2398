package dispatch

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fentz26/easel/internal/models"
)

// fakeConn implements Conn for tests.
type fakeConn struct {
	mu       sync.Mutex
	open     bool
	failSend bool
	sent     [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{open: true}
}

func (c *fakeConn) Send(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open || c.failSend {
		return errors.New("send failed")
	}
	c.sent = append(c.sent, append([]byte(nil), p...))
	return nil
}

func (c *fakeConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// memRecorder captures terminal tasks handed to the recorder hook.
type memRecorder struct {
	mu      sync.Mutex
	records []models.Task
}

func (r *memRecorder) Record(t models.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, t)
}

func (r *memRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func testConfig() *Config {
	return &Config{
		TaskTimeout:   80 * time.Millisecond,
		PollInterval:  5 * time.Millisecond,
		TaskRetention: 200 * time.Millisecond,
		TaskHighWater: 5,
	}
}

// checkInvariant verifies currentTaskID != "" iff status is busy, for
// every registered client.
func checkInvariant(t *testing.T, d *Dispatcher) {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, c := range d.clients {
		busy := c.status == models.ClientStatusBusy
		bound := c.currentTaskID != ""
		if busy != bound {
			t.Errorf("Client %s violates invariant: status=%s currentTaskID=%q", id, c.status, c.currentTaskID)
		}
	}
}
