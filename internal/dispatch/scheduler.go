package dispatch

import "github.com/fentz26/easel/internal/models"

// SelectIdle returns the next idle, connected client id in round-robin
// order. The cursor advances past the selected client, so under
// sustained load every idle client gets a turn before any is revisited.
// Returning false means no idle capacity, which is a legitimate empty
// result, not an error.
func (d *Dispatcher) SelectIdle() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.selectIdleLocked()
	if !ok {
		return "", false
	}
	return c.id, true
}

// selectIdleLocked scans one full wrap of the registration order
// starting at the cursor. The cursor is kept raw and reduced modulo the
// current client count, so a shrinking or growing registry never
// indexes out of range.
func (d *Dispatcher) selectIdleLocked() (*client, bool) {
	n := len(d.order)
	if n == 0 {
		return nil, false
	}
	start := d.cursor % n
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		c := d.clients[d.order[idx]]
		if c.status == models.ClientStatusIdle && c.conn.Open() {
			d.cursor = idx + 1
			return c, true
		}
	}
	return nil, false
}
