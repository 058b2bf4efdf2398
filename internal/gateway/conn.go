package gateway

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("connection closed")

// wsConn adapts a websocket connection to the dispatcher's Conn
// interface. Gorilla allows only one concurrent writer, so sends are
// serialized behind a mutex; the read loop stays on its own goroutine.
type wsConn struct {
	writeMu sync.Mutex
	ws      *websocket.Conn
	closed  atomic.Bool
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

// Send delivers one text frame to the client.
func (c *wsConn) Send(payload []byte) error {
	if c.closed.Load() {
		return errConnClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Open reports whether the connection is still usable for sending.
func (c *wsConn) Open() bool {
	return !c.closed.Load()
}

// markClosed flips the liveness flag; the read loop calls this once the
// connection errors out.
func (c *wsConn) markClosed() {
	c.closed.Store(true)
}
