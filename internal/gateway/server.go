// Package gateway runs the WebSocket listener that draw clients connect
// to. It owns connection lifecycles and translates inbound events into
// dispatcher calls; all job state lives in the dispatcher.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fentz26/easel/internal/dispatch"
	"github.com/fentz26/easel/internal/presence"
	"github.com/fentz26/easel/internal/styles"
)

// clientEvent is the envelope for every inbound client message.
type clientEvent struct {
	Type string   `json:"type"`
	URLs []string `json:"urls,omitempty"`
	URL  string   `json:"url,omitempty"`
}

// ackMessage is sent to a client right after registration.
type ackMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

// Server accepts draw-client connections and feeds their events to the
// dispatcher.
type Server struct {
	disp     *dispatch.Dispatcher
	mirror   *presence.Mirror // nil when presence is disabled
	addr     string
	server   *http.Server
	upgrader websocket.Upgrader
}

// NewServer creates a gateway listening on addr.
func NewServer(disp *dispatch.Dispatcher, mirror *presence.Mirror, addr string) *Server {
	return &Server{
		disp:   disp,
		mirror: mirror,
		addr:   addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Draw clients are page extensions, not browsers on our origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start runs the listener until Shutdown.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.HandleWS)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	styles.Infof("WebSocket gateway listening on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HandleWS upgrades one connection, registers the client and runs its
// read loop until disconnect.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		styles.Errorf("Upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	clientID := uuid.New().String()
	conn := newWSConn(ws)

	s.disp.Register(clientID, conn)
	s.mirror.ClientUp(clientID, r.RemoteAddr)
	styles.Successf("Client %s connected from %s", clientID, r.RemoteAddr)

	ack, _ := json.Marshal(ackMessage{Type: "ack", ClientID: clientID})
	if err := conn.Send(ack); err != nil {
		log.Printf("Sending ack to client %s: %v", clientID, err)
	}

	s.readLoop(clientID, conn, ws)

	conn.markClosed()
	ws.Close()
	s.disp.Unregister(clientID)
	s.mirror.ClientDown(clientID)
	styles.Infof("Client %s disconnected", clientID)
}

// readLoop consumes frames until the connection errors out.
func (s *Server) readLoop(clientID string, conn *wsConn, ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Client %s read error: %v", clientID, err)
			}
			return
		}
		s.handleMessage(clientID, data)
	}
}

// handleMessage decodes one inbound frame and routes it. Unknown or
// malformed frames are logged and dropped.
func (s *Server) handleMessage(clientID string, data []byte) {
	var ev clientEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Printf("Client %s sent non-JSON frame (%d bytes), dropped", clientID, len(data))
		return
	}

	switch ev.Type {
	case "collectedImageUrls":
		if len(ev.URLs) == 0 {
			log.Printf("Client %s sent empty image event, dropped", clientID)
			return
		}
		if s.disp.CompleteForClient(clientID, ev.URLs) {
			styles.Successf("Client %s delivered %d image urls", clientID, len(ev.URLs))
		}
		s.mirror.Touch(clientID)
	case "pageInfo", "ready":
		s.disp.RecordActivity(clientID, ev.URL)
		s.mirror.Touch(clientID)
	default:
		log.Printf("Client %s sent unknown message type %q, dropped", clientID, ev.Type)
	}
}
