package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/easel/internal/dispatch"
	"github.com/fentz26/easel/internal/models"
)

func newTestGateway(t *testing.T) (*Server, *dispatch.Dispatcher, string) {
	t.Helper()

	cfg := dispatch.DefaultConfig()
	cfg.TaskTimeout = 2 * time.Second
	cfg.PollInterval = 10 * time.Millisecond
	disp := dispatch.New(cfg)

	s := NewServer(disp, nil, "127.0.0.1:0")
	ts := httptest.NewServer(http.HandlerFunc(s.HandleWS))
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	return s, disp, wsURL
}

func dialClient(t *testing.T, wsURL string) (*websocket.Conn, string) {
	t.Helper()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	var ack struct {
		Type     string `json:"type"`
		ClientID string `json:"client_id"`
	}
	require.NoError(t, ws.ReadJSON(&ack))
	require.Equal(t, "ack", ack.Type)
	require.NotEmpty(t, ack.ClientID)
	return ws, ack.ClientID
}

func waitForClients(t *testing.T, disp *dispatch.Dispatcher, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if disp.Status().TotalClients == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d clients, have %d", n, disp.Status().TotalClients)
}

func TestClientRoundTrip(t *testing.T) {
	_, disp, wsURL := newTestGateway(t)
	ws, _ := dialClient(t, wsURL)
	waitForClients(t, disp, 1)

	type dispatchOutcome struct {
		res models.DispatchResult
		err error
	}
	outcome := make(chan dispatchOutcome, 1)
	go func() {
		res, err := disp.Dispatch(context.Background(), "a lighthouse at dusk")
		outcome <- dispatchOutcome{res, err}
	}()

	// The client receives the draw command...
	var cmd struct {
		Type   string `json:"type"`
		TaskID string `json:"task_id"`
		Prompt string `json:"prompt"`
	}
	require.NoError(t, ws.ReadJSON(&cmd))
	assert.Equal(t, "drawImage", cmd.Type)
	assert.Equal(t, "a lighthouse at dusk", cmd.Prompt)
	assert.NotEmpty(t, cmd.TaskID)

	// ...and reports its result.
	result := map[string]interface{}{
		"type": "collectedImageUrls",
		"urls": []string{"http://x/1.png", "http://x/2.png"},
	}
	require.NoError(t, ws.WriteJSON(result))

	select {
	case out := <-outcome:
		require.NoError(t, out.err)
		assert.Equal(t, "success", out.res.Status)
		assert.Equal(t, []string{"http://x/1.png", "http://x/2.png"}, out.res.ImageURLs)
	case <-time.After(3 * time.Second):
		t.Fatal("Dispatch did not finish")
	}

	// Client is idle again.
	status := disp.Status()
	require.Len(t, status.Clients, 1)
	assert.Equal(t, models.ClientStatusIdle, status.Clients[0].Status)
}

func TestDisconnectUnregisters(t *testing.T) {
	_, disp, wsURL := newTestGateway(t)
	ws, _ := dialClient(t, wsURL)
	waitForClients(t, disp, 1)

	ws.Close()
	waitForClients(t, disp, 0)
}

func TestActivityUpdatesEndpointHint(t *testing.T) {
	_, disp, wsURL := newTestGateway(t)
	ws, _ := dialClient(t, wsURL)
	waitForClients(t, disp, 1)

	require.NoError(t, ws.WriteJSON(map[string]string{
		"type": "pageInfo",
		"url":  "https://canvas.example/board/7",
	}))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		clients := disp.Status().Clients
		if len(clients) == 1 && clients[0].EndpointHint == "https://canvas.example/board/7" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Endpoint hint never recorded")
}

func TestMalformedAndUnknownFramesDropped(t *testing.T) {
	_, disp, wsURL := newTestGateway(t)
	ws, _ := dialClient(t, wsURL)
	waitForClients(t, disp, 1)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json at all")))
	require.NoError(t, ws.WriteJSON(map[string]string{"type": "mystery"}))

	// Stray image results with no bound task are dropped too.
	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"type": "collectedImageUrls",
		"urls": []string{"http://x/stray.png"},
	}))

	// Connection survives and the registry is untouched.
	time.Sleep(50 * time.Millisecond)
	status := disp.Status()
	assert.Equal(t, 1, status.TotalClients)
	assert.Equal(t, 0, status.TotalTasks)
}

func TestAckMessageShape(t *testing.T) {
	_, _, wsURL := newTestGateway(t)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	_, raw, err := ws.ReadMessage()
	require.NoError(t, err)

	var ack map[string]string
	require.NoError(t, json.Unmarshal(raw, &ack))
	assert.Equal(t, "ack", ack["type"])
	assert.NotEmpty(t, ack["client_id"])
}
