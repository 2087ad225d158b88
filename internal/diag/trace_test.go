package diag

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)), 16)
}

func dialTrace(t *testing.T, server *httptest.Server, accept string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	header := make(map[string][]string)
	if accept != "" {
		header["Accept"] = []string{accept}
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial trace websocket: %v", err)
	}
	return conn
}

func TestHubBroadcastsJSONByDefault(t *testing.T) {
	hub := newTestHub()
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dialTrace(t, server, "")
	defer conn.Close()

	waitForClientCount(t, hub, 1)
	hub.PlayerJoined(3, "Notch")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("expected text message for default JSON format, got %d", msgType)
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal JSON event: %v", err)
	}
	if ev.Kind != "player_joined" || ev.Session != 3 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestHubBroadcastsMsgpackWhenRequested(t *testing.T) {
	hub := newTestHub()
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dialTrace(t, server, "application/msgpack")
	defer conn.Close()

	waitForClientCount(t, hub, 1)
	hub.PlayerLeft(5, "quit")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("expected binary message for msgpack format, got %d", msgType)
	}

	var ev Event
	if err := msgpack.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal msgpack event: %v", err)
	}
	if ev.Kind != "player_left" || ev.Session != 5 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestHubUnregistersClientOnDisconnect(t *testing.T) {
	hub := newTestHub()
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dialTrace(t, server, "")
	waitForClientCount(t, hub, 1)
	conn.Close()

	waitForClientCount(t, hub, 0)
}

func waitForClientCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.clients)
		hub.mu.RUnlock()
		if n == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d trace clients", want)
}
