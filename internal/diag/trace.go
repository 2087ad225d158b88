// Package diag is the diagnostics surface standing next to the wire
// protocol: a health/stats HTTP API and a live event feed over
// websocket, content-negotiated between JSON and msgpack, optionally
// dual-stacked over HTTP/3 and fronted by ACME-issued TLS.
package diag

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/classicwire/classicd/internal/codec"
)

// Event is one trace record broadcast to every connected diagnostics
// client. Kind names the originating callback so subscribers can filter
// without parsing Extra.
type Event struct {
	Kind    string      `json:"kind" msgpack:"kind"`
	Session int32       `json:"session" msgpack:"session"`
	Extra   interface{} `json:"extra,omitempty" msgpack:"extra,omitempty"`
}

type traceClient struct {
	id     string
	conn   *websocket.Conn
	format string // "json" or "msgpack", fixed at upgrade time
	mu     sync.Mutex
}

func (c *traceClient) send(ev Event) error {
	var (
		payload []byte
		err     error
	)
	if c.format == "msgpack" {
		payload, err = msgpack.Marshal(ev)
	} else {
		payload, err = json.Marshal(ev)
	}
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	msgType := websocket.TextMessage
	if c.format == "msgpack" {
		msgType = websocket.BinaryMessage
	}
	return c.conn.WriteMessage(msgType, payload)
}

// Hub fans out Events to every connected trace client and doubles as a
// dispatch.WorldHook so the wire-protocol core can feed it directly.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*traceClient
	logger  *slog.Logger
	bufSize int
}

func NewHub(logger *slog.Logger, bufSize int) *Hub {
	return &Hub{clients: make(map[string]*traceClient), logger: logger, bufSize: bufSize}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the request to a websocket and registers the client
// for broadcast. The wire format is negotiated once, at upgrade time,
// from the Accept header: "application/msgpack" selects msgpack, anything
// else (including absence) gets JSON.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("trace websocket upgrade failed", "error", err)
		return
	}
	format := "json"
	if strings.Contains(r.Header.Get("Accept"), "application/msgpack") {
		format = "msgpack"
	}
	client := &traceClient{id: randomID(), conn: conn, format: format}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client.id)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	clients := make([]*traceClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(ev); err != nil {
			h.logger.Warn("trace broadcast failed", "client", c.id, "error", err)
		}
	}
}

func randomID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// The dispatch.WorldHook implementation: every callback becomes one
// broadcast Event. This is how the diagnostics feed observes gameplay
// traffic without the wire-protocol core knowing diagnostics exist.

func (h *Hub) PlayerJoined(sessionIdx int32, username string) {
	h.broadcast(Event{Kind: "player_joined", Session: sessionIdx, Extra: username})
}

func (h *Hub) PlayerMoved(sessionIdx int32, pos codec.PlayerPosition) {
	h.broadcast(Event{Kind: "player_moved", Session: sessionIdx, Extra: pos})
}

func (h *Hub) PlayerRotated(sessionIdx int32, rot codec.PlayerRotation) {
	h.broadcast(Event{Kind: "player_rotated", Session: sessionIdx, Extra: rot})
}

func (h *Hub) PlayerGrounded(sessionIdx int32, grounded bool) {
	h.broadcast(Event{Kind: "player_grounded", Session: sessionIdx, Extra: grounded})
}

func (h *Hub) PlayerTransformed(sessionIdx int32, t codec.PlayerTransform) {
	h.broadcast(Event{Kind: "player_transformed", Session: sessionIdx, Extra: t})
}

func (h *Hub) PlayerLeft(sessionIdx int32, reason string) {
	h.broadcast(Event{Kind: "player_left", Session: sessionIdx, Extra: reason})
}
