// Package ws is an optional operator-facing status socket: Broadcast sends a
// StatusEvent as a JSON text frame to every connected operator dashboard.
// cmd/server mounts the Handler; no pipeline component calls Broadcast, so
// scrape, summarizer and notifier events are not published here. This is
// not the chat front door, it carries only ops/diagnostic events, built on
// gobwas/ws.
package ws

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
)

// StatusEvent is one broadcast message: a pipeline stage/action pair plus
// arbitrary fields, mirroring internal/common's pipeline logging shape.
type StatusEvent struct {
	Stage     string                 `json:"stage"`
	Action    string                 `json:"action"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Broadcaster fans StatusEvents out to every connected operator socket.
// Connections that fail to write are dropped on the next broadcast.
type Broadcaster struct {
	mu    sync.Mutex
	conns map[net.Conn]struct{}
	now   func() time.Time
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{conns: make(map[net.Conn]struct{}), now: time.Now}
}

// Handler upgrades an inbound HTTP request to a websocket connection and
// registers it for broadcast until it is closed or a write fails.
func (b *Broadcaster) Handler(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.conns[conn] = struct{}{}
	b.mu.Unlock()
}

// Broadcast writes event as a text frame to every connected socket.
func (b *Broadcaster) Broadcast(event StatusEvent) {
	event.Timestamp = b.now()
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	frame := ws.NewTextFrame(payload)

	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.conns {
		if err := ws.WriteFrame(conn, frame); err != nil {
			_ = conn.Close()
			delete(b.conns, conn)
		}
	}
}

// Count returns the number of currently connected sockets.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}
