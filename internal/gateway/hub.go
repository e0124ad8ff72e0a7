// Package gateway pushes freshly computed indicator values and run lifecycle
// events to WebSocket dashboard clients. The hub fans out enveloped messages
// with per-channel sequence numbers; a client that detects a gap can backfill
// from the per-channel replay buffer.
package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quantdb/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The gateway serves a local dashboard; origin checks belong to the
	// reverse proxy in front of it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub manages WebSocket clients and message fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	// latest[channel] holds the newest payload per channel for initial
	// state on connect.
	latest map[string]latestEntry

	// Per-channel monotonic sequence numbers for client gap detection.
	channelSeqs map[string]int64

	// Per-channel replay buffers for gap backfill.
	replayBufs map[string]*ReplayBuffer

	broadcaster *Broadcaster

	// OnClientCountChange, when set, is called with the new client count
	// after every connect and disconnect. Used for the connected-clients
	// gauge.
	OnClientCountChange func(count int)
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64
}

// NewHub creates a hub with no clients.
func NewHub() *Hub {
	h := &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
	}
	h.broadcaster = NewBroadcaster(h)
	return h
}

// BroadcastIndicator pushes one indicator value on its series channel.
func (h *Hub) BroadcastIndicator(v model.IndicatorValue) {
	h.broadcaster.Broadcast("ind:"+v.Name+":"+string(v.Freq)+":"+v.Symbol, v.JSON())
}

// BroadcastRunEvent pushes one run lifecycle event on the shared run channel.
func (h *Hub) BroadcastRunEvent(ev model.RunEvent) {
	h.broadcaster.Broadcast("run:events", ev.JSON())
}

// HandleWS upgrades an HTTP request and registers the client. The optional
// "last_ts" query parameter suppresses initial-state entries the client has
// already seen.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade failed: %v", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.notifyCount(count)

	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.sendInitialState(r.URL.Query().Get("last_ts"))
	go client.writePump()
	go client.readPump()
}

// RemoveClient unregisters a client and closes its send queue. The closed
// flag is raised while the lock is held: a sendInitialState goroutine that
// has not run yet will observe it and back off instead of panicking on the
// closed channel.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	c.closed = true
	count := len(h.clients)
	h.mu.Unlock()
	close(c.send)
	h.notifyCount(count)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ChannelSeq returns the current sequence number of a channel.
func (h *Hub) ChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ReplayRange returns the buffered envelopes of a channel with sequence
// numbers in [fromSeq, toSeq], oldest first. Used for client gap backfill.
func (h *Hub) ReplayRange(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb := h.replayBufs[channel]
	h.mu.RUnlock()
	if rb == nil {
		return nil
	}
	entries := rb.Range(fromSeq, toSeq)
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

func (h *Hub) notifyCount(count int) {
	if h.OnClientCountChange != nil {
		h.OnClientCountChange(count)
	}
}
