package gateway

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// closed is set under hub.mu before send is closed. Every goroutine
	// that sends on the channel holds the lock and checks it first, so a
	// late sender never hits a closed channel.
	closed bool

	filterMu sync.RWMutex
	filters  ClientFilters
}

// ClientFilters narrows what a client receives. Empty slices mean
// "everything". A filter message is a JSON object of this shape sent by the
// client at any time.
type ClientFilters struct {
	Symbols    []string `json:"symbols"`
	Indicators []string `json:"indicators"`
}

// sendInitialState replays the latest entry of every channel so a fresh
// client renders without waiting for the next update. lastTS, when parseable,
// suppresses entries the client already holds.
func (c *Client) sendInitialState(lastTS string) {
	var cutoff time.Time
	if lastTS != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, lastTS); err == nil {
			cutoff = parsed
		}
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.closed {
		return
	}
	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.TS.After(cutoff) {
			continue
		}
		envelope, _ := json.Marshal(map[string]interface{}{
			"channel": channel,
			"data":    entry.Data,
			"ts":      entry.TS.Format(time.RFC3339Nano),
			"seq":     entry.Seq,
			"initial": true,
		})
		select {
		case c.send <- envelope:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Coalesce queued messages into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var filters ClientFilters
		if json.Unmarshal(msg, &filters) == nil {
			c.filterMu.Lock()
			c.filters = filters
			c.filterMu.Unlock()
		}
	}
}

// matchesChannel reports whether this client's filters admit the channel.
// Run-event channels always pass; indicator channels are matched on the
// symbol suffix and indicator name prefix.
func (c *Client) matchesChannel(channel string) bool {
	c.filterMu.RLock()
	f := c.filters
	c.filterMu.RUnlock()

	if len(f.Symbols) == 0 && len(f.Indicators) == 0 {
		return true
	}
	if !strings.HasPrefix(channel, "ind:") {
		return true
	}

	// ind:{name}:{freq}:{symbol}
	parts := strings.Split(channel, ":")
	if len(parts) != 4 {
		return true
	}
	name, symbol := parts[1], parts[3]

	if len(f.Symbols) > 0 && !contains(f.Symbols, symbol) {
		return false
	}
	if len(f.Indicators) > 0 && !contains(f.Indicators, name) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
