package gateway

import (
	"strconv"
	"time"
)

// Broadcaster builds envelope JSON and fans messages out to clients.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a Broadcaster backed by the given hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// Broadcast sends a payload on a channel to every connected client whose
// filters match. The envelope is hand-built: this sits on the publish hot
// path and json.Marshal is an order of magnitude slower.
func (b *Broadcaster) Broadcast(channel string, data []byte) {
	now := time.Now().UTC()

	b.hub.mu.Lock()
	b.hub.channelSeqs[channel]++
	seq := b.hub.channelSeqs[channel]
	b.hub.latest[channel] = latestEntry{Data: data, TS: now, Seq: seq}
	rb := b.hub.replayBufs[channel]
	if rb == nil {
		rb = NewReplayBuffer(500)
		b.hub.replayBufs[channel] = rb
	}
	b.hub.mu.Unlock()

	buf := make([]byte, 0, len(channel)+len(data)+96)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')

	rb.Push(seq, buf)

	b.hub.mu.RLock()
	defer b.hub.mu.RUnlock()
	for client := range b.hub.clients {
		if !client.matchesChannel(channel) {
			continue
		}
		// Slow clients drop messages rather than stall the fan-out; they
		// recover via seq gaps and ReplayRange.
		select {
		case client.send <- buf:
		default:
		}
	}
}
