package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8 << 20
	sendBufferSize = 64
)

var errSendBufferFull = errors.New("gateway: send buffer full")

// connection is one WebSocket session with the gateway. Reads happen on the
// caller's goroutine; writes go through send so that heartbeats and
// control payloads never write concurrently.
type connection struct {
	ws   *websocket.Conn
	send chan []byte
	seq  *atomic.Int64

	closeOnce sync.Once
	done      chan struct{}

	// acked is cleared when a heartbeat is sent and set on HEARTBEAT_ACK.
	acked atomic.Bool
}

func newConnection(ws *websocket.Conn, seq *atomic.Int64) *connection {
	ws.SetReadLimit(maxMessageSize)
	c := &connection{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		seq:  seq,
		done: make(chan struct{}),
	}
	c.acked.Store(true)
	return c
}

// sendPayload marshals and queues a payload to be sent.
func (c *connection) sendPayload(p GatewayPayload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return websocket.ErrCloseSent
	default:
		return errSendBufferFull
	}
}

// heartbeat queues an Op 1 carrying the last sequence number seen.
func (c *connection) heartbeat() error {
	data := json.RawMessage("null")
	if s := c.seq.Load(); s > 0 {
		data = mustMarshal(s)
	}
	return c.sendPayload(GatewayPayload{Op: OpHeartbeat, Data: data})
}

// close terminates the connection without a close frame, which keeps the
// session resumable.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// closeNormal sends a normal-closure frame before closing. The server ends
// the session in response, so this is only used on shutdown.
func (c *connection) closeNormal() {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.close()
}

// writePump writes queued payloads to the WebSocket and heartbeats every
// interval. The first beat is jittered. A beat that finds the previous one
// unacknowledged closes the connection.
func (c *connection) writePump(interval time.Duration) {
	first := time.NewTimer(time.Duration(rand.Float64() * float64(interval)))
	var tick <-chan time.Time
	ticker := time.NewTicker(interval)
	ticker.Stop()
	defer func() {
		first.Stop()
		ticker.Stop()
		c.close()
	}()

	beat := func() bool {
		if !c.acked.Swap(false) {
			slog.Warn("gateway heartbeat not acknowledged, dropping connection")
			return false
		}
		data := json.RawMessage("null")
		if s := c.seq.Load(); s > 0 {
			data = mustMarshal(s)
		}
		return c.write(mustMarshal(GatewayPayload{Op: OpHeartbeat, Data: data}))
	}

	for {
		select {
		case message := <-c.send:
			if !c.write(message) {
				return
			}

		case <-first.C:
			if !beat() {
				return
			}
			ticker.Reset(interval)
			tick = ticker.C

		case <-tick:
			if !beat() {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *connection) write(message []byte) bool {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
		slog.Debug("gateway write failed", "error", err)
		return false
	}
	return true
}

// readPayload blocks for the next decodable payload. Frames that are not
// valid JSON are logged and dropped.
func (c *connection) readPayload() (GatewayPayload, error) {
	for {
		var p GatewayPayload
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			return p, err
		}
		if err := json.Unmarshal(message, &p); err != nil {
			slog.Warn("dropping undecodable gateway payload", "error", err)
			continue
		}
		if p.Sequence != nil && *p.Sequence > c.seq.Load() {
			c.seq.Store(*p.Sequence)
		}
		return p, nil
	}
}
