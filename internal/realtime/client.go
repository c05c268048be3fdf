package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Envelope is the JSON frame exchanged over the websocket:
// {"type": "...", "data": ...}.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client wraps one gorilla websocket connection with a buffered outbound
// queue. The queue keeps Send non-blocking and preserves FIFO order per
// connection; when it fills up, events are dropped rather than ever
// stalling a broadcast.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	log  *zap.Logger

	closeOnce sync.Once
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, log *zap.Logger) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		log:  log,
	}
}

// Send marshals an envelope and queues it for delivery. It reports false
// when the frame was dropped (full buffer or closed connection).
func (c *Client) Send(event string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("marshal websocket payload", zap.String("event", event), zap.Error(err))
		return false
	}
	frame, err := json.Marshal(Envelope{Type: event, Data: data})
	if err != nil {
		return false
	}
	defer func() {
		// Send after Close: losing the frame is the intended behavior.
		_ = recover()
	}()
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close tears down the outbound queue and the underlying connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// WritePump drains the outbound queue onto the wire and keeps the
// connection alive with pings. It exits when the queue is closed or a
// write fails. Runs on its own goroutine, one per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump reads inbound envelopes and hands them to onMessage until the
// connection closes. It blocks the caller (the upgrade handler keeps its
// goroutine on the read side, matching the write side's dedicated one).
func (c *Client) ReadPump(onMessage func(Envelope)) {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Debug("invalid websocket frame", zap.Error(err))
			continue
		}
		onMessage(env)
	}
}
