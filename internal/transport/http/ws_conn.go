package http

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	sendBufferSize = 64
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// wsConn is one player's websocket. Writes go through a single writer goroutine;
// Send never blocks the caller.
type wsConn struct {
	id     string
	ws     *websocket.Conn
	send   chan outboundMessage
	done   chan struct{}
	closed *atomic.Bool
	logger *zap.Logger
}

func newWSConn(id string, ws *websocket.Conn, logger *zap.Logger) *wsConn {
	return &wsConn{
		id:     id,
		ws:     ws,
		send:   make(chan outboundMessage, sendBufferSize),
		done:   make(chan struct{}),
		closed: atomic.NewBool(false),
		logger: logger,
	}
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) Send(msgType string, payload any) error {
	if c.closed.Load() {
		return errConnClosed
	}
	select {
	case c.send <- outboundMessage{Type: msgType, Payload: payload}:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		// A peer this far behind is not reading; drop it rather than stall matches.
		c.logger.Warn("Send buffer full, closing connection", zap.String("type", msgType))
		c.close()
		return errSendBufferFull
	}
}

// close reports whether this call was the one that closed the connection.
func (c *wsConn) close() bool {
	if !c.closed.CompareAndSwap(false, true) {
		return false
	}
	close(c.done)
	_ = c.ws.Close()
	return true
}

// writePump drains the send buffer and keeps the peer alive with pings.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.send:
			data, err := json.Marshal(msg)
			if err != nil {
				c.logger.Error("Failed to marshal message", zap.String("type", msg.Type), zap.Error(err))
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("Failed to write message", zap.String("type", msg.Type), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
