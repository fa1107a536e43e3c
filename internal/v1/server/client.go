// Package server hosts the signaling HTTP/WebSocket listener: the Gin
// router, the per-connection Client, and the Hub that owns the Dispatcher's
// ServerState. Grounded on the teacher's session.Hub/session.Client pair.
package server

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/TheCodeDaniel/voiceSync/internal/v1/logging"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/metrics"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/registry"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

// wsConnection is the subset of *websocket.Conn the Client needs, kept as an
// interface so tests can swap in a mock.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

// dispatchFunc routes one inbound frame to the MessageDispatcher.
type dispatchFunc func(conn *Client, raw []byte)

// disconnectFunc runs the dispatcher's implicit leave-room + unregister.
type disconnectFunc func(conn *Client)

// Client represents one signaling connection. It satisfies dispatch.Conn.
type Client struct {
	conn       wsConnection
	send       chan []byte
	id         registry.PeerIDType
	dispatch   dispatchFunc
	disconnect disconnectFunc
}

// PeerID returns the connection's server-assigned identifier.
func (c *Client) PeerID() registry.PeerIDType { return c.id }

// Send enqueues data for delivery without blocking the caller. If the
// client's send buffer is full, the frame is dropped and logged; the
// connection itself is left open.
func (c *Client) Send(data []byte) {
	select {
	case c.send <- data:
	default:
		logging.Warn(nil, "client send buffer full, dropping frame", zap.String("peer_id", string(c.id)))
	}
}

func (c *Client) readPump() {
	defer func() {
		c.disconnect(c)
		c.conn.Close()
		metrics.DecConnection()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.dispatch(c, data)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logging.Error(nil, "error writing message", zap.Error(err))
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
