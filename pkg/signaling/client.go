// Package signaling provides the client-side SignalingTransport: a
// reconnecting WebSocket dialer with keep-alive probing and typed event
// dispatch, grounded on BioHazard786/Warpdrop's cli/internal/signaling
// readPump/writePump/ping-ticker shape.
package signaling

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/TheCodeDaniel/voiceSync/internal/v1/apperrors"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/logging"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/metrics"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024

	keepAliveInterval = 25 * time.Second

	// Defaults for the reconnectBackoff/maxReconnectTries fields, overridden
	// in tests (see TestClient_ReconnectExhaustion...) to verify the
	// 5-tries-then-CONN_LOST bound without real sleeps.
	defaultReconnectBackoff  = 3 * time.Second
	defaultMaxReconnectTries = 5
)

// Handler receives the raw payload of one inbound event, named after the
// wire message's `type` field.
type Handler func(payload json.RawMessage)

// Client is the reconnecting WebSocket transport consumed by pkg/session.
// All exported methods are safe for concurrent use.
type Client struct {
	serverURL string

	mu               sync.Mutex
	conn             *websocket.Conn
	open             bool
	intentionalClose bool
	handlers         map[string]map[int]Handler
	nextHandlerID    int
	onError          func(*apperrors.SignalingError)
	breaker          *gobreaker.CircuitBreaker

	// reconnectBackoff/maxReconnectTries bound handleClose's retry loop.
	// Set from the package defaults by NewClient; tests construct a Client
	// literal directly (as the teacher's TestClient_CircuitBreaker does for
	// pkg/sfu.Client) with shorter values to exercise the bound without
	// real sleeps.
	reconnectBackoff  time.Duration
	maxReconnectTries int

	send     chan []byte
	closeCh  chan struct{}
	doneOnce sync.Once
}

// NewClient constructs a transport targeting serverURL (ws:// or wss://).
func NewClient(serverURL string) *Client {
	c := &Client{
		serverURL:         serverURL,
		handlers:          make(map[string]map[int]Handler),
		send:              make(chan []byte, 64),
		closeCh:           make(chan struct{}),
		reconnectBackoff:  defaultReconnectBackoff,
		maxReconnectTries: defaultMaxReconnectTries,
	}
	c.breaker = newReconnectBreaker(serverURL, c.reconnectBackoff, c.maxReconnectTries)
	return c
}

// newReconnectBreaker builds the gobreaker wrapping reconnect dial attempts,
// grounded on the teacher's pkg/sfu.Client gobreaker.Settings shape.
func newReconnectBreaker(serverURL string, backoff time.Duration, maxTries int) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{
		Name:        "voicesync-reconnect",
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     backoff,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxTries)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.ReconnectCircuitState.WithLabelValues(serverURL).Set(stateVal)
		},
	}
	return gobreaker.NewCircuitBreaker(st)
}

// On registers a handler invoked whenever an inbound frame's `type` field
// equals eventType. Multiple handlers per event are invoked in registration
// order. The returned function unregisters the handler.
func (c *Client) On(eventType string, handler Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextHandlerID
	c.nextHandlerID++
	if c.handlers[eventType] == nil {
		c.handlers[eventType] = make(map[int]Handler)
	}
	c.handlers[eventType][id] = handler

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[eventType], id)
	}
}

// OnError registers the callback invoked when reconnection is exhausted.
func (c *Client) OnError(fn func(*apperrors.SignalingError)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Connect dials the server and blocks until the handshake completes or
// ctx is done. On success it starts the read/write/keep-alive goroutines.
func (c *Client) Connect(ctx context.Context) error {
	if _, err := url.Parse(c.serverURL); err != nil {
		return apperrors.NewSignalingError(apperrors.CodeConnectFailed, err.Error())
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return apperrors.NewSignalingError(apperrors.CodeConnectFailed, err.Error())
	}

	c.mu.Lock()
	c.conn = conn
	c.open = true
	c.intentionalClose = false
	c.mu.Unlock()

	conn.SetReadLimit(maxMessageSize)

	go c.readPump()
	go c.writePump()

	return nil
}

// Disconnect sets the intentional-close flag, suppressing reconnection, and
// closes the underlying socket.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.intentionalClose = true
	conn := c.conn
	c.open = false
	c.mu.Unlock()

	c.doneOnce.Do(func() { close(c.closeCh) })
	if conn != nil {
		conn.Close()
	}
}

// Send encodes payload under msgType and enqueues it for delivery. It drops
// silently (per spec) when the channel is not open.
func (c *Client) Send(msgType string, payload any) {
	c.mu.Lock()
	open := c.open
	c.mu.Unlock()
	if !open {
		return
	}

	fields, err := json.Marshal(payload)
	if err != nil {
		logging.Warn(context.Background(), "signaling: failed to marshal outbound payload", zap.Error(err))
		return
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(fields, &m); err != nil {
		m = map[string]json.RawMessage{}
	}
	m["type"], _ = json.Marshal(msgType)
	data, err := json.Marshal(m)
	if err != nil {
		return
	}

	select {
	case c.send <- data:
	default:
		logging.Warn(context.Background(), "signaling: outbound buffer full, dropping frame")
	}
}

func (c *Client) readPump() {
	defer c.handleClose()

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.Type == "" {
			logging.Warn(context.Background(), "signaling: dropping non-JSON frame", zap.Error(err))
			continue
		}

		c.mu.Lock()
		ids := make([]int, 0, len(c.handlers[envelope.Type]))
		for id := range c.handlers[envelope.Type] {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		handlers := make([]Handler, 0, len(ids))
		for _, id := range ids {
			handlers = append(handlers, c.handlers[envelope.Type][id])
		}
		c.mu.Unlock()
		for _, h := range handlers {
			h(json.RawMessage(data))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logging.Warn(context.Background(), "signaling: keep-alive ping failed", zap.Error(err))
			}

		case <-c.closeCh:
			return
		}
	}
}

// handleClose runs on any unexpected socket closure and drives reconnection.
func (c *Client) handleClose() {
	c.mu.Lock()
	c.open = false
	intentional := c.intentionalClose
	c.mu.Unlock()

	if intentional {
		return
	}

	for attempt := 0; attempt < c.maxReconnectTries; attempt++ {
		time.Sleep(c.reconnectBackoff)

		result, err := c.breaker.Execute(func() (any, error) {
			return websocket.DefaultDialer.Dial(c.serverURL, nil)
		})
		if err == gobreaker.ErrOpenState {
			break
		}
		if err != nil {
			logging.Warn(context.Background(), "signaling: reconnect attempt failed", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		conn := result.(*websocket.Conn)
		c.mu.Lock()
		c.conn = conn
		c.open = true
		c.mu.Unlock()

		conn.SetReadLimit(maxMessageSize)
		go c.readPump()
		go c.writePump()
		return
	}

	c.mu.Lock()
	cb := c.onError
	c.mu.Unlock()
	if cb != nil {
		cb(apperrors.NewSignalingError(apperrors.CodeConnLost, "reconnect exhausted"))
	}
}
