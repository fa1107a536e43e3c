package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCodeDaniel/voiceSync/internal/v1/apperrors"
)

var testUpgrader = websocket.Upgrader{}

func newEchoServer(t *testing.T, onMessage func(*websocket.Conn, []byte)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.TextMessage && onMessage != nil {
				onMessage(conn, data)
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newPushServer(t *testing.T, frame []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, frame)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestClient_ConnectAndReceiveTypedEvent(t *testing.T) {
	srv := newPushServer(t, []byte(`{"type":"login-ok","peerId":"p1"}`))
	defer srv.Close()

	client := NewClient(wsURL(srv))
	defer client.Disconnect()

	var mu sync.Mutex
	var received json.RawMessage
	done := make(chan struct{})
	client.On("login-ok", func(payload json.RawMessage) {
		mu.Lock()
		received = payload
		mu.Unlock()
		close(done)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))

	select {
	case <-done:
		mu.Lock()
		assert.Contains(t, string(received), "login-ok")
		mu.Unlock()
	case <-time.After(2 * time.Second):
		t.Fatal("expected login-ok handler to fire")
	}
}

func TestClient_DispatchesByType(t *testing.T) {
	client := NewClient("ws://unused")
	var got string
	client.On("peer-joined", func(payload json.RawMessage) {
		var m map[string]any
		_ = json.Unmarshal(payload, &m)
		got, _ = m["peerId"].(string)
	})

	client.mu.Lock()
	handlers := client.handlers["peer-joined"]
	client.mu.Unlock()
	require.Len(t, handlers, 1)
	for _, h := range handlers {
		h([]byte(`{"type":"peer-joined","peerId":"abc"}`))
	}
	assert.Equal(t, "abc", got)
}

func TestClient_SendDropsWhenNotOpen(t *testing.T) {
	client := NewClient("ws://unused")
	client.Send("login", map[string]string{"username": "alice"})
	assert.Len(t, client.send, 0)
}

func TestClient_SendEnqueuesWhenOpen(t *testing.T) {
	srv := newEchoServer(t, nil)
	defer srv.Close()

	client := NewClient(wsURL(srv))
	defer client.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))

	client.Send("login", map[string]string{"username": "alice"})

	select {
	case data := <-client.send:
		require.Contains(t, string(data), "login")
	case <-time.After(time.Second):
		t.Fatal("expected outbound frame to be enqueued")
	}
}

func TestClient_ConnectFailsOnBadURL(t *testing.T) {
	client := NewClient("ws://127.0.0.1:1")
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	err := client.Connect(ctx)
	assert.Error(t, err)
}

func TestClient_DisconnectSuppressesReconnect(t *testing.T) {
	srv := newEchoServer(t, nil)

	client := NewClient(wsURL(srv))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))

	client.Disconnect()
	srv.Close()

	client.mu.Lock()
	intentional := client.intentionalClose
	client.mu.Unlock()
	assert.True(t, intentional)
}

// TestClient_ReconnectExhaustionEmitsConnLost exercises spec property 10
// (reconnect bound: at most maxReconnectTries dials, then CONN_LOST) without
// the real 5*reconnectBackoff wait, by constructing a Client literal with a
// millisecond-scale backoff directly, the way the teacher's
// TestClient_CircuitBreaker builds a short-Timeout pkg/sfu.Client.
func TestClient_ReconnectExhaustionEmitsConnLost(t *testing.T) {
	const unreachable = "ws://127.0.0.1:1"

	client := &Client{
		serverURL:         unreachable,
		handlers:          make(map[string]map[int]Handler),
		send:              make(chan []byte, 64),
		closeCh:           make(chan struct{}),
		reconnectBackoff:  5 * time.Millisecond,
		maxReconnectTries: 3,
	}
	client.breaker = newReconnectBreaker(client.serverURL, client.reconnectBackoff, client.maxReconnectTries)

	errCh := make(chan *apperrors.SignalingError, 1)
	client.OnError(func(err *apperrors.SignalingError) { errCh <- err })

	start := time.Now()
	client.handleClose()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, apperrors.ErrConnLost))
	case <-time.After(2 * time.Second):
		t.Fatal("expected reconnect exhaustion to emit CONN_LOST")
	}
	assert.Less(t, time.Since(start), 2*time.Second)
}
