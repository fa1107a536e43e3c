package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCodeDaniel/voiceSync/internal/v1/apperrors"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/config"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/ratelimit"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/server"
	"github.com/TheCodeDaniel/voiceSync/pkg/audio"

	"net/http/httptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRoomServer(t *testing.T) (*httptest.Server, func()) {
	t.Helper()
	cfg := &config.Config{
		AllowedOrigins:     "*",
		RateLimitApiGlobal: "10000-M",
		RateLimitWsConnect: "10000-M",
	}
	limiter, err := ratelimit.NewRateLimiter(cfg)
	require.NoError(t, err)

	hub := server.NewHub(cfg)
	router := server.NewRouter(cfg, hub, limiter)
	srv := httptest.NewServer(router)
	return srv, srv.Close
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestSession_ConnectCreateJoin(t *testing.T) {
	srv, closeFn := newTestRoomServer(t)
	defer closeFn()

	host := New(wsURL(srv), audio.NewStub())
	guest := New(wsURL(srv), audio.NewStub())
	defer host.Leave()
	defer guest.Leave()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, host.Connect(ctx, "alice"))
	require.NoError(t, guest.Connect(ctx, "bob"))

	roomKey, err := host.CreateRoom(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, roomKey)

	var mu sync.Mutex
	var hostUpdates int
	host.OnParticipantUpdate(func(ps []*Participant) {
		mu.Lock()
		hostUpdates++
		mu.Unlock()
	})

	require.NoError(t, guest.JoinRoom(ctx, roomKey))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return hostUpdates > 0
	}, 2*time.Second, 20*time.Millisecond)

	guest.mu.Lock()
	_, hasHostParticipant := guest.participants[host.selfPeerID]
	guest.mu.Unlock()
	assert.True(t, hasHostParticipant)
}

func TestSession_SetMutedUpdatesSelfParticipant(t *testing.T) {
	srv, closeFn := newTestRoomServer(t)
	defer closeFn()

	sess := New(wsURL(srv), audio.NewStub())
	defer sess.Leave()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sess.Connect(ctx, "alice"))

	sess.SetMuted(true)

	sess.mu.Lock()
	p := sess.participants[sess.selfPeerID]
	sess.mu.Unlock()
	require.NotNil(t, p)
	assert.True(t, p.IsMuted)
}

func TestSession_LeaveRunsCleanupWithoutRoom(t *testing.T) {
	srv, closeFn := newTestRoomServer(t)
	defer closeFn()

	sess := New(wsURL(srv), audio.NewStub())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sess.Connect(ctx, "alice"))

	ended := make(chan struct{})
	sess.OnEnded(func() { close(ended) })

	sess.Leave()

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("expected OnEnded to fire")
	}

	sess.mu.Lock()
	count := len(sess.participants)
	sess.mu.Unlock()
	assert.Equal(t, 0, count)
}

func TestSession_ConnectFailsWithBadUsername(t *testing.T) {
	srv, closeFn := newTestRoomServer(t)
	defer closeFn()

	a := New(wsURL(srv), audio.NewStub())
	b := New(wsURL(srv), audio.NewStub())
	defer a.Leave()
	defer b.Leave()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Connect(ctx, "dupe"))

	err := b.Connect(ctx, "dupe")
	assert.Error(t, err)
}

// TestSession_CallTimesOutAfterRequestTimeout exercises spec property 8
// (request timeout rejects with a SignalingError after requestTimeout) with
// a millisecond-scale override instead of a real 10s wait, the same
// direct-construction-with-short-timing approach used for
// TestClient_ReconnectExhaustionEmitsConnLost in pkg/signaling.
func TestSession_CallTimesOutAfterRequestTimeout(t *testing.T) {
	sess := New("ws://unused", audio.NewStub())
	sess.requestTimeout = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	_, err := sess.call(ctx, "never-fires-ok", "never-fires-error", func() {})
	elapsed := time.Since(start)

	require.Error(t, err)
	var sigErr *apperrors.SignalingError
	require.True(t, errors.As(err, &sigErr))
	assert.Less(t, elapsed, 500*time.Millisecond)
}
