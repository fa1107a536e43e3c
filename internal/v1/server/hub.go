package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/TheCodeDaniel/voiceSync/internal/v1/config"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/dispatch"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/logging"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/metrics"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/protocol"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/registry"
)

// Hub owns the dispatcher's ServerState and upgrades incoming HTTP requests
// on /ws into signaling Clients.
type Hub struct {
	dispatcher *dispatch.Dispatcher
	upgrader   websocket.Upgrader
}

// NewHub constructs a Hub with a fresh ServerState, restricting WebSocket
// upgrades to the configured allowed origins.
func NewHub(cfg *config.Config) *Hub {
	allowed := strings.Split(cfg.AllowedOrigins, ",")
	allowAll := cfg.AllowedOrigins == "*"

	return &Hub{
		dispatcher: dispatch.NewDispatcher(dispatch.NewServerState()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, a := range allowed {
					if strings.TrimSpace(a) == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// ServeWs upgrades the HTTP request to a WebSocket connection and spins up
// the Client's readPump/writePump goroutine pair.
func (h *Hub) ServeWs(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	peerID := registry.PeerIDType(uuid.NewString())
	client := &Client{
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		id:         peerID,
		dispatch:   h.dispatch,
		disconnect: h.handleDisconnect,
	}

	metrics.IncConnection()
	logging.Info(context.Background(), "client connected", zap.String("peer_id", string(peerID)))

	go client.writePump()
	go client.readPump()

	client.Send(mustEncode(protocol.TypeConnected, protocol.ConnectedEvt{PeerID: string(peerID)}))
}

func (h *Hub) dispatch(client *Client, raw []byte) {
	h.dispatcher.HandleMessage(context.Background(), client, raw)
}

func (h *Hub) handleDisconnect(client *Client) {
	h.dispatcher.HandleDisconnect(context.Background(), client)
	logging.Info(context.Background(), "client disconnected", zap.String("peer_id", string(client.id)))
}

func mustEncode(msgType string, payload any) []byte {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		return nil
	}
	return data
}
