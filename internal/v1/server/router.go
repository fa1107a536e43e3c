package server

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TheCodeDaniel/voiceSync/internal/v1/config"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/health"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/ratelimit"
)

// NewRouter builds the gin engine exposing /ws, /health, /ping, and
// /metrics, in the shape of the teacher's cmd/v1/session/main.go wiring.
func NewRouter(cfg *config.Config, hub *Hub, limiter *ratelimit.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(limiter.GlobalMiddleware())

	healthHandler := health.NewHandler()
	router.GET("/health", healthHandler.Health)
	router.GET("/ping", healthHandler.Ping)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/ws", func(c *gin.Context) {
		if !limiter.CheckWebSocketConnect(c) {
			return
		}
		hub.ServeWs(c)
	})

	return router
}
