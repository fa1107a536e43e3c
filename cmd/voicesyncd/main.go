// Command voicesyncd runs the VoiceSync signaling rendezvous server:
// WebSocket upgrade on /ws, health checks, and Prometheus metrics.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/TheCodeDaniel/voiceSync/internal/v1/config"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/logging"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/ratelimit"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/server"
)

func main() {
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		panic(err)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		panic(err)
	}

	limiter, err := ratelimit.NewRateLimiter(cfg)
	if err != nil {
		logging.Fatal(context.Background(), "failed to construct rate limiter", zap.Error(err))
	}

	hub := server.NewHub(cfg)
	router := server.NewRouter(cfg, hub, limiter)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(context.Background(), "voicesyncd starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(context.Background(), "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(context.Background(), "shutting down voicesyncd")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error(context.Background(), "forced shutdown", zap.Error(err))
	}

	logging.Info(context.Background(), "voicesyncd exited")
}
