package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TheCodeDaniel/voiceSync/internal/v1/config"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/logging"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/ratelimit"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/server"
)

var (
	serverPort string
	serverHost string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the signaling rendezvous server",
	RunE:  runServer,
}

func init() {
	serverCmd.Flags().StringVarP(&serverPort, "port", "p", "3000", "port to listen on")
	serverCmd.Flags().StringVarP(&serverHost, "host", "H", "0.0.0.0", "host/interface to bind")
}

func runServer(c *cobra.Command, args []string) error {
	os.Setenv("PORT", serverPort)
	os.Setenv("HOST", serverHost)

	cfg, err := config.ValidateEnv()
	if err != nil {
		return err
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		return err
	}

	limiter, err := ratelimit.NewRateLimiter(cfg)
	if err != nil {
		return err
	}

	hub := server.NewHub(cfg)
	router := server.NewRouter(cfg, hub, limiter)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("voicesync server listening on %s\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logging.Error(context.Background(), "server failed to bind", zap.Error(err))
		os.Exit(1)
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	return nil
}
