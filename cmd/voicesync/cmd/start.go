package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheCodeDaniel/voiceSync/pkg/audio"
	"github.com/TheCodeDaniel/voiceSync/pkg/session"
)

var (
	startServerURL string
	startUsername  string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Create a new room and print its room key",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().StringVarP(&startServerURL, "server", "s", "", "signaling server URL (defaults to $VOICESYNC_SERVER)")
	startCmd.Flags().StringVarP(&startUsername, "username", "u", "", "display name")
}

func resolveServerURL(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("VOICESYNC_SERVER"); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("no signaling server URL: pass -s or set VOICESYNC_SERVER")
}

func runStart(c *cobra.Command, args []string) error {
	serverURL, err := resolveServerURL(startServerURL)
	if err != nil {
		return err
	}
	if startUsername == "" {
		return fmt.Errorf("-u/--username is required")
	}

	sess := session.New(serverURL, audio.NewStub())
	sess.OnError(func(err error) { fmt.Fprintln(os.Stderr, "error:", err) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sess.Connect(ctx, startUsername); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	roomKey, err := sess.CreateRoom(ctx)
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	fmt.Printf("room key: %s\n", roomKey)
	fmt.Println("waiting for peers, press Ctrl+C to leave")

	waitForInterrupt()
	sess.Leave()
	return nil
}

func waitForInterrupt() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}
