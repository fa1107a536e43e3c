package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheCodeDaniel/voiceSync/pkg/audio"
	"github.com/TheCodeDaniel/voiceSync/pkg/session"
)

var (
	joinServerURL string
	joinUsername  string
)

var joinCmd = &cobra.Command{
	Use:   "join <roomKey>",
	Short: "Join an existing room by its room key",
	Args:  cobra.ExactArgs(1),
	RunE:  runJoin,
}

func init() {
	joinCmd.Flags().StringVarP(&joinServerURL, "server", "s", "", "signaling server URL (defaults to $VOICESYNC_SERVER)")
	joinCmd.Flags().StringVarP(&joinUsername, "username", "u", "", "display name")
}

func runJoin(c *cobra.Command, args []string) error {
	roomKey := args[0]

	serverURL, err := resolveServerURL(joinServerURL)
	if err != nil {
		return err
	}
	if joinUsername == "" {
		return fmt.Errorf("-u/--username is required")
	}

	sess := session.New(serverURL, audio.NewStub())
	sess.OnError(func(err error) { fmt.Fprintln(os.Stderr, "error:", err) })
	sess.OnParticipantUpdate(func(ps []*session.Participant) {
		fmt.Printf("participants: %d\n", len(ps))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sess.Connect(ctx, joinUsername); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if err := sess.JoinRoom(ctx, roomKey); err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	fmt.Printf("joined room %s, press Ctrl+C to leave\n", roomKey)

	waitForInterrupt()
	sess.Leave()
	return nil
}
