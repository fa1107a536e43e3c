package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "voicesync",
	Short:   "Real-time terminal voice chat over WebRTC",
	Long:    `VoiceSync is a command-line voice chat client. It signals room membership through a central rendezvous server and carries audio peer-to-peer over WebRTC.`,
	Version: "v0.1.0",
}

// Execute adds all child commands to the root command and runs it, exiting
// 0 on an interrupt signal and 1 on command failure.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		for s := range sig {
			fmt.Println(s.String())
			os.Exit(0)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(joinCmd)
}
