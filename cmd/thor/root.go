// Package main provides the thor client for the thord display daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/thor/internal/client"
	"github.com/jmylchreest/thor/internal/config"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

var globalOpts struct {
	socket string
}

var rootCmd = &cobra.Command{
	Use:   "thor",
	Short: "Send popups to the thord display daemon",
	Long: `thor sends on-screen display and notification requests to thord.

  thor osd -b 40/100 Volume
  thor note -i ~/pics/mail.png "<b>Mail</b>" "3 new messages"
  thor pid`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalOpts.socket, "socket", "",
		"Path to the daemon socket (default: ~/.cache/thor/socket)")
}

// newClient returns a client for --socket or the default socket path.
func newClient() (*client.Client, error) {
	path := globalOpts.socket
	if path == "" {
		p, err := config.SocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve socket path: %w", err)
		}
		path = p
	}
	return client.New(path), nil
}
