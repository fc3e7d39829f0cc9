// Package main is the entry point for the thord display daemon.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/thor/internal/config"
	"github.com/jmylchreest/thor/internal/daemon"
	"github.com/jmylchreest/thor/internal/logging"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

var opts struct {
	configPath string
	logFile    string
	backend    string
	socket     string
	verbose    bool
	foreground bool
}

var rootCmd = &cobra.Command{
	Use:   "thord",
	Short: "On-screen display and notification daemon",
	Long: `thord shows on-screen display popups and stacked notifications.

Clients such as thor talk to it over a unix socket. Only one thord runs
per user; starting a second one prints the PID of the running daemon.

Unless --nodaemon is given, thord binds its socket and then detaches from
the terminal, logging to syslog or --logfile.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	// GTK must own the main thread.
	runtime.LockOSThread()

	f := rootCmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "",
		"Path to config file (default: ~/.config/thor/thord.toml)")
	f.StringVarP(&opts.logFile, "logfile", "l", "",
		"Append log output to this file instead of syslog")
	f.BoolVarP(&opts.verbose, "verbose", "v", false,
		"Enable debug logging")
	f.BoolVarP(&opts.foreground, "nodaemon", "n", false,
		"Stay in the foreground and log to stderr")
	f.StringVar(&opts.backend, "backend", "",
		"Display backend, gtk or headless (overrides display.backend)")
	f.StringVar(&opts.socket, "socket", "",
		"Path to the daemon socket (default: ~/.cache/thor/socket)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if opts.backend != "" && opts.backend != config.BackendGTK && opts.backend != config.BackendHeadless {
		return fmt.Errorf("unknown backend %q", opts.backend)
	}

	configPath := opts.configPath
	if configPath == "" {
		p, err := config.DaemonConfigPath()
		if err != nil {
			return fmt.Errorf("failed to resolve config path: %w", err)
		}
		configPath = p
	}
	socketPath := opts.socket
	if socketPath == "" {
		p, err := config.SocketPath()
		if err != nil {
			return fmt.Errorf("failed to resolve socket path: %w", err)
		}
		socketPath = p
	}

	l, inherited, err := inheritedListener()
	if err != nil {
		return err
	}
	if !inherited {
		l, err = daemon.Listen(socketPath, stderrLogger())
		if err != nil {
			return err
		}
		if !opts.foreground {
			if err := daemonize(l); err != nil {
				_ = l.Close()
				return fmt.Errorf("failed to daemonize: %w", err)
			}
			return nil
		}
	}

	logger, sink, err := logging.Setup(logging.Options{
		File:       opts.logFile,
		Foreground: opts.foreground,
		Verbose:    opts.verbose,
	})
	if err != nil {
		_ = l.Close()
		return err
	}
	defer func() { _ = sink.Close() }()
	slog.SetDefault(logger)

	cfg, problems := config.LoadDaemonConfig(configPath)
	backend := cfg.Display.Backend
	if opts.backend != "" {
		backend = opts.backend
	}
	logger.Info("starting thord", "version", version, "backend", backend, "config", configPath)

	var d *daemon.Daemon
	factory, runLoop := displayDriver(backend, logger, func(ctx context.Context) error {
		return d.Run(ctx)
	})

	d, err = daemon.New(daemon.Options{
		ConfigPath:     configPath,
		Config:         cfg,
		ConfigProblems: problems,
		Listener:       l,
		SocketPath:     socketPath,
		Backend:        opts.backend,
		NewBackend:     factory,
		Logger:         logger,
		HandleSignals:  true,
		Version:        version,
	})
	if err != nil {
		_ = l.Close()
		return err
	}

	if err := runLoop(cmd.Context()); err != nil {
		logger.Error("thord exited with error", "error", err)
		return err
	}
	return nil
}

// stderrLogger is used before the logging sink is known.
func stderrLogger() *slog.Logger {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
