package main

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/thor/internal/config"
	"github.com/jmylchreest/thor/internal/daemon"
	"github.com/jmylchreest/thor/internal/display"
	"github.com/jmylchreest/thor/internal/display/gtkui"
)

const appID = "io.github.jmylchreest.thord"

// Screen size reported by the headless backend.
const (
	headlessWidth  = 1920
	headlessHeight = 1080
)

// displayDriver returns the backend factory for the named backend and the
// function that runs the daemon loop around it. The GTK driver runs its
// main loop on the calling goroutine and the daemon loop beside it.
func displayDriver(backend string, logger *slog.Logger, loop func(context.Context) error) (daemon.BackendFactory, func(context.Context) error) {
	if backend != config.BackendGTK {
		factory := func(*config.DaemonConfig) (display.Backend, error) {
			return display.NewHeadless(headlessWidth, headlessHeight, logger), nil
		}
		return factory, loop
	}

	rt := gtkui.NewRuntime(appID, logger)
	factory := func(cfg *config.DaemonConfig) (display.Backend, error) {
		return gtkui.NewBackend(rt, cfg.Display.Monitor, logger), nil
	}
	run := func(ctx context.Context) error {
		return rt.Run(func() error { return loop(ctx) })
	}
	return factory, run
}
