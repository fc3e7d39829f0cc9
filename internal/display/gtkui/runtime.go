// Package gtkui draws popups as GTK4 layer-shell windows.
//
// GTK must only be touched from the thread running its main loop. Runtime
// owns that loop and Backend marshals every call onto it, so the display
// manager can drive it from any goroutine.
package gtkui

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	"github.com/diamondburned/gotk4/pkg/gio/v2"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
)

// ErrStopped is returned for calls made after the main loop exited.
var ErrStopped = errors.New("gtk main loop stopped")

// Runtime runs the GTK application.
type Runtime struct {
	app    *adw.Application
	logger *slog.Logger

	started  bool
	done     chan struct{}
	doneOnce sync.Once
}

// NewRuntime creates the application. Nothing is shown until Run.
func NewRuntime(appID string, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		app:    adw.NewApplication(appID, gio.ApplicationNonUnique),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run runs the main loop on the calling goroutine, which must be locked to
// the process main thread. Once the application is active, fn is started
// on its own goroutine; the loop quits when fn returns and Run returns
// fn's error.
func (r *Runtime) Run(fn func() error) error {
	fnErr := make(chan error, 1)

	r.app.ConnectActivate(func() {
		if r.started {
			r.logger.Warn("application already running")
			return
		}
		r.started = true

		// Popup windows are hidden most of the time; keep the
		// application alive without a visible window.
		r.app.Hold()

		go func() {
			fnErr <- fn()
			glib.IdleAdd(func() {
				r.app.Release()
				r.app.Quit()
			})
		}()
	})
	r.app.ConnectShutdown(func() {
		r.logger.Debug("gtk application shutting down")
		r.stop()
	})

	status := r.app.Run([]string{os.Args[0]})
	r.stop()

	select {
	case err := <-fnErr:
		if err != nil {
			return err
		}
	default:
	}
	if status != 0 {
		return fmt.Errorf("gtk application exited with status %d", status)
	}
	return nil
}

// Done is closed once the main loop has exited.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}

// Invoke runs fn on the main loop and waits for it to finish.
func (r *Runtime) Invoke(fn func()) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}

	finished := make(chan struct{})
	glib.IdleAdd(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
		return nil
	case <-r.done:
		return ErrStopped
	}
}

// Application returns the underlying application.
func (r *Runtime) Application() *adw.Application {
	return r.app
}

func (r *Runtime) stop() {
	r.doneOnce.Do(func() { close(r.done) })
}
