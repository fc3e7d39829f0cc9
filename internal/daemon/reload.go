package daemon

import (
	"fmt"

	"github.com/jmylchreest/thor/internal/config"
	"github.com/jmylchreest/thor/internal/metrics"
)

// reload re-reads the config and the themes and swaps them in wholesale.
//
// A soft reload keeps the windows on screen; they pick up the new theme
// on their next render. A full reload also tears down the display,
// discarding visible popups and queued messages, and builds it again. A
// soft reload turns into a full one when the new config changes the
// pool or the display connection.
//
// The returned error is fatal: the display could not be re-established.
func (d *Daemon) reload(cause string, full bool) error {
	next, problems := config.LoadDaemonConfig(d.opts.ConfigPath)
	switch {
	case d.opts.Backend != "":
		next.Display.Backend = d.opts.Backend
	case next.Display.Backend != d.backend:
		d.logger.Warn("display backend change needs a daemon restart",
			"running", d.backend,
			"configured", next.Display.Backend,
		)
		d.notices.NotifyRestartNeeded("display.backend")
		next.Display.Backend = d.backend
	}
	if !full && d.cfg.NeedsRestart(next) {
		d.logger.Info("config change needs a display restart")
		full = true
	}

	loader, themes, themeProblems := d.loadThemes(next)

	if full {
		queued := d.manager.QueueLen()
		if err := d.manager.Close(); err != nil {
			d.logger.Warn("errors while closing display", "error", err)
		}
		d.manager = nil
		d.metrics.DroppedN(metrics.ReasonReload, queued)
	}

	d.cfg, d.loader, d.themes = next, loader, themes

	if full {
		if err := d.startDisplay(); err != nil {
			return fmt.Errorf("failed to re-establish display after reload: %w", err)
		}
	} else {
		d.manager.Reconfigure(next, themes)
	}

	d.audio.Apply(next)
	d.notices.SetEnabled(next.Behavior.InternalNotices)
	if d.watcher != nil {
		d.watcher.SetDebounce(next.Behavior.ReloadDebounce.Duration())
		d.watch()
	}
	d.applyDBus()

	d.metrics.Reloaded(cause)
	d.logger.Info("configuration reloaded",
		"cause", cause,
		"full", full,
		"problems", len(problems),
	)
	if !d.reportProblems(problems, themeProblems) {
		d.notices.NotifyConfigReloaded(full)
	}
	return nil
}
