package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/thor/internal/audio"
	"github.com/jmylchreest/thor/internal/bridge"
	"github.com/jmylchreest/thor/internal/config"
	"github.com/jmylchreest/thor/internal/dbus"
	"github.com/jmylchreest/thor/internal/display"
	"github.com/jmylchreest/thor/internal/imgcache"
	"github.com/jmylchreest/thor/internal/metrics"
	"github.com/jmylchreest/thor/internal/proto"
	"github.com/jmylchreest/thor/internal/theme"
)

const (
	// ReceiveTimeout bounds reading one request from a client.
	ReceiveTimeout = time.Second
	// cacheSaveTimeout bounds persisting the image cache at exit.
	cacheSaveTimeout = 5 * time.Second
	// acceptBackoff is the pause after a failed accept.
	acceptBackoff = 100 * time.Millisecond
)

// BackendFactory creates the display backend for cfg. It is called at
// start and again on every full reload.
type BackendFactory func(cfg *config.DaemonConfig) (display.Backend, error)

// Options configures a Daemon.
type Options struct {
	// ConfigPath is the file reloads read from.
	ConfigPath string
	// Config is the already loaded configuration. Nil loads ConfigPath.
	Config *config.DaemonConfig
	// ConfigProblems found while loading Config, shown once at start.
	ConfigProblems []error

	// Listener is the bound daemon socket. SocketPath is removed at exit.
	Listener   net.Listener
	SocketPath string

	// ThemesDir holds user themes. Empty uses the default directory.
	ThemesDir string

	// Backend pins the backend name, overriding display.backend.
	Backend    string
	NewBackend BackendFactory

	Bridge  *bridge.Bridge
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// HandleSignals relays INT, TERM and HUP into the loop.
	HandleSignals bool

	Version string
	// PID answers PID queries. Zero uses the process ID.
	PID int
}

// Daemon is the thord event loop and the state it owns.
type Daemon struct {
	opts    Options
	logger  *slog.Logger
	bridge  *bridge.Bridge
	metrics *metrics.Metrics
	backend string

	cfg     *config.DaemonConfig
	loader  *theme.Loader
	themes  display.Themes
	manager *display.Manager
	images  *imgcache.Cache
	audio   *audio.Manager
	watcher *ConfigWatcher
	notices *InternalNotifier
	dbus    *dbus.NotificationServer
	drops   map[string]*dropLimiter

	incoming chan *proto.Message
	ready    chan struct{}
	started  time.Time
}

// New creates a daemon. Nothing runs until Run.
func New(opts Options) (*Daemon, error) {
	if opts.Listener == nil {
		return nil, errors.New("daemon needs a listener")
	}
	if opts.NewBackend == nil {
		return nil, errors.New("daemon needs a backend factory")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Bridge == nil {
		opts.Bridge = bridge.New(bridge.DefaultBuffer, opts.Logger)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.PID == 0 {
		opts.PID = os.Getpid()
	}
	if opts.ThemesDir == "" {
		if dir, err := config.ThemesDir(); err == nil {
			opts.ThemesDir = dir
		}
	}
	if opts.Config == nil {
		opts.Config, opts.ConfigProblems = config.LoadDaemonConfig(opts.ConfigPath)
	}
	if opts.Backend != "" {
		opts.Config.Display.Backend = opts.Backend
	}

	d := &Daemon{
		opts:     opts,
		logger:   opts.Logger,
		bridge:   opts.Bridge,
		metrics:  opts.Metrics,
		backend:  opts.Config.Display.Backend,
		cfg:      opts.Config,
		drops:    make(map[string]*dropLimiter),
		incoming: make(chan *proto.Message),
		ready:    make(chan struct{}),
	}
	d.notices = NewInternalNotifier(d.showNotice, d.logger)
	d.notices.SetEnabled(d.cfg.Behavior.InternalNotices)
	return d, nil
}

// Bridge returns the event bridge the loop reads.
func (d *Daemon) Bridge() *bridge.Bridge { return d.bridge }

// Ready is closed once the daemon serves requests.
func (d *Daemon) Ready() <-chan struct{} { return d.ready }

// Run starts every component and runs the loop until a terminate event,
// a fatal backend error or ctx cancellation. It returns nil after a
// voluntary shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	d.started = time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if d.opts.HandleSignals {
		stop := d.bridge.RelaySignals()
		defer stop()
	}

	if err := d.start(ctx); err != nil {
		_ = d.opts.Listener.Close()
		d.shutdown()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.accept(gctx) })
	if path := d.cfg.Metrics.Textfile; path != "" {
		interval := d.cfg.Metrics.Interval.Duration()
		g.Go(func() error {
			if err := d.metrics.Run(gctx, path, interval, d.logger); err != nil {
				d.logger.Warn("failed to export metrics", "path", path, "error", err)
			}
			return nil
		})
	}

	close(d.ready)
	err := d.loop(gctx)

	cancel()
	if gerr := g.Wait(); gerr != nil && err == nil {
		err = gerr
	}
	d.shutdown()
	return err
}

func (d *Daemon) start(ctx context.Context) error {
	var themeProblems map[string][]error
	d.loader, d.themes, themeProblems = d.loadThemes(d.cfg)

	d.images = imgcache.New(d.cfg.Cache.MaxEntries, d.logger)
	if path := d.imageCachePath(); path != "" {
		if n, err := d.images.Load(ctx, path); err != nil {
			d.logger.Warn("failed to load image cache", "path", path, "error", err)
		} else if n > 0 {
			d.logger.Debug("image cache loaded", "path", path, "entries", n)
		}
	}

	d.audio = audio.NewManager(d.cfg, d.logger)

	if err := d.startDisplay(); err != nil {
		return err
	}

	watcher, err := NewConfigWatcher(d.bridge, d.cfg.Behavior.ReloadDebounce.Duration(), d.logger)
	if err != nil {
		d.logger.Warn("config hot reload disabled", "error", err)
	} else {
		d.watcher = watcher
		d.watch()
	}

	d.applyDBus()

	d.logger.Info("thord ready",
		"version", d.opts.Version,
		"pid", d.opts.PID,
		"socket", d.opts.SocketPath,
		"backend", d.backend,
		"notes", d.manager.Capacity(),
	)
	d.reportProblems(d.opts.ConfigProblems, themeProblems)
	return nil
}

// startDisplay creates a backend and a manager for the current config.
func (d *Daemon) startDisplay() error {
	backend, err := d.opts.NewBackend(d.cfg)
	if err != nil {
		return fmt.Errorf("failed to create display backend: %w", err)
	}

	m := display.NewManager(backend, display.Options{
		Config:   d.cfg,
		Themes:   d.themes,
		Images:   d.images,
		Poster:   d.bridge,
		Logger:   d.logger,
		OnRender: d.onRender,
	})
	if err := m.Start(); err != nil {
		_ = m.Close()
		return fmt.Errorf("failed to start display: %w", err)
	}
	d.manager = m
	return nil
}

// loadThemes builds a fresh loader and resolves the theme of each kind.
// Problems are logged here and returned by theme name so they can be
// shown once the display is up.
func (d *Daemon) loadThemes(cfg *config.DaemonConfig) (*theme.Loader, display.Themes, map[string][]error) {
	loader := theme.NewLoader(d.opts.ThemesDir, d.logger)
	themes := display.Themes{}
	problems := make(map[string][]error)
	for _, kind := range []proto.Kind{proto.KindOSD, proto.KindNote} {
		name := cfg.ThemeFor(kind)
		th, errs := loader.LoadTheme(name)
		for _, p := range errs {
			d.logger.Warn("theme problem", "theme", name, "error", p)
		}
		if len(errs) > 0 {
			problems[name] = errs
		}
		themes[kind] = th
	}
	return loader, themes, problems
}

// watch points the watcher at the config file and the configured themes.
func (d *Daemon) watch() {
	if d.watcher == nil {
		return
	}
	paths := []string{d.opts.ConfigPath}
	if dir := d.loader.ThemesDir(); dir != "" {
		for _, kind := range []proto.Kind{proto.KindOSD, proto.KindNote} {
			paths = append(paths, filepath.Join(dir, d.cfg.ThemeFor(kind)+".yaml"))
		}
	}
	paths = append(paths, d.loader.Paths()...)
	if err := d.watcher.Watch(paths...); err != nil {
		d.logger.Debug("some config paths are not watched", "error", err)
	}
}

func (d *Daemon) applyDBus() {
	switch {
	case d.cfg.DBus.Enabled && d.dbus == nil:
		srv := dbus.NewNotificationServer(dbus.Options{
			Poster: d.bridge,
			Info: dbus.ServerInfo{
				Name:        "thord",
				Vendor:      "thor",
				Version:     d.opts.Version,
				SpecVersion: "1.2",
			},
			DefaultTimeout: d.cfg.DBus.DefaultTimeout.Duration(),
		}, d.logger)
		if err := srv.Start(); err != nil {
			d.logger.Warn("failed to start D-Bus front-end", "error", err)
			return
		}
		d.dbus = srv
	case !d.cfg.DBus.Enabled && d.dbus != nil:
		if err := d.dbus.Stop(); err != nil {
			d.logger.Warn("failed to stop D-Bus front-end", "error", err)
		}
		d.dbus = nil
	}
}

func (d *Daemon) imageCachePath() string {
	if d.cfg.Cache.Images != "" {
		return d.cfg.Cache.Images
	}
	path, err := config.ImageCachePath()
	if err != nil {
		return ""
	}
	return path
}

// reportProblems logs config problems and shows notices for config and
// theme problems. It reports whether there were any.
func (d *Daemon) reportProblems(cfgProblems []error, themeProblems map[string][]error) bool {
	for _, p := range cfgProblems {
		d.logger.Warn("config problem", "error", p)
	}
	if len(cfgProblems) > 0 {
		d.notices.NotifyConfigError(cfgProblems)
	}
	for name, errs := range themeProblems {
		d.notices.NotifyThemeError(name, errs)
	}
	return len(cfgProblems) > 0 || len(themeProblems) > 0
}

// shutdown releases everything start acquired. It runs on the loop
// goroutine after the acceptor has stopped.
func (d *Daemon) shutdown() {
	d.bridge.Close()

	if d.dbus != nil {
		if err := d.dbus.Stop(); err != nil {
			d.logger.Warn("failed to stop D-Bus front-end", "error", err)
		}
		d.dbus = nil
	}
	if d.watcher != nil {
		_ = d.watcher.Close()
	}

	if d.manager != nil {
		queued := d.manager.QueueLen()
		if err := d.manager.Close(); err != nil {
			d.logger.Warn("errors while closing display", "error", err)
		}
		d.metrics.DroppedN(metrics.ReasonShutdown, queued)
	}
	d.drainEvents()

	if d.images != nil {
		if path := d.imageCachePath(); path != "" {
			ctx, cancel := context.WithTimeout(context.Background(), cacheSaveTimeout)
			if err := d.images.Save(ctx, path); err != nil {
				d.logger.Warn("failed to save image cache", "path", path, "error", err)
			}
			cancel()
		}
	}
	if d.audio != nil {
		d.audio.Close()
	}

	if path := d.cfg.Metrics.Textfile; path != "" {
		if err := d.metrics.WriteTextfile(path); err != nil {
			d.logger.Warn("failed to export metrics", "path", path, "error", err)
		}
	}

	if d.opts.SocketPath != "" {
		if err := os.Remove(d.opts.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.logger.Warn("failed to remove socket", "path", d.opts.SocketPath, "error", err)
		}
	}

	uptime := strings.TrimSpace(humanize.RelTime(d.started, time.Now(), "", ""))
	d.logger.Info("thord stopped", "uptime", uptime, "dropped_events", d.bridge.Dropped())
}

// drainEvents releases messages still waiting in the bridge.
func (d *Daemon) drainEvents() {
	for {
		select {
		case ev := <-d.bridge.Events():
			ev.Message.Release()
		default:
			return
		}
	}
}
