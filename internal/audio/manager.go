package audio

import (
	"log/slog"
	"os"
	"sync"

	"github.com/jmylchreest/thor/internal/config"
	"github.com/jmylchreest/thor/internal/proto"
)

// Manager plays the configured sound for each popup kind.
type Manager struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	player  *Player
	enabled bool
	sounds  map[proto.Kind]string

	wg sync.WaitGroup
}

// NewManager creates a manager for the system audio device.
func NewManager(cfg *config.DaemonConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return newManager(NewPlayer(logger), cfg, logger)
}

func newManager(player *Player, cfg *config.DaemonConfig, logger *slog.Logger) *Manager {
	m := &Manager{
		logger: logger,
		player: player,
		sounds: make(map[proto.Kind]string),
	}
	m.Apply(cfg)
	return m
}

// Apply takes over the audio settings of cfg. It is called at start and
// on every reload.
func (m *Manager) Apply(cfg *config.DaemonConfig) {
	sounds := make(map[proto.Kind]string)
	for _, kind := range []proto.Kind{proto.KindOSD, proto.KindNote} {
		path := cfg.SoundFor(kind)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			m.logger.Warn("sound file not found", "kind", kind, "path", path)
			continue
		}
		sounds[kind] = path
	}

	m.mu.Lock()
	m.enabled = cfg.Audio.Enabled
	m.sounds = sounds
	m.mu.Unlock()

	m.player.SetVolume(float64(cfg.Audio.Volume) / 100.0)
	if !cfg.Audio.Enabled {
		return
	}
	for kind, path := range sounds {
		if err := m.player.Preload(path); err != nil {
			m.logger.Warn("failed to preload sound", "kind", kind, "path", path, "error", err)
		}
	}
	m.logger.Debug("audio configured", "sounds", len(sounds), "volume", cfg.Audio.Volume)
}

// PlayFor starts the sound for kind in the background. Failures are logged.
func (m *Manager) PlayFor(kind proto.Kind) {
	m.mu.RLock()
	path, ok := m.sounds[kind]
	enabled := m.enabled
	m.mu.RUnlock()
	if !enabled || !ok {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.player.Play(path); err != nil {
			m.logger.Debug("failed to play sound", "kind", kind, "path", path, "error", err)
		}
	}()
}

// Close waits for pending playback requests and releases the audio device.
func (m *Manager) Close() {
	m.wg.Wait()
	m.player.Close()
	m.logger.Debug("audio manager stopped")
}
