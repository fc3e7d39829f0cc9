package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/thor/internal/proto"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thord.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func problemKeys(problems []error) []string {
	var keys []string
	for _, p := range problems {
		var pe *ParseError
		if errors.As(p, &pe) {
			keys = append(keys, pe.Key)
		}
	}
	return keys
}

func TestDefaultDaemonConfig(t *testing.T) {
	cfg := DefaultDaemonConfig()

	assert.Equal(t, 2*time.Second, cfg.OSD.Timeout.Duration())
	assert.Equal(t, 5, cfg.Notes.Max)
	assert.Equal(t, 300, cfg.Notes.Width)
	assert.Equal(t, 10, cfg.Notes.Padding)
	assert.Equal(t, 20, cfg.Notes.BorderPadding)
	assert.Equal(t, QueueSize, cfg.Behavior.QueueSize)
	assert.Equal(t, time.Second, cfg.Behavior.ReloadDebounce.Duration())
	assert.Equal(t, 32, cfg.Cache.MaxEntries)
	assert.Empty(t, cfg.Normalize())
}

func TestLoadDaemonConfig_MissingFile(t *testing.T) {
	cfg, problems := LoadDaemonConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Empty(t, problems)
	assert.Equal(t, DefaultDaemonConfig(), cfg)
}

func TestLoadDaemonConfig_ParsesTOML(t *testing.T) {
	path := writeConfig(t, `
[osd]
theme = "slim"
timeout = "1500ms"
x = ":40"
y = "-100"

[notes]
max = 3
position = "top-left"
timeout = 8000

[display]
backend = "headless"
map_timeout = "0s"

[dbus]
enabled = true
`)

	cfg, problems := LoadDaemonConfig(path)
	assert.Empty(t, problems)

	assert.Equal(t, "slim", cfg.OSD.Theme)
	assert.Equal(t, 1500*time.Millisecond, cfg.OSD.Timeout.Duration())
	assert.Equal(t, Coord{Offset: 40, Absolute: true}, cfg.OSD.X)
	assert.Equal(t, Coord{Offset: -100}, cfg.OSD.Y)
	assert.Equal(t, 3, cfg.Notes.Max)
	assert.Equal(t, string(PositionTopLeft), cfg.Notes.Position)
	assert.Equal(t, 8*time.Second, cfg.Notes.Timeout.Duration())
	assert.Equal(t, BackendHeadless, cfg.Display.Backend)
	assert.Zero(t, cfg.Display.MapTimeout)
	assert.True(t, cfg.DBus.Enabled)

	// Untouched values keep their defaults.
	assert.Equal(t, "note", cfg.Notes.Theme)
	assert.Equal(t, 300, cfg.Notes.Width)
}

func TestLoadDaemonConfig_BadKeysAreSkippedIndividually(t *testing.T) {
	path := writeConfig(t, `
[osd]
timeout = "soon"
theme = "big"

[notes]
max = 99
width = 420
colour = "red"

[bogus]
x = 1

[behavior]
queue_size = 64
`)

	cfg, problems := LoadDaemonConfig(path)
	assert.ElementsMatch(t,
		[]string{"osd.timeout", "notes.max", "notes.colour", "bogus", "behavior.queue_size"},
		problemKeys(problems))

	assert.Equal(t, "big", cfg.OSD.Theme)
	assert.Equal(t, 2*time.Second, cfg.OSD.Timeout.Duration())
	assert.Equal(t, 5, cfg.Notes.Max)
	assert.Equal(t, 420, cfg.Notes.Width)
	assert.Equal(t, QueueSize, cfg.Behavior.QueueSize)

	for _, p := range problems {
		var pe *ParseError
		require.True(t, errors.As(p, &pe))
		assert.Equal(t, path, pe.Path)
	}
}

func TestLoadDaemonConfig_InvalidTOMLFallsBackToDefaults(t *testing.T) {
	path := writeConfig(t, `this is not valid toml [`)

	cfg, problems := LoadDaemonConfig(path)
	require.Len(t, problems, 1)
	assert.Equal(t, DefaultDaemonConfig(), cfg)
}

func TestCoord(t *testing.T) {
	var c Coord
	require.NoError(t, c.UnmarshalText([]byte(":25")))
	assert.Equal(t, 25, c.Resolve(1000, 100))

	require.NoError(t, c.UnmarshalText([]byte("-50")))
	assert.Equal(t, 400, c.Resolve(1000, 100))

	out, err := Coord{Offset: 7, Absolute: true}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, ":7", string(out))

	assert.Error(t, c.UnmarshalText([]byte(":-3")))
	assert.Error(t, c.UnmarshalText([]byte("left")))
}

func TestDaemonConfig_PerKind(t *testing.T) {
	cfg := DefaultDaemonConfig()
	cfg.Audio.OSD = "/snd/osd.wav"

	assert.Equal(t, 2*time.Second, cfg.DefaultTimeout(proto.KindOSD))
	assert.Equal(t, 5*time.Second, cfg.DefaultTimeout(proto.KindNote))
	assert.Equal(t, "default", cfg.ThemeFor(proto.KindOSD))
	assert.Equal(t, "note", cfg.ThemeFor(proto.KindNote))
	assert.Equal(t, "/snd/osd.wav", cfg.SoundFor(proto.KindOSD))
	assert.Empty(t, cfg.SoundFor(proto.KindNote))
}

func TestDaemonConfig_NeedsRestart(t *testing.T) {
	a := DefaultDaemonConfig()
	b := DefaultDaemonConfig()
	b.OSD.Theme = "other"
	assert.False(t, a.NeedsRestart(b))

	b.Notes.Max = 8
	assert.True(t, a.NeedsRestart(b))
}

func TestPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")

	p, err := DaemonConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/thor/thord.toml", p)

	p, err = ThemesDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/thor/themes", p)

	p, err = SocketPath()
	require.NoError(t, err)
	assert.Equal(t, "/custom/cache/thor/socket", p)

	p, err = ImageCachePath()
	require.NoError(t, err)
	assert.Equal(t, "/custom/cache/thor/images.db", p)
}

func TestPaths_HomeFallback(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "/home/tester")

	p, err := SocketPath()
	require.NoError(t, err)
	assert.Equal(t, "/home/tester/.cache/thor/socket", p)
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureDir(filepath.Join(dir, "a", "b", "socket")))

	info, err := os.Stat(filepath.Join(dir, "a", "b"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}
