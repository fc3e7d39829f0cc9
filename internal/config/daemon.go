package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/thor/internal/proto"
)

// QueueSize is the fixed capacity of the pending-message queue.
const QueueSize = 16

// Sentinel errors for config problems.
var (
	ErrUnknownKey = errors.New("unknown key")
	ErrNotTable   = errors.New("expected a table")
	ErrOutOfRange = errors.New("value out of range")
)

// ParseError describes one problem found while loading a config or theme
// file. It is logged and the affected value keeps its default.
type ParseError struct {
	Path string
	Key  string
	Err  error
}

func (e *ParseError) Error() string {
	switch {
	case e.Key == "":
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	case e.Path == "":
		return fmt.Sprintf("%s: %v", e.Key, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Key, e.Err)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "2s", "500ms", "1m", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '2s', '500ms' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Coord is one axis of the OSD position. A leading ':' makes it an
// absolute screen coordinate, otherwise it is an offset from the centre.
type Coord struct {
	Offset   int
	Absolute bool
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Coord) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	abs := strings.HasPrefix(s, ":")
	if abs {
		s = s[1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid coordinate %q: %w", string(text), err)
	}
	if abs && n < 0 {
		return fmt.Errorf("invalid coordinate %q: absolute position must not be negative", string(text))
	}
	*c = Coord{Offset: n, Absolute: abs}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Coord) MarshalText() ([]byte, error) {
	if c.Absolute {
		return []byte(":" + strconv.Itoa(c.Offset)), nil
	}
	return []byte(strconv.Itoa(c.Offset)), nil
}

// Resolve returns the window origin along an axis of length screen for a
// window of length size.
func (c Coord) Resolve(screen, size int) int {
	if c.Absolute {
		return c.Offset
	}
	return (screen-size)/2 + c.Offset
}

// DaemonConfig is the configuration for thord.
// Loaded from ~/.config/thor/thord.toml
type DaemonConfig struct {
	OSD      OSDConfig      `toml:"osd"`
	Notes    NotesConfig    `toml:"notes"`
	Display  DisplayConfig  `toml:"display"`
	Behavior BehaviorConfig `toml:"behavior"`
	Audio    AudioConfig    `toml:"audio"`
	DBus     DBusConfig     `toml:"dbus"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Cache    CacheConfig    `toml:"cache"`
}

// OSDConfig configures the single on-screen display.
type OSDConfig struct {
	Theme   string   `toml:"theme"`
	Timeout Duration `toml:"timeout"`
	X       Coord    `toml:"x"`
	Y       Coord    `toml:"y"`
}

// NotesConfig configures the stacked notification pool.
type NotesConfig struct {
	Theme         string   `toml:"theme"`
	Timeout       Duration `toml:"timeout"`
	Max           int      `toml:"max"`            // Pool capacity
	Width         int      `toml:"width"`          // Auto-layout width
	Position      string   `toml:"position"`       // Stack corner
	Padding       int      `toml:"padding"`        // Gap between stacked notes
	BorderPadding int      `toml:"border_padding"` // Gap to the screen edge
}

// DisplayConfig contains backend settings.
type DisplayConfig struct {
	Backend    string   `toml:"backend"` // "gtk" or "headless"
	UseARGB    bool     `toml:"use_argb"`
	Monitor    int      `toml:"monitor"`     // 0 = default, 1+ = specific monitor
	MapTimeout Duration `toml:"map_timeout"` // 0 waits forever
}

// BehaviorConfig contains daemon behavior settings.
type BehaviorConfig struct {
	QueueSize       int      `toml:"queue_size"`
	ReloadDebounce  Duration `toml:"reload_debounce"`
	InternalNotices bool     `toml:"internal_notices"`
}

// AudioConfig contains popup sound settings.
type AudioConfig struct {
	Enabled bool   `toml:"enabled"`
	Volume  int    `toml:"volume"` // 0-100
	OSD     string `toml:"osd"`
	Note    string `toml:"note"`
}

// DBusConfig enables the org.freedesktop.Notifications front-end.
type DBusConfig struct {
	Enabled        bool     `toml:"enabled"`
	DefaultTimeout Duration `toml:"default_timeout"` // 0 = notes.timeout
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string   `toml:"textfile"`
	Interval Duration `toml:"interval"`
}

// CacheConfig configures the image metadata cache.
type CacheConfig struct {
	Images     string `toml:"images"`
	MaxEntries int    `toml:"max_entries"`
}

// Backend names.
const (
	BackendGTK      = "gtk"
	BackendHeadless = "headless"
)

// Position represents the corner notes stack from.
type Position string

const (
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
)

// ValidPositions returns all valid position values.
func ValidPositions() []Position {
	return []Position{
		PositionTopLeft,
		PositionTopRight,
		PositionBottomLeft,
		PositionBottomRight,
	}
}

// IsBottom reports whether notes grow upwards from the bottom edge.
func (p Position) IsBottom() bool {
	return p == PositionBottomLeft || p == PositionBottomRight
}

// IsLeft reports whether notes hug the left edge.
func (p Position) IsLeft() bool {
	return p == PositionTopLeft || p == PositionBottomLeft
}

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		OSD: OSDConfig{
			Theme:   "default",
			Timeout: Duration(2 * time.Second),
		},
		Notes: NotesConfig{
			Theme:         "note",
			Timeout:       Duration(5 * time.Second),
			Max:           5,
			Width:         300,
			Position:      string(PositionBottomRight),
			Padding:       10,
			BorderPadding: 20,
		},
		Display: DisplayConfig{
			Backend:    BackendGTK,
			UseARGB:    true,
			MapTimeout: Duration(2 * time.Second),
		},
		Behavior: BehaviorConfig{
			QueueSize:       QueueSize,
			ReloadDebounce:  Duration(time.Second),
			InternalNotices: true,
		},
		Audio: AudioConfig{
			Enabled: false,
			Volume:  80,
		},
		Metrics: MetricsConfig{
			Interval: Duration(30 * time.Second),
		},
		Cache: CacheConfig{
			MaxEntries: 32,
		},
	}
}

// LoadDaemonConfig loads the daemon configuration from path.
//
// Loading never fails: a missing file yields the defaults, an unparsable
// file yields the defaults plus one problem, and every bad key is reported
// individually while the rest of the file still applies.
func LoadDaemonConfig(path string) (*DaemonConfig, []error) {
	cfg := DefaultDaemonConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, []error{&ParseError{Path: path, Err: fmt.Errorf("failed to read config file: %w", err)}}
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return cfg, []error{&ParseError{Path: path, Err: fmt.Errorf("failed to parse config file: %w", err)}}
	}

	var problems []error
	sections := cfg.sections()
	for name, raw := range doc {
		target, ok := sections[name]
		if !ok {
			problems = append(problems, &ParseError{Path: path, Key: name, Err: ErrUnknownKey})
			continue
		}
		table, ok := raw.(map[string]any)
		if !ok {
			problems = append(problems, &ParseError{Path: path, Key: name, Err: ErrNotTable})
			continue
		}
		for key, value := range table {
			// Bare integers in duration fields are milliseconds.
			if n, ok := value.(int64); ok && durationKeys[name+"."+key] {
				value = strconv.FormatInt(n, 10)
			}
			if err := decodeKey(target, key, value); err != nil {
				problems = append(problems, &ParseError{Path: path, Key: name + "." + key, Err: err})
			}
		}
	}

	for _, p := range cfg.Normalize() {
		var pe *ParseError
		if errors.As(p, &pe) {
			pe.Path = path
		}
		problems = append(problems, p)
	}

	sort.SliceStable(problems, func(i, j int) bool {
		return problems[i].Error() < problems[j].Error()
	})
	return cfg, problems
}

// durationKeys lists the keys decoded into a Duration.
var durationKeys = map[string]bool{
	"osd.timeout":              true,
	"notes.timeout":            true,
	"display.map_timeout":      true,
	"behavior.reload_debounce": true,
	"dbus.default_timeout":     true,
	"metrics.interval":         true,
}

// sections maps top-level table names to the struct they decode into.
func (c *DaemonConfig) sections() map[string]any {
	return map[string]any{
		"osd":      &c.OSD,
		"notes":    &c.Notes,
		"display":  &c.Display,
		"behavior": &c.Behavior,
		"audio":    &c.Audio,
		"dbus":     &c.DBus,
		"metrics":  &c.Metrics,
		"cache":    &c.Cache,
	}
}

// decodeKey decodes a single key into target, leaving the other fields alone.
func decodeKey(target any, key string, value any) error {
	buf, err := toml.Marshal(map[string]any{key: value})
	if err != nil {
		return err
	}
	dec := toml.NewDecoder(bytes.NewReader(buf))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return ErrUnknownKey
		}
		return err
	}
	return nil
}

// Normalize resets every invalid value to its default and reports what it changed.
func (c *DaemonConfig) Normalize() []error {
	def := DefaultDaemonConfig()
	var problems []error
	report := func(key string, format string, args ...any) {
		problems = append(problems, &ParseError{Key: key, Err: fmt.Errorf("%w: "+format, append([]any{ErrOutOfRange}, args...)...)})
	}

	if strings.TrimSpace(c.OSD.Theme) == "" {
		report("osd.theme", "must not be empty")
		c.OSD.Theme = def.OSD.Theme
	}
	if c.OSD.Timeout <= 0 {
		report("osd.timeout", "must be positive, got %s", c.OSD.Timeout.Duration())
		c.OSD.Timeout = def.OSD.Timeout
	}

	if strings.TrimSpace(c.Notes.Theme) == "" {
		report("notes.theme", "must not be empty")
		c.Notes.Theme = def.Notes.Theme
	}
	if c.Notes.Timeout <= 0 {
		report("notes.timeout", "must be positive, got %s", c.Notes.Timeout.Duration())
		c.Notes.Timeout = def.Notes.Timeout
	}
	if c.Notes.Max < 1 || c.Notes.Max > 32 {
		report("notes.max", "must be between 1 and 32, got %d", c.Notes.Max)
		c.Notes.Max = def.Notes.Max
	}
	if c.Notes.Width < 50 || c.Notes.Width > 2000 {
		report("notes.width", "must be between 50 and 2000, got %d", c.Notes.Width)
		c.Notes.Width = def.Notes.Width
	}
	if !slices.Contains(ValidPositions(), Position(c.Notes.Position)) {
		report("notes.position", "%q is not one of %v", c.Notes.Position, ValidPositions())
		c.Notes.Position = def.Notes.Position
	}
	if c.Notes.Padding < 0 {
		report("notes.padding", "must not be negative, got %d", c.Notes.Padding)
		c.Notes.Padding = def.Notes.Padding
	}
	if c.Notes.BorderPadding < 0 {
		report("notes.border_padding", "must not be negative, got %d", c.Notes.BorderPadding)
		c.Notes.BorderPadding = def.Notes.BorderPadding
	}

	if c.Display.Backend != BackendGTK && c.Display.Backend != BackendHeadless {
		report("display.backend", "%q is not one of [%s %s]", c.Display.Backend, BackendGTK, BackendHeadless)
		c.Display.Backend = def.Display.Backend
	}
	if c.Display.Monitor < 0 {
		report("display.monitor", "must not be negative, got %d", c.Display.Monitor)
		c.Display.Monitor = def.Display.Monitor
	}
	if c.Display.MapTimeout < 0 {
		report("display.map_timeout", "must not be negative, got %s", c.Display.MapTimeout.Duration())
		c.Display.MapTimeout = def.Display.MapTimeout
	}

	if c.Behavior.QueueSize != QueueSize {
		report("behavior.queue_size", "is fixed at %d, got %d", QueueSize, c.Behavior.QueueSize)
		c.Behavior.QueueSize = QueueSize
	}
	if c.Behavior.ReloadDebounce < 0 || c.Behavior.ReloadDebounce.Duration() > 10*time.Second {
		report("behavior.reload_debounce", "must be between 0 and 10s, got %s", c.Behavior.ReloadDebounce.Duration())
		c.Behavior.ReloadDebounce = def.Behavior.ReloadDebounce
	}

	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		report("audio.volume", "must be between 0 and 100, got %d", c.Audio.Volume)
		c.Audio.Volume = def.Audio.Volume
	}

	if c.DBus.DefaultTimeout < 0 {
		report("dbus.default_timeout", "must not be negative, got %s", c.DBus.DefaultTimeout.Duration())
		c.DBus.DefaultTimeout = def.DBus.DefaultTimeout
	}

	if c.Metrics.Interval.Duration() < time.Second {
		report("metrics.interval", "must be at least 1s, got %s", c.Metrics.Interval.Duration())
		c.Metrics.Interval = def.Metrics.Interval
	}

	if c.Cache.MaxEntries < 1 || c.Cache.MaxEntries > 1024 {
		report("cache.max_entries", "must be between 1 and 1024, got %d", c.Cache.MaxEntries)
		c.Cache.MaxEntries = def.Cache.MaxEntries
	}

	c.Audio.OSD = expandPath(c.Audio.OSD)
	c.Audio.Note = expandPath(c.Audio.Note)
	c.Metrics.Textfile = expandPath(c.Metrics.Textfile)
	c.Cache.Images = expandPath(c.Cache.Images)

	return problems
}

// DefaultTimeout returns the configured timeout for a popup kind.
func (c *DaemonConfig) DefaultTimeout(kind proto.Kind) time.Duration {
	if kind == proto.KindNote {
		return c.Notes.Timeout.Duration()
	}
	return c.OSD.Timeout.Duration()
}

// ThemeFor returns the theme name for a popup kind.
func (c *DaemonConfig) ThemeFor(kind proto.Kind) string {
	if kind == proto.KindNote {
		return c.Notes.Theme
	}
	return c.OSD.Theme
}

// SoundFor returns the sound file for a popup kind.
func (c *DaemonConfig) SoundFor(kind proto.Kind) string {
	if kind == proto.KindNote {
		return c.Audio.Note
	}
	return c.Audio.OSD
}

// NeedsRestart reports whether moving from c to next requires recreating
// the display backend and slot pool rather than swapping values in place.
func (c *DaemonConfig) NeedsRestart(next *DaemonConfig) bool {
	return c.Notes.Max != next.Notes.Max ||
		c.Display.Backend != next.Display.Backend ||
		c.Display.Monitor != next.Display.Monitor ||
		c.Display.UseARGB != next.Display.UseARGB
}
