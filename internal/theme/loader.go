package theme

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Loader resolves theme names to parsed themes and caches them.
//
// A Loader is never mutated into a new configuration: on reload the daemon
// builds a fresh Loader and drops the old one wholesale.
type Loader struct {
	mu        sync.RWMutex
	logger    *slog.Logger
	themesDir string
	themes    map[string]*Theme
}

// NewLoader creates a new theme loader reading user themes from themesDir.
// An empty themesDir restricts the loader to bundled themes.
func NewLoader(themesDir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger:    logger,
		themesDir: themesDir,
		themes:    make(map[string]*Theme),
	}
}

// LoadTheme loads a theme by name and caches it.
// Theme resolution order:
//  1. User themes directory (~/.config/thor/themes/<name>.yaml)
//  2. Embedded/bundled themes
//  3. The embedded default theme
//
// Problems found along the way are returned and logged; a theme is always
// returned.
func (l *Loader) LoadTheme(name string) (*Theme, []error) {
	if name == "" {
		name = DefaultThemeName
	}

	var problems []error

	if l.themesDir != "" {
		path := filepath.Join(l.themesDir, name+".yaml")
		if info, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				problems = append(problems, &ParseError{Theme: name, Key: "(file)", Err: err})
			} else {
				t, errs := Parse(name, data)
				problems = append(problems, errs...)
				if t != nil {
					t.Path = path
					t.ModTime = info.ModTime()
					l.store(name, t)
					l.logger.Info("loaded user theme", "name", name, "path", path, "problems", len(problems))
					return t, problems
				}
				l.logger.Warn("failed to load user theme, trying bundled", "theme", name)
			}
		}
	}

	if data, found := GetEmbeddedTheme(name); found {
		t, errs := Parse(name, data)
		problems = append(problems, errs...)
		if t != nil {
			t.IsDefault = name == DefaultThemeName
			l.store(name, t)
			l.logger.Debug("loaded bundled theme", "name", name)
			return t, problems
		}
	}

	l.logger.Warn("theme not found, using default", "theme", name, "available", l.listThemes())
	problems = append(problems, &ParseError{Theme: name, Key: "(file)", Err: ErrNotFound})
	t := NewDefaultTheme()
	l.store(name, t)
	return t, problems
}

// Theme returns a cached theme, loading it on first use. Problems are
// logged individually.
func (l *Loader) Theme(name string) *Theme {
	l.mu.RLock()
	t, ok := l.themes[name]
	l.mu.RUnlock()
	if ok {
		return t
	}

	t, problems := l.LoadTheme(name)
	for _, p := range problems {
		l.logger.Warn("theme problem", "error", p)
	}
	return t
}

func (l *Loader) store(name string, t *Theme) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.themes[name] = t
}

// Paths returns the user files backing the cached themes, for watching.
func (l *Loader) Paths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var paths []string
	for _, t := range l.themes {
		if t.Path != "" && !slices.Contains(paths, t.Path) {
			paths = append(paths, t.Path)
		}
	}
	slices.Sort(paths)
	return paths
}

// ThemesDir returns the user themes directory the loader reads from.
func (l *Loader) ThemesDir() string {
	return l.themesDir
}

// listThemes returns the bundled and user theme names, sorted and without
// duplicates.
func (l *Loader) listThemes() []string {
	themes := ListEmbeddedThemes()

	if l.themesDir != "" {
		entries, err := os.ReadDir(l.themesDir)
		if err != nil {
			l.logger.Debug("failed to read themes directory", "error", err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || filepath.Ext(name) != ".yaml" {
				continue
			}
			if themeName := name[:len(name)-5]; !slices.Contains(themes, themeName) {
				themes = append(themes, themeName)
			}
		}
	}

	slices.Sort(themes)
	return themes
}

// NewDefaultTheme parses the embedded default theme.
func NewDefaultTheme() *Theme {
	data, _ := GetEmbeddedTheme(DefaultThemeName)
	t, _ := Parse(DefaultThemeName, data)
	if t == nil {
		t = newBaseTheme(DefaultThemeName)
	}
	t.IsDefault = true
	return t
}
