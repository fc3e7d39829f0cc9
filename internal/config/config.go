// Package config handles configuration file loading and path resolution.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// AppName is used for every per-user directory.
const AppName = "thor"

// ErrNoHome is returned when neither the XDG variable nor a home directory is available.
var ErrNoHome = errors.New("unable to determine home directory")

// baseDir resolves an XDG base directory with the conventional home fallback.
func baseDir(env string, fallback ...string) (string, error) {
	if dir := os.Getenv(env); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", ErrNoHome
	}
	return filepath.Join(append([]string{home}, fallback...)...), nil
}

// ConfigDir returns the thor config directory.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigDir() (string, error) {
	base, err := baseDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppName), nil
}

// CacheDir returns the thor cache directory.
// Uses XDG_CACHE_HOME if set, otherwise ~/.cache.
func CacheDir() (string, error) {
	base, err := baseDir("XDG_CACHE_HOME", ".cache")
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppName), nil
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "thord.toml"), nil
}

// ThemesDir returns the path to the user's themes directory.
func ThemesDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "themes"), nil
}

// SocketPath returns the well-known daemon socket path.
func SocketPath() (string, error) {
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "socket"), nil
}

// ImageCachePath returns the default image cache database path.
func ImageCachePath() (string, error) {
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "images.db"), nil
}

// EnsureDir creates the parent directory of path with owner-only permissions.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
