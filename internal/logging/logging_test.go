package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Sink(t *testing.T) {
	assert.Equal(t, "syslog", Options{}.Sink())
	assert.Equal(t, "file", Options{File: "/tmp/x.log"}.Sink())
	assert.Equal(t, "stderr", Options{File: "/tmp/x.log", Foreground: true}.Sink())
}

func TestSetup_FileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "thord.log")

	logger, closer, err := Setup(Options{File: path})
	require.NoError(t, err)
	logger.Info("first", "n", 1)
	logger.Debug("hidden")
	require.NoError(t, closer.Close())

	logger, closer, err = Setup(Options{File: path, Verbose: true})
	require.NoError(t, err)
	logger.Debug("second")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=first n=1")
	assert.Contains(t, string(data), "msg=second")
	assert.NotContains(t, string(data), "hidden")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSetup_FileError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, _, err := Setup(Options{File: filepath.Join(blocker, "thord.log")})
	assert.Error(t, err)
}
