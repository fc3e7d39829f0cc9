package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/thor/internal/bridge"
)

type chanPoster chan bridge.Event

func (p chanPoster) Post(ev bridge.Event) bool {
	p <- ev
	return true
}

func newTestWatcher(t *testing.T, debounce time.Duration) (*ConfigWatcher, chanPoster) {
	t.Helper()
	events := make(chanPoster, 8)
	w, err := NewConfigWatcher(events, debounce, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w, events
}

func expectEvent(t *testing.T, events chanPoster) bridge.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("no change event")
		return bridge.Event{}
	}
}

func expectNoEvent(t *testing.T, events chanPoster, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("unexpected event for %s", ev.Path)
	case <-time.After(wait):
	}
}

func TestConfigWatcher_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thord.toml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))

	w, events := newTestWatcher(t, 100*time.Millisecond)
	require.NoError(t, w.Watch(path))

	for _, content := range []string{"", "[osd]", "[osd]\ntimeout = \"1s\"\n"} {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	ev := expectEvent(t, events)
	assert.Equal(t, bridge.EventConfigChanged, ev.Kind)
	assert.Equal(t, path, ev.Path)
	expectNoEvent(t, events, 300*time.Millisecond)
}

func TestConfigWatcher_SeesReplacedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))

	w, events := newTestWatcher(t, 50*time.Millisecond)
	require.NoError(t, w.Watch(path))

	tmp := filepath.Join(dir, "note.yaml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("b"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	assert.Equal(t, path, expectEvent(t, events).Path)
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w, events := newTestWatcher(t, 20*time.Millisecond)
	require.NoError(t, w.Watch(filepath.Join(dir, "thord.toml")))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0o600))
	expectNoEvent(t, events, 200*time.Millisecond)

	// Not existing yet is fine as long as the directory does.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "thord.toml"), []byte("x"), 0o600))
	expectEvent(t, events)
}

func TestConfigWatcher_WatchReplacesSet(t *testing.T) {
	a := filepath.Join(t.TempDir(), "a.toml")
	b := filepath.Join(t.TempDir(), "b.toml")

	w, events := newTestWatcher(t, 20*time.Millisecond)
	require.NoError(t, w.Watch(a))
	require.NoError(t, w.Watch(b))

	require.NoError(t, os.WriteFile(a, []byte("x"), 0o600))
	expectNoEvent(t, events, 200*time.Millisecond)

	require.NoError(t, os.WriteFile(b, []byte("x"), 0o600))
	assert.Equal(t, b, expectEvent(t, events).Path)
}

func TestConfigWatcher_MissingDirectory(t *testing.T) {
	w, _ := newTestWatcher(t, 20*time.Millisecond)
	err := w.Watch(filepath.Join(t.TempDir(), "missing", "thord.toml"))
	assert.Error(t, err)
}

func TestConfigWatcher_CloseDiscardsPending(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thord.toml")

	w, events := newTestWatcher(t, 200*time.Millisecond)
	require.NoError(t, w.Watch(path))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	expectNoEvent(t, events, 400*time.Millisecond)
}
