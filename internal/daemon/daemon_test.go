package daemon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/thor/internal/audio"
	"github.com/jmylchreest/thor/internal/bridge"
	"github.com/jmylchreest/thor/internal/client"
	"github.com/jmylchreest/thor/internal/config"
	"github.com/jmylchreest/thor/internal/display"
	"github.com/jmylchreest/thor/internal/proto"
)

const testPID = 4242

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

type testDaemon struct {
	t      *testing.T
	d      *Daemon
	dir    string
	socket string
	config string
	logs   *syncBuffer

	mu       sync.Mutex
	backends []*display.Headless

	done chan struct{}
	err  error
}

func testConfig(dir string, notes int) string {
	return fmt.Sprintf(`[display]
backend = "headless"
map_timeout = "50ms"

[notes]
max = %d
timeout = "30s"

[osd]
timeout = "30s"

[behavior]
reload_debounce = "100ms"
internal_notices = false

[cache]
images = %q
`, notes, filepath.Join(dir, "images.db"))
}

func startDaemon(t *testing.T) *testDaemon {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_CACHE_HOME", dir)

	td := &testDaemon{
		t:      t,
		dir:    dir,
		socket: filepath.Join(dir, "run", "thord.sock"),
		config: filepath.Join(dir, "thord.toml"),
		logs:   &syncBuffer{},
		done:   make(chan struct{}),
	}
	td.writeConfig(2)

	logger := slog.New(slog.NewTextHandler(td.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l, err := Listen(td.socket, logger)
	require.NoError(t, err)

	td.d, err = New(Options{
		ConfigPath: td.config,
		Listener:   l,
		SocketPath: td.socket,
		ThemesDir:  filepath.Join(dir, "themes"),
		NewBackend: td.newBackend,
		Logger:     logger,
		Version:    "test",
		PID:        testPID,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		td.err = td.d.Run(ctx)
		close(td.done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-td.done:
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	select {
	case <-td.d.Ready():
	case <-td.done:
		t.Fatalf("daemon exited during start: %v", td.err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not become ready")
	}
	return td
}

func (td *testDaemon) newBackend(_ *config.DaemonConfig) (display.Backend, error) {
	h := display.NewHeadless(1920, 1080, nil)
	td.mu.Lock()
	td.backends = append(td.backends, h)
	td.mu.Unlock()
	return h, nil
}

func (td *testDaemon) backend(i int) *display.Headless {
	td.mu.Lock()
	defer td.mu.Unlock()
	return td.backends[i]
}

func (td *testDaemon) backendCount() int {
	td.mu.Lock()
	defer td.mu.Unlock()
	return len(td.backends)
}

func (td *testDaemon) writeConfig(notes int) {
	td.t.Helper()
	require.NoError(td.t, os.WriteFile(td.config, []byte(testConfig(td.dir, notes)), 0o600))
}

func (td *testDaemon) send(msg *proto.Message) {
	td.t.Helper()
	require.NoError(td.t, client.New(td.socket).Send(msg))
}

func (td *testDaemon) wait() error {
	td.t.Helper()
	select {
	case <-td.done:
		return td.err
	case <-time.After(5 * time.Second):
		td.t.Fatal("daemon did not stop")
		return nil
	}
}

func (td *testDaemon) waitLog(s string) {
	td.t.Helper()
	require.Eventually(td.t, func() bool {
		return strings.Contains(td.logs.String(), s)
	}, 3*time.Second, 10*time.Millisecond, "log never contained %q", s)
}

func TestDaemon_AnswersPIDQuery(t *testing.T) {
	td := startDaemon(t)

	pid, err := client.New(td.socket).QueryPID()
	require.NoError(t, err)
	assert.Equal(t, testPID, pid)

	td.waitLog("answered pid query")
	assert.Zero(t, td.backend(0).MappedCount())
}

func TestDaemon_NothingToDraw(t *testing.T) {
	td := startDaemon(t)

	td.send(proto.NewMessage(proto.FlagNoImage|proto.FlagNoBar, ""))
	td.waitLog("nothing to draw")

	assert.Zero(t, td.backend(0).MappedCount())
	for _, w := range td.backend(0).Windows() {
		assert.Zero(t, w.Draws)
	}
}

func TestDaemon_RendersOSDAndNotes(t *testing.T) {
	td := startDaemon(t)
	h := td.backend(0)

	osd := proto.NewMessage(proto.FlagNoImage, "Volume")
	osd.SetBar(40, 100)
	td.send(osd)
	td.send(proto.NewMessage(proto.FlagIsNote|proto.FlagNoImage|proto.FlagNoBar, "<b>Mail</b>\nnew message"))

	require.Eventually(t, func() bool { return h.MappedCount() == 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestDaemon_QueuesWhenPoolFull(t *testing.T) {
	td := startDaemon(t)
	h := td.backend(0)

	for i := range 3 {
		td.send(proto.NewMessage(proto.FlagIsNote|proto.FlagNoImage|proto.FlagNoBar, fmt.Sprintf("note %d", i)))
	}
	td.waitLog("queued message")
	assert.Equal(t, 2, h.MappedCount())
}

func TestDaemon_ConfigRewriteReloadsOnce(t *testing.T) {
	td := startDaemon(t)
	old := td.backend(0)

	for i := range 3 {
		td.send(proto.NewMessage(proto.FlagIsNote|proto.FlagNoImage|proto.FlagNoBar, fmt.Sprintf("note %d", i)))
	}
	td.waitLog("queued message")
	require.Equal(t, 2, old.MappedCount())

	td.writeConfig(3)
	require.Eventually(t, func() bool { return td.backendCount() == 2 }, 3*time.Second, 10*time.Millisecond)
	td.waitLog("configuration reloaded")

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 2, td.backendCount())
	assert.Equal(t, 1, strings.Count(td.logs.String(), "configuration reloaded"))
	assert.Contains(t, td.logs.String(), "dropped_queued=1")
	assert.Zero(t, old.MappedCount())
	assert.Zero(t, td.backend(1).MappedCount())

	// The new pool accepts three notes.
	for i := range 3 {
		td.send(proto.NewMessage(proto.FlagIsNote|proto.FlagNoImage|proto.FlagNoBar, fmt.Sprintf("again %d", i)))
	}
	require.Eventually(t, func() bool { return td.backend(1).MappedCount() == 3 }, 3*time.Second, 10*time.Millisecond)
}

func TestDaemon_SignalReloadKeepsDisplay(t *testing.T) {
	td := startDaemon(t)
	h := td.backend(0)

	td.send(proto.NewMessage(proto.FlagIsNote|proto.FlagNoImage|proto.FlagNoBar, "stays"))
	require.Eventually(t, func() bool { return h.MappedCount() == 1 }, 3*time.Second, 10*time.Millisecond)

	require.True(t, td.d.Bridge().Post(bridge.Event{Kind: bridge.EventReload, Source: "test"}))
	td.waitLog("configuration reloaded")

	assert.Contains(t, td.logs.String(), "full=false")
	assert.Equal(t, 1, td.backendCount())
	assert.Equal(t, 1, h.MappedCount())
}

func TestDaemon_BackendLostIsFatal(t *testing.T) {
	td := startDaemon(t)

	td.backend(0).Lose(errors.New("compositor went away"))

	err := td.wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, display.ErrBackendLost)
	assert.NoFileExists(t, td.socket)
}

func TestDaemon_TerminateShutsDownCleanly(t *testing.T) {
	td := startDaemon(t)

	require.True(t, td.d.Bridge().Post(bridge.Event{Kind: bridge.EventTerminate, Source: "test"}))

	require.NoError(t, td.wait())
	assert.NoFileExists(t, td.socket)
	assert.FileExists(t, filepath.Join(td.dir, "images.db"))
	assert.Contains(t, td.logs.String(), "thord stopped")
	assert.Contains(t, td.logs.String(), "dropped_events=0")

	_, err := client.New(td.socket).QueryPID()
	assert.ErrorIs(t, err, client.ErrNotRunning)
}

func TestNew_RequiresListenerAndBackend(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	l, err := Listen(filepath.Join(t.TempDir(), "s"), nil)
	require.NoError(t, err)
	defer l.Close()
	_, err = New(Options{Listener: l})
	assert.Error(t, err)
}

func TestNew_BackendOverride(t *testing.T) {
	l, err := Listen(filepath.Join(t.TempDir(), "s"), nil)
	require.NoError(t, err)
	defer l.Close()

	cfg := config.DefaultDaemonConfig()
	d, err := New(Options{
		Config:     cfg,
		Listener:   l,
		Backend:    config.BackendHeadless,
		NewBackend: func(*config.DaemonConfig) (display.Backend, error) { return nil, errors.New("unused") },
	})
	require.NoError(t, err)
	assert.Equal(t, config.BackendHeadless, d.backend)
	assert.Equal(t, os.Getpid(), d.opts.PID)
}

func TestDaemon_SilentMessageSkipsSound(t *testing.T) {
	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	d := &Daemon{logger: logger, audio: audio.NewManager(config.DefaultDaemonConfig(), logger)}
	t.Cleanup(d.audio.Close)

	d.onRender(proto.KindNote, proto.NewMessage(proto.FlagIsNote, "loud"))
	assert.NotContains(t, logs.String(), "render sound suppressed")

	quiet := proto.NewMessage(proto.FlagIsNote, "quiet")
	quiet.Silent = true
	d.onRender(proto.KindNote, quiet)
	assert.Contains(t, logs.String(), "render sound suppressed")
}
