package dbus

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/thor/internal/bridge"
)

func TestNotificationServer_NotifyPostsMessage(t *testing.T) {
	b := bridge.New(4, nil)
	defer b.Close()

	s := NewNotificationServer(Options{
		Poster:         b,
		DefaultTimeout: 4 * time.Second,
	}, nil)

	id, derr := s.Notify("app", 0, "", "Hi", "there", nil, map[string]dbus.Variant{}, -1)
	require.Nil(t, derr)
	assert.Equal(t, uint32(1), id)

	quiet := map[string]dbus.Variant{"suppress-sound": dbus.MakeVariant(true)}
	id, derr = s.Notify("app", 7, "", "Again", "", nil, quiet, 1000)
	require.Nil(t, derr)
	assert.Equal(t, uint32(7), id, "replaces_id is kept")

	ev := <-b.Events()
	assert.Equal(t, bridge.EventIncoming, ev.Kind)
	assert.Equal(t, "dbus", ev.Source)
	assert.Equal(t, "<b>Hi</b>\nthere", ev.Message.Body())
	assert.Equal(t, 4.0, ev.Message.Timeout)
	assert.False(t, ev.Message.Silent)

	ev = <-b.Events()
	assert.Equal(t, 1.0, ev.Message.Timeout)
	assert.True(t, ev.Message.Silent)
}

func TestNotificationServer_NotifyAfterShutdown(t *testing.T) {
	b := bridge.New(4, nil)
	b.Close()

	s := NewNotificationServer(Options{Poster: b}, nil)
	_, derr := s.Notify("app", 0, "", "Hi", "", nil, nil, -1)
	require.NotNil(t, derr)
}

func TestNotificationServer_Information(t *testing.T) {
	s := NewNotificationServer(Options{Info: ServerInfo{Name: "n", Vendor: "v", Version: "1", SpecVersion: "1.2"}}, nil)
	name, vendor, version, spec, derr := s.GetServerInformation()
	require.Nil(t, derr)
	assert.Equal(t, []string{"n", "v", "1", "1.2"}, []string{name, vendor, version, spec})

	caps, derr := s.GetCapabilities()
	require.Nil(t, derr)
	assert.Equal(t, ServerCapabilities, caps)

	// Without a bus connection the close request is still acknowledged.
	assert.Nil(t, s.CloseNotification(1))
	assert.ErrorIs(t, s.EmitNotificationClosed(1, CloseReasonClosed), errNotConnected)
	assert.NoError(t, s.Stop())
}
