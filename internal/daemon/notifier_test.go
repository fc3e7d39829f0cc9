package daemon

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jmylchreest/thor/internal/proto"
)

func TestInternalNotifier_RateLimitsPerKey(t *testing.T) {
	var shown []*proto.Message
	n := NewInternalNotifier(func(m *proto.Message) { shown = append(shown, m) }, nil)

	assert.True(t, n.Notify("a", "First", "", NotificationLevelInfo))
	assert.False(t, n.Notify("a", "Again", "", NotificationLevelInfo))
	assert.True(t, n.Notify("b", "Other", "", NotificationLevelWarning))
	require.Len(t, shown, 2)

	n.setMinInterval(0)
	assert.True(t, n.Notify("a", "Now", "", NotificationLevelInfo))

	n.SetEnabled(false)
	assert.False(t, n.Notify("c", "Off", "", NotificationLevelInfo))
	assert.Len(t, shown, 3)
}

func TestInternalNotifier_MessageShape(t *testing.T) {
	var got *proto.Message
	n := NewInternalNotifier(func(m *proto.Message) { got = m }, nil)

	n.NotifyConfigError([]error{errors.New("osd.timeout <0"), errors.New("notes.max")})
	require.NotNil(t, got)
	assert.Equal(t, proto.KindOSD, got.Kind())
	assert.True(t, got.Flags.Has(proto.FlagNoImage|proto.FlagNoBar))
	assert.Equal(t, noticeTimeout.Seconds(), got.Timeout)
	assert.Equal(t, "<b>Configuration problems</b>\nosd.timeout \\<0 (and 1 more)", got.Body())

	n.NotifyConfigReloaded(true)
	assert.Equal(t, "<b>Configuration reloaded</b>\nDisplay restarted with the new settings.", got.Body())
}

func TestDropLimiter_CountsSuppressed(t *testing.T) {
	var buf bytes.Buffer
	l := newDropLimiter(slog.New(slog.NewTextHandler(&buf, nil)))

	for range 3 {
		l.log(slog.LevelWarn, "pending queue full")
	}
	assert.Equal(t, 1, strings.Count(buf.String(), "pending queue full"))
	assert.Equal(t, 2, l.suppressed)

	l.limiter = rate.NewLimiter(rate.Inf, 1)
	l.log(slog.LevelWarn, "pending queue full")
	assert.Contains(t, buf.String(), "suppressed=2")
	assert.Zero(t, l.suppressed)
}
