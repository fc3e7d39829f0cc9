package proto

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlags_String(t *testing.T) {
	assert.Equal(t, "none", Flags(0).String())
	assert.Equal(t, "no-image|no-bar", (FlagNoImage | FlagNoBar).String())
	assert.Equal(t, "query-pid|note", (FlagQueryPID | FlagIsNote).String())
}

func TestMessage_Kind(t *testing.T) {
	assert.Equal(t, KindOSD, NewMessage(0, "x").Kind())
	assert.Equal(t, KindNote, NewMessage(FlagIsNote, "x").Kind())
	assert.True(t, NewMessage(FlagQueryPID, "").IsQuery())
}

func TestMessage_ImagePathsSkipsEmpty(t *testing.T) {
	m := &Message{Image: []byte("\x00/a.png\x00\x00/b.svg\x00")}
	assert.Equal(t, []string{"/a.png", "/b.svg"}, m.ImagePaths())
	assert.Nil(t, (&Message{}).ImagePaths())
}

func TestMessage_TimeoutDuration(t *testing.T) {
	tests := []struct {
		timeout float64
		want    time.Duration
	}{
		{0, 0},
		{-1, 0},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{1.5, 1500 * time.Millisecond},
		{1e11, MaxTimeout},
		{math.MaxFloat64, MaxTimeout},
	}
	for _, tt := range tests {
		m := &Message{Timeout: tt.timeout}
		assert.Equal(t, tt.want, m.TimeoutDuration(), "timeout %v", tt.timeout)
	}
}

func TestMessage_ReleaseNilSafe(t *testing.T) {
	var m *Message
	assert.NotPanics(t, m.Release)
	assert.True(t, m.Released())
}
