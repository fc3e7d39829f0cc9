package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/thor/internal/config"
	"github.com/jmylchreest/thor/internal/proto"
)

func TestQueue_OverflowDropsNewest(t *testing.T) {
	q := NewQueue(config.QueueSize)

	var msgs []*proto.Message
	for i := 0; i < config.QueueSize; i++ {
		m := proto.NewMessage(proto.FlagIsNote, "note")
		msgs = append(msgs, m)
		require.True(t, q.TryEnqueue(m))
	}

	extra := proto.NewMessage(proto.FlagIsNote, "one too many")
	assert.False(t, q.TryEnqueue(extra), "full queue must refuse the newest message")
	assert.Equal(t, config.QueueSize, q.Len())
	assert.False(t, extra.Released(), "a refused message still belongs to the caller")

	for i := 0; i < config.QueueSize; i++ {
		m, ok := q.Dequeue()
		require.True(t, ok)
		assert.Same(t, msgs[i], m, "FIFO order at %d", i)
	}
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestQueue_WrapsAround(t *testing.T) {
	q := NewQueue(3)
	a, b, c, d := proto.NewMessage(0, "a"), proto.NewMessage(0, "b"), proto.NewMessage(0, "c"), proto.NewMessage(0, "d")

	require.True(t, q.TryEnqueue(a))
	require.True(t, q.TryEnqueue(b))
	got, _ := q.Dequeue()
	assert.Same(t, a, got)
	require.True(t, q.TryEnqueue(c))
	require.True(t, q.TryEnqueue(d))
	assert.Equal(t, 3, q.Len())

	for _, want := range []*proto.Message{b, c, d} {
		got, ok := q.Dequeue()
		require.True(t, ok)
		assert.Same(t, want, got)
	}
}

func TestQueue_DrainAndRelease(t *testing.T) {
	q := NewQueue(4)
	a, b := proto.NewMessage(0, "a"), proto.NewMessage(0, "b")
	q.TryEnqueue(a)
	q.TryEnqueue(b)

	assert.Equal(t, 2, q.DrainAndRelease())
	assert.True(t, a.Released())
	assert.True(t, b.Released())
	assert.Zero(t, q.Len())
	assert.Zero(t, q.DrainAndRelease())
}
