package display

import "github.com/jmylchreest/thor/internal/proto"

// Queue is a fixed-capacity FIFO of messages waiting for a note slot.
//
// It never grows. When it is full the newest message is refused and the
// caller keeps ownership of it.
type Queue struct {
	items []*proto.Message
	head  int
	count int
}

// NewQueue creates a queue holding at most capacity messages.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{items: make([]*proto.Message, capacity)}
}

// TryEnqueue appends m. It returns false when the queue is full, in which
// case m still belongs to the caller.
func (q *Queue) TryEnqueue(m *proto.Message) bool {
	if q.count == len(q.items) {
		return false
	}
	q.items[(q.head+q.count)%len(q.items)] = m
	q.count++
	return true
}

// Dequeue removes the oldest message. Ownership passes to the caller.
func (q *Queue) Dequeue() (*proto.Message, bool) {
	if q.count == 0 {
		return nil, false
	}
	m := q.items[q.head]
	q.items[q.head] = nil
	q.head = (q.head + 1) % len(q.items)
	q.count--
	return m, true
}

// DrainAndRelease releases every queued message and returns how many there were.
func (q *Queue) DrainAndRelease() int {
	n := 0
	for {
		m, ok := q.Dequeue()
		if !ok {
			return n
		}
		m.Release()
		n++
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int { return q.count }

// Cap returns the fixed capacity.
func (q *Queue) Cap() int { return len(q.items) }
