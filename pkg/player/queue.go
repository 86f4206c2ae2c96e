package player

import (
	"math/rand"

	"github.com/aventh/cadenza/pkg/lavalink"
)

// Queue holds the pending tracks of one session in play order. The track
// being played is never inside the queue; the session holds it separately.
// Queue is not safe for concurrent use, the owning session's mutex guards
// every call.
type Queue struct {
	items []lavalink.Track
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Add appends a track and returns its 1-based position in the queue.
func (q *Queue) Add(t lavalink.Track) int {
	q.items = append(q.items, t)
	return len(q.items)
}

// Next pops the head of the queue. The second return is false when the
// queue is empty.
func (q *Queue) Next() (lavalink.Track, bool) {
	if len(q.items) == 0 {
		return lavalink.Track{}, false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

// PushFront puts a track back at the head of the queue.
func (q *Queue) PushFront(t lavalink.Track) {
	q.items = append([]lavalink.Track{t}, q.items...)
}

// Remove deletes and returns the track at the given 0-based index.
func (q *Queue) Remove(index int) (lavalink.Track, error) {
	if len(q.items) == 0 {
		return lavalink.Track{}, ErrQueueEmpty
	}
	if index < 0 || index >= len(q.items) {
		return lavalink.Track{}, ErrIndexOutOfRange
	}
	removed := q.items[index]
	q.items = append(q.items[:index], q.items[index+1:]...)
	return removed, nil
}

// Move relocates the track at from so it ends up at position to. Both
// indexes are 0-based against the current queue.
func (q *Queue) Move(from, to int) error {
	if len(q.items) == 0 {
		return ErrQueueEmpty
	}
	if from < 0 || from >= len(q.items) || to < 0 || to >= len(q.items) {
		return ErrIndexOutOfRange
	}
	if from == to {
		return nil
	}
	moved := q.items[from]
	q.items = append(q.items[:from], q.items[from+1:]...)
	q.items = append(q.items[:to], append([]lavalink.Track{moved}, q.items[to:]...)...)
	return nil
}

// Shuffle randomizes the order of the pending tracks.
func (q *Queue) Shuffle() {
	rand.Shuffle(len(q.items), func(i, j int) {
		q.items[i], q.items[j] = q.items[j], q.items[i]
	})
}

// Clear drops every pending track and returns how many were dropped.
func (q *Queue) Clear() int {
	n := len(q.items)
	q.items = nil
	return n
}

// Tracks returns a copy of the pending tracks in play order.
func (q *Queue) Tracks() []lavalink.Track {
	out := make([]lavalink.Track, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of pending tracks.
func (q *Queue) Len() int {
	return len(q.items)
}
