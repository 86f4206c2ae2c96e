package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aventh/cadenza/pkg/lavalink"
)

func queueTrack(id string) lavalink.Track {
	return lavalink.Track{
		Encoded: "enc-" + id,
		Info:    lavalink.TrackInfo{Identifier: id, Title: "Track " + id},
	}
}

func queueIDs(q *Queue) []string {
	tracks := q.Tracks()
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.Info.Identifier
	}
	return ids
}

func TestQueueAddAndNext(t *testing.T) {
	q := NewQueue()

	assert.Equal(t, 1, q.Add(queueTrack("a")))
	assert.Equal(t, 2, q.Add(queueTrack("b")))
	assert.Equal(t, 3, q.Add(queueTrack("c")))
	assert.Equal(t, 3, q.Len())

	head, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "a", head.Info.Identifier)
	assert.Equal(t, []string{"b", "c"}, queueIDs(q))

	q.Next()
	q.Next()
	_, ok = q.Next()
	assert.False(t, ok)
}

func TestQueuePushFront(t *testing.T) {
	q := NewQueue()
	q.Add(queueTrack("b"))
	q.PushFront(queueTrack("a"))

	assert.Equal(t, []string{"a", "b"}, queueIDs(q))
}

func TestQueueRemove(t *testing.T) {
	q := NewQueue()

	_, err := q.Remove(0)
	assert.ErrorIs(t, err, ErrQueueEmpty)

	q.Add(queueTrack("a"))
	q.Add(queueTrack("b"))
	q.Add(queueTrack("c"))

	_, err = q.Remove(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = q.Remove(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	removed, err := q.Remove(1)
	require.NoError(t, err)
	assert.Equal(t, "b", removed.Info.Identifier)
	assert.Equal(t, []string{"a", "c"}, queueIDs(q))
}

func TestQueueMove(t *testing.T) {
	tests := []struct {
		name    string
		from    int
		to      int
		want    []string
		wantErr error
	}{
		{name: "head to middle", from: 0, to: 2, want: []string{"b", "c", "a", "d"}},
		{name: "tail to head", from: 3, to: 0, want: []string{"d", "a", "b", "c"}},
		{name: "same index is a no-op", from: 1, to: 1, want: []string{"a", "b", "c", "d"}},
		{name: "from out of range", from: 4, to: 0, wantErr: ErrIndexOutOfRange},
		{name: "to out of range", from: 0, to: -1, wantErr: ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue()
			for _, id := range []string{"a", "b", "c", "d"} {
				q.Add(queueTrack(id))
			}
			err := q.Move(tt.from, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, queueIDs(q))
		})
	}
}

func TestQueueMoveEmpty(t *testing.T) {
	q := NewQueue()
	assert.ErrorIs(t, q.Move(0, 0), ErrQueueEmpty)
}

func TestQueueShuffleKeepsTracks(t *testing.T) {
	q := NewQueue()
	ids := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range ids {
		q.Add(queueTrack(id))
	}

	q.Shuffle()

	assert.ElementsMatch(t, ids, queueIDs(q))
	assert.Equal(t, len(ids), q.Len())
}

func TestQueueClear(t *testing.T) {
	q := NewQueue()
	assert.Equal(t, 0, q.Clear())

	q.Add(queueTrack("a"))
	q.Add(queueTrack("b"))
	assert.Equal(t, 2, q.Clear())
	assert.Equal(t, 0, q.Len())
}

func TestQueueTracksReturnsCopy(t *testing.T) {
	q := NewQueue()
	q.Add(queueTrack("a"))
	q.Add(queueTrack("b"))

	snapshot := q.Tracks()
	snapshot[0] = queueTrack("z")

	assert.Equal(t, []string{"a", "b"}, queueIDs(q))
}
