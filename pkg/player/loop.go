package player

import (
	"fmt"
	"strings"
)

// LoopMode decides what happens to a track that finished playing naturally.
type LoopMode int

const (
	// LoopOff discards finished tracks and advances through the queue.
	LoopOff LoopMode = iota
	// LoopTrack replays the current track when it finishes.
	LoopTrack
	// LoopQueue re-appends finished tracks to the tail of the queue.
	LoopQueue
)

func (m LoopMode) String() string {
	switch m {
	case LoopOff:
		return "off"
	case LoopTrack:
		return "track"
	case LoopQueue:
		return "queue"
	default:
		return fmt.Sprintf("LoopMode(%d)", int(m))
	}
}

// ParseLoopMode maps a user-supplied mode name onto a LoopMode.
func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return LoopOff, nil
	case "track", "single":
		return LoopTrack, nil
	case "queue", "all":
		return LoopQueue, nil
	default:
		return LoopOff, fmt.Errorf("%w: %q", ErrUnknownLoopMode, s)
	}
}
