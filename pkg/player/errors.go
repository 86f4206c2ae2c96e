package player

import "errors"

// Command validation errors. A command rejected with one of these has not
// changed any session state.
var (
	ErrNothingPlaying   = errors.New("nothing is playing")
	ErrAlreadyPaused    = errors.New("playback is already paused")
	ErrNotPaused        = errors.New("playback is not paused")
	ErrQueueEmpty       = errors.New("queue is empty")
	ErrIndexOutOfRange  = errors.New("queue index out of range")
	ErrVolumeOutOfRange = errors.New("volume must be between 0 and 100")
	ErrUnknownLoopMode  = errors.New("unknown loop mode")
	ErrNotSeekable      = errors.New("track is not seekable")
)

// Lifecycle errors
var (
	ErrSessionClosed = errors.New("playback session is closed")
)
