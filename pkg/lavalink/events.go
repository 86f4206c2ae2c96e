package lavalink

import "time"

// EndReason explains why the node stopped playing a track.
type EndReason string

const (
	EndReasonFinished   EndReason = "finished"
	EndReasonLoadFailed EndReason = "loadFailed"
	EndReasonStopped    EndReason = "stopped"
	EndReasonReplaced   EndReason = "replaced"
	EndReasonCleanup    EndReason = "cleanup"
)

// MayStartNext reports whether this end reason allows the next track to be
// started automatically. Stopped, replaced and cleanup ends are owned by
// whatever command caused them.
func (r EndReason) MayStartNext() bool {
	switch r {
	case EndReasonFinished, EndReasonLoadFailed:
		return true
	}
	return false
}

// Event is the closed set of things a node (or the manager) can report.
// Consumers type-switch on the concrete types below.
type Event interface {
	isEvent()
}

// GuildEvent is an Event scoped to a single guild's player.
type GuildEvent interface {
	Event
	Guild() string
}

// TrackStartEvent fires when the node begins playing a track.
type TrackStartEvent struct {
	GuildID string
	Track   Track
}

// TrackEndEvent fires when a track stops playing for any reason.
type TrackEndEvent struct {
	GuildID string
	Track   Track
	Reason  EndReason
}

// TrackExceptionEvent fires when the node hits an error mid-track.
type TrackExceptionEvent struct {
	GuildID  string
	Track    Track
	Message  string
	Severity string
}

// TrackStuckEvent fires when the node made no playback progress for longer
// than its stuck threshold.
type TrackStuckEvent struct {
	GuildID   string
	Track     Track
	Threshold time.Duration
}

// PlayerUpdateEvent carries the node's periodic position report for a guild
// player.
type PlayerUpdateEvent struct {
	GuildID   string
	Position  time.Duration
	Connected bool
	Time      time.Time
}

// WebSocketClosedEvent fires when the voice websocket between the node and
// the chat platform closed.
type WebSocketClosedEvent struct {
	GuildID  string
	Code     int
	Reason   string
	ByRemote bool
}

// NodeConnectedEvent fires when a node becomes the active node.
type NodeConnectedEvent struct {
	NodeID  string
	Resumed bool
}

// NodeDisconnectedEvent fires when the active node is lost.
type NodeDisconnectedEvent struct {
	NodeID string
	Err    error
}

// NodeFailedEvent fires when a candidate exhausted its retry budget during
// connect or failover.
type NodeFailedEvent struct {
	NodeID   string
	Attempts int
	Err      error
}

// NodesExhaustedEvent fires when every configured node has failed and the
// manager has no active node left to offer.
type NodesExhaustedEvent struct{}

func (TrackStartEvent) isEvent()       {}
func (TrackEndEvent) isEvent()         {}
func (TrackExceptionEvent) isEvent()   {}
func (TrackStuckEvent) isEvent()       {}
func (PlayerUpdateEvent) isEvent()     {}
func (WebSocketClosedEvent) isEvent()  {}
func (NodeConnectedEvent) isEvent()    {}
func (NodeDisconnectedEvent) isEvent() {}
func (NodeFailedEvent) isEvent()       {}
func (NodesExhaustedEvent) isEvent()   {}

func (e TrackStartEvent) Guild() string      { return e.GuildID }
func (e TrackEndEvent) Guild() string        { return e.GuildID }
func (e TrackExceptionEvent) Guild() string  { return e.GuildID }
func (e TrackStuckEvent) Guild() string      { return e.GuildID }
func (e PlayerUpdateEvent) Guild() string    { return e.GuildID }
func (e WebSocketClosedEvent) Guild() string { return e.GuildID }
