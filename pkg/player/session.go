package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aventh/cadenza/pkg/lavalink"
)

const (
	// playerOpTimeout bounds every node-facing call made by a session.
	playerOpTimeout = 10 * time.Second
	// persistTimeout bounds fire-and-forget settings saves.
	persistTimeout = 5 * time.Second
	// inboxSize is the per-session event buffer. Events beyond it are
	// dropped rather than blocking the dispatch loop.
	inboxSize = 64
)

// Status is a session's playback state.
type Status int

const (
	StatusIdle Status = iota
	StatusPlaying
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// AudioNode is the slice of the node surface a session drives. Implemented
// by *lavalink.Node.
type AudioNode interface {
	ID() string
	Play(ctx context.Context, guildID string, track lavalink.Track, position time.Duration, volume int, paused bool) error
	Stop(ctx context.Context, guildID string) error
	Pause(ctx context.Context, guildID string, paused bool) error
	Seek(ctx context.Context, guildID string, position time.Duration) error
	SetVolume(ctx context.Context, guildID string, volume int) error
	Destroy(ctx context.Context, guildID string) error
}

// NodeProvider yields the active node. Sessions ask for it on every
// operation and never cache one across operations, so a failover between
// two commands is picked up automatically.
type NodeProvider interface {
	Active() (AudioNode, error)
}

// NodeProviderFunc adapts a function to the NodeProvider interface.
type NodeProviderFunc func() (AudioNode, error)

func (f NodeProviderFunc) Active() (AudioNode, error) { return f() }

// Settings is the per-guild persisted preference set.
type Settings struct {
	Volume          int
	LoopMode        LoopMode
	Stay247         bool
	AnnounceEnabled bool
	AnnounceChannel string
}

// SettingsStore persists per-guild settings. Load's second return reports
// whether a stored row existed.
type SettingsStore interface {
	Load(ctx context.Context, guildID string) (Settings, bool, error)
	Save(ctx context.Context, guildID string, settings Settings) error
}

// VoiceGateway detaches the bot from a guild's voice channel.
type VoiceGateway interface {
	Disconnect(guildID string) error
}

// Notifier receives now-playing announcements when announcing is enabled
// for the guild. channelID may be empty, meaning the notifier should fall
// back to wherever it last spoke.
type Notifier interface {
	TrackStarted(guildID, channelID string, track lavalink.Track)
}

// EnqueueResult reports what Enqueue did with the track.
type EnqueueResult struct {
	// Started is true when the session was idle and playback began
	// immediately.
	Started bool
	Track   lavalink.Track
	// Position is the track's 1-based queue position when Started is false.
	Position int
}

// SkipResult reports the outcome of a skip. Next is nil when the queue was
// empty and the session went idle.
type SkipResult struct {
	Skipped lavalink.Track
	Next    *lavalink.Track
}

// NowPlaying is a read snapshot of the session's playback state.
type NowPlaying struct {
	Track    lavalink.Track
	Position time.Duration
	Status   Status
	Loop     LoopMode
	Volume   int
}

// resumeState is the snapshot taken when the active node drops mid-track.
// Exactly one automatic resume is attempted from it when a node comes back.
type resumeState struct {
	track    lavalink.Track
	position time.Duration
	paused   bool
}

// SessionOptions wires a session to its collaborators.
type SessionOptions struct {
	GuildID     string
	Nodes       NodeProvider
	Store       SettingsStore
	Voice       VoiceGateway
	Notifier    Notifier
	Settings    Settings
	IdleTimeout time.Duration
	// OnIdleStop is called after the session tore itself down because the
	// idle timeout elapsed. The registry uses it to drop its map entry.
	OnIdleStop func(guildID string)
	Logger     zerolog.Logger
}

// Session drives playback for one guild. A single mutex serializes commands
// and node events, so per guild everything happens in a strict order;
// sessions share nothing, so guilds never block each other.
type Session struct {
	guildID     string
	nodes       NodeProvider
	store       SettingsStore
	voice       VoiceGateway
	notifier    Notifier
	idleTimeout time.Duration
	onIdleStop  func(guildID string)
	log         zerolog.Logger

	mu           sync.Mutex
	status       Status
	queue        *Queue
	current      *lavalink.Track
	position     time.Duration
	loop         LoopMode
	volume       int
	stay247      bool
	announceOn   bool
	announceCh   string
	resume       *resumeState
	stuckRetried bool
	idleTimer    *time.Timer
	closed       bool

	inbox chan lavalink.Event
	done  chan struct{}
}

// NewSession builds a session and starts its event drainer. The session
// begins idle, so the idle timer is armed right away.
func NewSession(opts SessionOptions) *Session {
	s := &Session{
		guildID:     opts.GuildID,
		nodes:       opts.Nodes,
		store:       opts.Store,
		voice:       opts.Voice,
		notifier:    opts.Notifier,
		idleTimeout: opts.IdleTimeout,
		onIdleStop:  opts.OnIdleStop,
		log:         opts.Logger,
		status:      StatusIdle,
		queue:       NewQueue(),
		loop:        opts.Settings.LoopMode,
		volume:      opts.Settings.Volume,
		stay247:     opts.Settings.Stay247,
		announceOn:  opts.Settings.AnnounceEnabled,
		announceCh:  opts.Settings.AnnounceChannel,
		inbox:       make(chan lavalink.Event, inboxSize),
		done:        make(chan struct{}),
	}
	s.mu.Lock()
	s.armIdleTimerLocked()
	s.mu.Unlock()
	go s.drainInbox()
	return s
}

// GuildID returns the guild this session plays for.
func (s *Session) GuildID() string { return s.guildID }

// Status returns the session's playback state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Settings returns a snapshot of the session's current preferences.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settingsLocked()
}

func (s *Session) settingsLocked() Settings {
	return Settings{
		Volume:          s.volume,
		LoopMode:        s.loop,
		Stay247:         s.stay247,
		AnnounceEnabled: s.announceOn,
		AnnounceChannel: s.announceCh,
	}
}

// Tracks returns a copy of the pending queue in play order.
func (s *Session) Tracks() []lavalink.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Tracks()
}

// QueueLength returns the number of pending tracks.
func (s *Session) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// NowPlaying returns the current track snapshot. The second return is false
// when nothing is loaded.
func (s *Session) NowPlaying() (NowPlaying, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return NowPlaying{}, false
	}
	return NowPlaying{
		Track:    *s.current,
		Position: s.position,
		Status:   s.status,
		Loop:     s.loop,
		Volume:   s.volume,
	}, true
}

// Enqueue appends a track. On an idle session playback starts immediately;
// otherwise the track waits in the queue and the session's state is
// untouched. A failed immediate start leaves the session unchanged and the
// track unqueued so the caller can retry.
func (s *Session) Enqueue(ctx context.Context, track lavalink.Track) (EnqueueResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return EnqueueResult{}, ErrSessionClosed
	}
	if s.status != StatusIdle {
		pos := s.queue.Add(track)
		s.log.Debug().Str("track", track.Display()).Int("position", pos).Msg("track queued")
		return EnqueueResult{Track: track, Position: pos}, nil
	}
	if err := s.startTrack(ctx, track, 0, false); err != nil {
		return EnqueueResult{}, err
	}
	return EnqueueResult{Started: true, Track: track}, nil
}

// Pause suspends playback.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	switch s.status {
	case StatusIdle:
		return ErrNothingPlaying
	case StatusPaused:
		return ErrAlreadyPaused
	}
	node, err := s.nodes.Active()
	if err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, playerOpTimeout)
	defer cancel()
	if err := node.Pause(opCtx, s.guildID, true); err != nil {
		return err
	}
	s.status = StatusPaused
	return nil
}

// Resume continues paused playback.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.status != StatusPaused {
		return ErrNotPaused
	}
	node, err := s.nodes.Active()
	if err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, playerOpTimeout)
	defer cancel()
	if err := node.Pause(opCtx, s.guildID, false); err != nil {
		return err
	}
	s.status = StatusPlaying
	return nil
}

// Seek moves playback to an absolute position in the current track. The
// position is clamped to the track bounds; streams and other non-seekable
// tracks are rejected.
func (s *Session) Seek(ctx context.Context, position time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.current == nil {
		return ErrNothingPlaying
	}
	if s.current.Info.IsStream || !s.current.Info.IsSeekable {
		return ErrNotSeekable
	}
	if position < 0 {
		position = 0
	}
	if length := s.current.Duration(); position > length {
		position = length
	}
	node, err := s.nodes.Active()
	if err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, playerOpTimeout)
	defer cancel()
	if err := node.Seek(opCtx, s.guildID, position); err != nil {
		return err
	}
	s.position = position
	return nil
}

// Skip discards the current track outright and moves to the next queue
// entry, or idles out when the queue is empty. Loop modes never apply to a
// skip: loop=track is ignored and the skipped track is not re-appended
// under loop=queue.
func (s *Session) Skip(ctx context.Context) (SkipResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return SkipResult{}, ErrSessionClosed
	}
	if s.current == nil {
		return SkipResult{}, ErrNothingPlaying
	}
	skipped := *s.current
	s.current = nil
	next, err := s.advanceLocked(ctx, true)
	if err != nil {
		return SkipResult{Skipped: skipped}, err
	}
	return SkipResult{Skipped: skipped, Next: next}, nil
}

// Stop clears the queue and the current track and idles the session out.
// Stopping an already idle session is a no-op.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.status == StatusIdle {
		return nil
	}
	s.queue.Clear()
	s.stopPlayerLocked(ctx)
	s.goIdleLocked()
	return nil
}

// SetVolume applies a 0-100 volume to the live player and persists it as
// the guild default. Out-of-range values are rejected outright.
func (s *Session) SetVolume(ctx context.Context, volume int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if volume < 0 || volume > 100 {
		return ErrVolumeOutOfRange
	}
	if s.current != nil {
		node, err := s.nodes.Active()
		if err != nil {
			return err
		}
		opCtx, cancel := context.WithTimeout(ctx, playerOpTimeout)
		defer cancel()
		if err := node.SetVolume(opCtx, s.guildID, volume); err != nil {
			return err
		}
	}
	s.volume = volume
	s.persistAsync()
	return nil
}

// SetLoopMode switches the loop mode and persists it.
func (s *Session) SetLoopMode(ctx context.Context, mode LoopMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	switch mode {
	case LoopOff, LoopTrack, LoopQueue:
	default:
		return ErrUnknownLoopMode
	}
	s.loop = mode
	s.persistAsync()
	return nil
}

// Remove deletes the pending track at the given 0-based index. The current
// track cannot be removed this way, that is what Skip is for.
func (s *Session) Remove(ctx context.Context, index int) (lavalink.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lavalink.Track{}, ErrSessionClosed
	}
	return s.queue.Remove(index)
}

// Move relocates a pending track inside the queue. Indexes are 0-based.
func (s *Session) Move(ctx context.Context, from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return s.queue.Move(from, to)
}

// Shuffle randomizes the pending queue.
func (s *Session) Shuffle(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.queue.Len() == 0 {
		return ErrQueueEmpty
	}
	s.queue.Shuffle()
	return nil
}

// Clear drops every pending track and reports how many were dropped. The
// current track keeps playing.
func (s *Session) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	return s.queue.Clear(), nil
}

// SetStay247 toggles 24/7 mode. While on, the session never idles out of
// the voice channel.
func (s *Session) SetStay247(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.stay247 = on
	if on {
		s.cancelIdleTimerLocked()
	} else if s.status == StatusIdle {
		s.armIdleTimerLocked()
	}
	s.persistAsync()
	return nil
}

// SetAnnounce toggles now-playing announcements and optionally pins them to
// a channel.
func (s *Session) SetAnnounce(ctx context.Context, enabled bool, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.announceOn = enabled
	s.announceCh = channelID
	s.persistAsync()
	return nil
}

// Deliver hands a node event to the session's inbox. It never blocks:
// events for a closed session or a full inbox are dropped.
func (s *Session) Deliver(ev lavalink.Event) {
	select {
	case <-s.done:
	case s.inbox <- ev:
	default:
		s.log.Warn().Type("event", ev).Msg("session inbox full, dropping event")
	}
}

// Teardown stops playback, destroys the node player, leaves voice, and
// shuts the session down. Safe to call more than once.
func (s *Session) Teardown(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancelIdleTimerLocked()
	s.queue.Clear()
	s.current = nil
	s.resume = nil
	s.status = StatusIdle
	s.mu.Unlock()
	close(s.done)
	s.destroyPlayer(ctx)
	s.leaveVoice()
}

func (s *Session) drainInbox() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.inbox:
			s.handleEvent(ev)
		}
	}
}

// handleEvent applies one node event to the session. It runs on the inbox
// drainer goroutine, so events for one guild apply strictly in arrival
// order.
func (s *Session) handleEvent(ev lavalink.Event) {
	switch e := ev.(type) {
	case lavalink.TrackStartEvent:
		s.handleTrackStart(e)
	case lavalink.TrackEndEvent:
		s.handleTrackEnd(e)
	case lavalink.TrackStuckEvent:
		s.handleTrackStuck(e)
	case lavalink.TrackExceptionEvent:
		s.handleTrackException(e)
	case lavalink.PlayerUpdateEvent:
		s.handlePlayerUpdate(e)
	case lavalink.WebSocketClosedEvent:
		s.handleWebSocketClosed(e)
	case lavalink.NodeConnectedEvent:
		s.handleNodeConnected(e)
	case lavalink.NodeDisconnectedEvent:
		s.handleNodeDisconnected(e)
	}
}

func (s *Session) handleTrackStart(e lavalink.TrackStartEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.position = 0
	announce := s.announceOn && s.notifier != nil
	channel := s.announceCh
	s.mu.Unlock()

	s.log.Info().Str("track", e.Track.Display()).Msg("track started")
	if announce {
		s.notifier.TrackStarted(s.guildID, channel, e.Track)
	}
}

func (s *Session) handleTrackEnd(e lavalink.TrackEndEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if !e.Reason.MayStartNext() {
		// Stopped, replaced and cleanup ends belong to the command that
		// caused them; the transition already happened there.
		return
	}
	if s.current == nil || s.current.Encoded != e.Track.Encoded {
		// End report for a track the session already moved past, e.g. a
		// finish that raced a skip.
		return
	}

	ended := *s.current
	ctx := context.Background()

	if s.loop == LoopTrack && e.Reason == lavalink.EndReasonFinished {
		if err := s.startTrack(ctx, ended, 0, false); err == nil {
			return
		} else if isNodeUnavailable(err) {
			s.parkLocked(ended, 0, false)
			return
		} else {
			s.log.Warn().Err(err).Str("track", ended.Display()).Msg("loop replay failed, advancing")
		}
	} else if s.loop == LoopQueue && e.Reason == lavalink.EndReasonFinished {
		s.queue.Add(ended)
	}

	s.current = nil
	if _, err := s.advanceLocked(ctx, false); err != nil {
		s.log.Warn().Err(err).Msg("could not start next track")
	}
}

func (s *Session) handleTrackStuck(e lavalink.TrackStuckEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.current == nil || s.current.Encoded != e.Track.Encoded {
		return
	}

	if !s.stuckRetried {
		stuck := *s.current
		s.log.Warn().
			Str("track", stuck.Display()).
			Dur("threshold", e.Threshold).
			Msg("track stuck, retrying once")
		if err := s.startTrack(context.Background(), stuck, 0, false); err == nil {
			s.stuckRetried = true
			return
		}
	} else {
		s.log.Warn().Str("track", s.current.Display()).Msg("track stuck again, skipping")
	}

	s.current = nil
	if _, err := s.advanceLocked(context.Background(), true); err != nil {
		s.log.Warn().Err(err).Msg("could not start next track")
	}
}

func (s *Session) handleTrackException(e lavalink.TrackExceptionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.current == nil || s.current.Encoded != e.Track.Encoded {
		return
	}
	s.log.Error().
		Str("track", s.current.Display()).
		Str("severity", e.Severity).
		Str("error", e.Message).
		Msg("track error reported by node")
	s.current = nil
	if _, err := s.advanceLocked(context.Background(), false); err != nil {
		s.log.Warn().Err(err).Msg("could not start next track")
	}
}

func (s *Session) handlePlayerUpdate(e lavalink.PlayerUpdateEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.current == nil {
		return
	}
	s.position = e.Position
}

func (s *Session) handleWebSocketClosed(e lavalink.WebSocketClosedEvent) {
	s.log.Warn().
		Int("code", e.Code).
		Str("reason", e.Reason).
		Bool("by_remote", e.ByRemote).
		Msg("voice websocket closed")
}

// handleNodeDisconnected snapshots the playback position so the session can
// pick up where it left off once a node is available again. Status is left
// alone; commands that need a node fail with a node error in the meantime.
func (s *Session) handleNodeDisconnected(e lavalink.NodeDisconnectedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.current == nil || s.status == StatusIdle {
		return
	}
	s.resume = &resumeState{
		track:    *s.current,
		position: s.position,
		paused:   s.status == StatusPaused,
	}
	s.log.Info().
		Str("node", e.NodeID).
		Str("track", s.current.Display()).
		Dur("position", s.position).
		Msg("node lost mid-track, holding resume candidate")
}

// handleNodeConnected makes exactly one automatic resume attempt when a
// resume candidate is pending. A failed attempt discards the candidate and
// advances; there is no retry loop.
func (s *Session) handleNodeConnected(e lavalink.NodeConnectedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.resume == nil {
		return
	}
	cand := *s.resume
	s.resume = nil

	ctx := context.Background()
	if err := s.startTrack(ctx, cand.track, cand.position, cand.paused); err != nil {
		s.log.Warn().
			Err(err).
			Str("node", e.NodeID).
			Str("track", cand.track.Display()).
			Msg("resume on reconnected node failed, advancing")
		s.current = nil
		if _, err := s.advanceLocked(ctx, false); err != nil {
			s.log.Warn().Err(err).Msg("could not start next track")
		}
		return
	}
	s.log.Info().
		Str("node", e.NodeID).
		Str("track", cand.track.Display()).
		Dur("position", cand.position).
		Msg("resumed playback on reconnected node")
}

// startTrack plays a track on the active node and flips the session into
// playing (or paused, when restoring a paused snapshot). Caller holds the
// mutex. Session state only changes after the node accepted the play, so a
// failed start leaves everything as it was.
func (s *Session) startTrack(ctx context.Context, track lavalink.Track, position time.Duration, paused bool) error {
	node, err := s.nodes.Active()
	if err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, playerOpTimeout)
	defer cancel()
	if err := node.Play(opCtx, s.guildID, track, position, s.volume, paused); err != nil {
		return err
	}
	s.current = &track
	s.position = position
	s.stuckRetried = false
	if paused {
		s.status = StatusPaused
	} else {
		s.status = StatusPlaying
	}
	s.cancelIdleTimerLocked()
	return nil
}

// advanceLocked moves the session to the next playable queue entry or idles
// it out. Caller holds the mutex and has already settled the previous
// current track (discarded or re-appended). Tracks the node refuses to play
// are dropped and the walk continues; when no node is available at all the
// head track is parked as the resume candidate instead, so the reconnect
// path can pick it up.
func (s *Session) advanceLocked(ctx context.Context, stopPlayer bool) (*lavalink.Track, error) {
	for {
		next, ok := s.queue.Next()
		if !ok {
			if stopPlayer {
				s.stopPlayerLocked(ctx)
			}
			s.goIdleLocked()
			return nil, nil
		}
		err := s.startTrack(ctx, next, 0, false)
		if err == nil {
			return &next, nil
		}
		if isNodeUnavailable(err) {
			s.parkLocked(next, 0, false)
			return nil, err
		}
		s.log.Warn().Err(err).Str("track", next.Display()).Msg("track rejected by node, trying next")
	}
}

// parkLocked stores a resume candidate for the time when no node is
// available to play it right now.
func (s *Session) parkLocked(track lavalink.Track, position time.Duration, paused bool) {
	s.current = nil
	s.resume = &resumeState{track: track, position: position, paused: paused}
	s.log.Info().Str("track", track.Display()).Msg("no node available, parking track until reconnect")
}

// stopPlayerLocked silences the node player, best effort. Caller holds the
// mutex.
func (s *Session) stopPlayerLocked(ctx context.Context) {
	node, err := s.nodes.Active()
	if err != nil {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, playerOpTimeout)
	defer cancel()
	if err := node.Stop(opCtx, s.guildID); err != nil {
		s.log.Warn().Err(err).Msg("failed to stop node player")
	}
}

// goIdleLocked clears playback state and arms the idle timer. Any pending
// resume candidate is obsolete once the session deliberately idles out.
func (s *Session) goIdleLocked() {
	s.current = nil
	s.position = 0
	s.status = StatusIdle
	s.resume = nil
	s.stuckRetried = false
	s.armIdleTimerLocked()
}

func (s *Session) armIdleTimerLocked() {
	if s.idleTimeout <= 0 || s.stay247 || s.closed {
		return
	}
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(s.idleTimeout, s.idleTimerFired)
}

func (s *Session) cancelIdleTimerLocked() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

// idleTimerFired runs on the timer goroutine. The status check under the
// mutex is authoritative: a timer that lost the cancel race finds the
// session busy and backs off, so an enqueue that slipped in just before
// the deadline always wins.
func (s *Session) idleTimerFired() {
	s.mu.Lock()
	if s.closed || s.status != StatusIdle || s.stay247 {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancelIdleTimerLocked()
	s.mu.Unlock()
	close(s.done)

	s.log.Info().Dur("idle_timeout", s.idleTimeout).Msg("session idle too long, leaving voice")
	ctx, cancel := context.WithTimeout(context.Background(), playerOpTimeout)
	defer cancel()
	s.destroyPlayer(ctx)
	s.leaveVoice()
	if s.onIdleStop != nil {
		s.onIdleStop(s.guildID)
	}
}

// destroyPlayer removes the guild player from the node, best effort.
func (s *Session) destroyPlayer(ctx context.Context) {
	node, err := s.nodes.Active()
	if err != nil {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, playerOpTimeout)
	defer cancel()
	if err := node.Destroy(opCtx, s.guildID); err != nil {
		s.log.Warn().Err(err).Msg("failed to destroy node player")
	}
}

func (s *Session) leaveVoice() {
	if s.voice == nil {
		return
	}
	if err := s.voice.Disconnect(s.guildID); err != nil {
		s.log.Warn().Err(err).Msg("failed to leave voice channel")
	}
}

// persistAsync snapshots the settings under the caller's lock and saves
// them off the hot path. Persistence failures are logged, never surfaced
// to commands.
func (s *Session) persistAsync() {
	if s.store == nil {
		return
	}
	snap := s.settingsLocked()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.store.Save(ctx, s.guildID, snap); err != nil {
			s.log.Error().Err(err).Msg("failed to persist guild settings")
		}
	}()
}

func isNodeUnavailable(err error) bool {
	return errors.Is(err, lavalink.ErrNoActiveNode) || errors.Is(err, lavalink.ErrAllNodesFailed)
}
