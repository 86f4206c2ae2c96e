package player

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aventh/cadenza/pkg/lavalink"
)

// RegistryOptions wires a registry to the collaborators every session it
// creates will share.
type RegistryOptions struct {
	Nodes       NodeProvider
	Store       SettingsStore
	Voice       VoiceGateway
	Notifier    Notifier
	Defaults    Settings
	IdleTimeout time.Duration
	Logger      zerolog.Logger
}

// Registry owns the per-guild sessions and routes node events to them.
type Registry struct {
	nodes       NodeProvider
	store       SettingsStore
	voice       VoiceGateway
	notifier    Notifier
	defaults    Settings
	idleTimeout time.Duration
	log         zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry builds an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	return &Registry{
		nodes:       opts.Nodes,
		store:       opts.Store,
		voice:       opts.Voice,
		notifier:    opts.Notifier,
		defaults:    opts.Defaults,
		idleTimeout: opts.IdleTimeout,
		log:         opts.Logger,
		sessions:    make(map[string]*Session),
	}
}

// GetOrCreate returns the guild's session, creating it on first use.
// Concurrent calls for the same guild all get the same session. A new
// session starts from the guild's persisted settings, or the configured
// defaults when none are stored.
func (r *Registry) GetOrCreate(guildID string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[guildID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	// Settings load happens outside the write lock; the loser of a create
	// race just discards its work.
	settings := r.loadSettings(guildID)

	r.mu.Lock()
	if existing, ok := r.sessions[guildID]; ok {
		r.mu.Unlock()
		return existing
	}
	s = NewSession(SessionOptions{
		GuildID:     guildID,
		Nodes:       r.nodes,
		Store:       r.store,
		Voice:       r.voice,
		Notifier:    r.notifier,
		Settings:    settings,
		IdleTimeout: r.idleTimeout,
		OnIdleStop:  r.Remove,
		Logger:      r.log.With().Str("guild", guildID).Logger(),
	})
	r.sessions[guildID] = s
	r.mu.Unlock()

	r.log.Debug().Str("guild", guildID).Msg("playback session created")
	return s
}

func (r *Registry) loadSettings(guildID string) Settings {
	if r.store == nil {
		return r.defaults
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	stored, found, err := r.store.Load(ctx, guildID)
	if err != nil {
		r.log.Error().Err(err).Str("guild", guildID).Msg("failed to load guild settings, using defaults")
		return r.defaults
	}
	if !found {
		return r.defaults
	}
	return stored
}

// Get returns the guild's session without creating one.
func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// Remove tears the guild's session down and forgets it. Removing a guild
// without a session is a no-op.
func (r *Registry) Remove(guildID string) {
	r.mu.Lock()
	s, ok := r.sessions[guildID]
	if ok {
		delete(r.sessions, guildID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), playerOpTimeout)
	defer cancel()
	s.Teardown(ctx)
	r.log.Debug().Str("guild", guildID).Msg("playback session removed")
}

// ActiveCount reports how many sessions are playing or paused right now.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	active := 0
	for _, s := range r.sessions {
		if s.Status() != StatusIdle {
			active++
		}
	}
	return active
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Run routes node events to sessions until ctx is done or the event channel
// closes. Guild-scoped events go to that guild's inbox; node lifecycle
// events fan out to every live session so each can park or resume its own
// playback.
func (r *Registry) Run(ctx context.Context, events <-chan lavalink.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.dispatch(ev)
		}
	}
}

func (r *Registry) dispatch(ev lavalink.Event) {
	switch e := ev.(type) {
	case lavalink.GuildEvent:
		s, ok := r.Get(e.Guild())
		if !ok {
			r.log.Debug().Str("guild", e.Guild()).Type("event", ev).Msg("dropping event for unknown guild")
			return
		}
		s.Deliver(ev)
	case lavalink.NodeConnectedEvent:
		r.log.Info().Str("node", e.NodeID).Bool("resumed", e.Resumed).Msg("audio node connected")
		r.broadcast(ev)
	case lavalink.NodeDisconnectedEvent:
		r.log.Warn().Str("node", e.NodeID).Err(e.Err).Msg("audio node disconnected")
		r.broadcast(ev)
	case lavalink.NodeFailedEvent:
		r.log.Warn().Str("node", e.NodeID).Int("attempts", e.Attempts).Err(e.Err).Msg("audio node failed to connect")
	case lavalink.NodesExhaustedEvent:
		r.log.Error().Msg("all audio nodes exhausted, playback unavailable until reconnect")
	}
}

func (r *Registry) broadcast(ev lavalink.Event) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()
	for _, s := range sessions {
		s.Deliver(ev)
	}
}

// Close tears down every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), playerOpTimeout)
	defer cancel()
	for _, s := range sessions {
		s.Teardown(ctx)
	}
}
