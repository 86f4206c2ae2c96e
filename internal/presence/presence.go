package presence

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// refreshInterval is how often the default presence is recomputed.
const refreshInterval = 5 * time.Minute

// Manager keeps the bot's Discord status line current. While any guild is
// playing it shows the most recently started track; otherwise it falls back
// to a server-count status.
type Manager struct {
	session *discordgo.Session
	logger  zerolog.Logger

	// activeSessions reports how many guilds are playing or paused. Used
	// by the periodic refresh to decide when a stale track line should be
	// replaced with the default status.
	activeSessions func() int

	mu      sync.RWMutex
	current string

	stopOnce sync.Once
	stop     chan struct{}
}

// NewManager builds a presence manager. activeSessions may be nil, in which
// case the periodic refresh only updates the default status.
func NewManager(session *discordgo.Session, activeSessions func() int, logger zerolog.Logger) *Manager {
	return &Manager{
		session:        session,
		logger:         logger.With().Str("component", "presence").Logger(),
		activeSessions: activeSessions,
		stop:           make(chan struct{}),
	}
}

// UpdateDefault sets the idle status line with the current server count.
func (m *Manager) UpdateDefault() {
	guilds := len(m.session.State.Guilds)

	status := discordgo.UpdateStatusData{
		Status: "online",
		Activities: []*discordgo.Activity{
			{
				Name:  "/play",
				Type:  discordgo.ActivityTypeListening,
				State: fmt.Sprintf("in %d servers", guilds),
			},
		},
	}
	if err := m.session.UpdateStatusComplex(status); err != nil {
		m.logger.Warn().Err(err).Msg("failed to update default presence")
		return
	}

	m.mu.Lock()
	m.current = "default"
	m.mu.Unlock()
}

// UpdateTrack sets the status line to the track that just started.
func (m *Manager) UpdateTrack(title string) {
	status := discordgo.UpdateStatusData{
		Status: "online",
		Activities: []*discordgo.Activity{
			{
				Name:  "to",
				Type:  discordgo.ActivityTypeListening,
				State: title,
			},
		},
	}
	if err := m.session.UpdateStatusComplex(status); err != nil {
		m.logger.Warn().Err(err).Msg("failed to update track presence")
		return
	}

	m.mu.Lock()
	m.current = "track"
	m.mu.Unlock()
}

// Current reports which presence is showing, "default" or "track".
func (m *Manager) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// shouldRefresh decides whether a periodic tick replaces the status line.
// A track line stays up while any session is still playing.
func (m *Manager) shouldRefresh() bool {
	if m.Current() != "track" {
		return true
	}
	return m.activeSessions != nil && m.activeSessions() == 0
}

// Start launches the periodic refresh. A stale track line is swapped back
// to the default status once no guild is playing anymore.
func (m *Manager) Start() {
	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				if m.shouldRefresh() {
					m.UpdateDefault()
				}
			}
		}
	}()
}

// Stop ends the periodic refresh. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}
