package database

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	// defaultMaintenanceSchedule runs daily at 04:10, when guilds are quiet.
	defaultMaintenanceSchedule = "0 10 4 * * *"

	// settingsTTL is how long untouched guild settings rows are kept.
	settingsTTL = 365 * 24 * time.Hour

	maintenanceTimeout = 2 * time.Minute
)

// Maintenance prunes stale guild settings and runs SQLite housekeeping on a
// cron schedule.
type Maintenance struct {
	cron     *cron.Cron
	entry    cron.EntryID
	manager  *Manager
	repo     *SettingsRepository
	ttl      time.Duration
	schedule string
	logger   zerolog.Logger

	mutex     sync.RWMutex
	isRunning bool
}

// NewMaintenance schedules daily database maintenance and kicks off an
// initial run in the background.
func NewMaintenance(manager *Manager, repo *SettingsRepository, logger zerolog.Logger) *Maintenance {
	return NewMaintenanceWithSchedule(manager, repo, defaultMaintenanceSchedule, logger)
}

// NewMaintenanceWithSchedule is NewMaintenance with a custom cron schedule.
// The schedule uses the six-field form with a leading seconds column.
func NewMaintenanceWithSchedule(manager *Manager, repo *SettingsRepository, schedule string, logger zerolog.Logger) *Maintenance {
	m := &Maintenance{
		cron:     cron.New(cron.WithSeconds()),
		manager:  manager,
		repo:     repo,
		ttl:      settingsTTL,
		schedule: schedule,
		logger:   logger.With().Str("component", "db_maintenance").Logger(),
	}

	m.cron.Start()

	entryID, err := m.cron.AddFunc(schedule, m.runMaintenance)
	if err != nil {
		m.logger.Error().Err(err).Str("schedule", schedule).Msg("failed to schedule database maintenance")
	} else {
		m.entry = entryID
		m.logger.Info().Str("schedule", schedule).Msg("scheduled database maintenance")
	}

	// Initial sweep so a long-stopped bot catches up without waiting a day.
	go m.runMaintenance()

	return m
}

func (m *Maintenance) runMaintenance() {
	m.mutex.Lock()
	if m.isRunning {
		m.mutex.Unlock()
		m.logger.Debug().Msg("maintenance already in progress, skipping")
		return
	}
	m.isRunning = true
	m.mutex.Unlock()

	defer func() {
		m.mutex.Lock()
		m.isRunning = false
		m.mutex.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()

	pruned, err := m.repo.Prune(ctx, m.ttl)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to prune stale guild settings")
	} else if pruned > 0 {
		m.logger.Info().Int64("pruned", pruned).Msg("pruned stale guild settings")
	}

	if err := m.manager.Optimize(ctx); err != nil {
		m.logger.Error().Err(err).Msg("database optimize failed")
	}
}

// Stop halts the cron scheduler. A run already in flight finishes on its own.
func (m *Maintenance) Stop() {
	if m.cron != nil {
		m.cron.Stop()
		m.logger.Info().Msg("database maintenance stopped")
	}
}

// GetNextRun returns the next scheduled maintenance time.
func (m *Maintenance) GetNextRun() time.Time {
	if m.cron != nil {
		entries := m.cron.Entries()
		if len(entries) > 0 {
			return entries[0].Next
		}
	}
	return time.Time{}
}

// IsRunning reports whether a maintenance sweep is currently in progress.
func (m *Maintenance) IsRunning() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.isRunning
}
