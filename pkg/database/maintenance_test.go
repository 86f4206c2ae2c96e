package database

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aventh/cadenza/pkg/player"
)

func TestMaintenancePrunesStaleSettings(t *testing.T) {
	manager := newTestManager(t)
	repo, err := manager.Settings()
	require.NoError(t, err)
	db, err := manager.DB()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "guild-stale", player.Settings{Volume: 30}))
	stale := time.Now().UTC().Add(-400 * 24 * time.Hour)
	_, err = db.Exec(`UPDATE guild_settings SET updated_at = ?`, stale)
	require.NoError(t, err)

	maintenance := NewMaintenanceWithSchedule(manager, repo, "0 10 4 * * *", zerolog.Nop())
	defer maintenance.Stop()

	// The constructor kicks off an initial sweep in the background.
	require.Eventually(t, func() bool {
		count, err := repo.Count(ctx)
		return err == nil && count == 0
	}, 3*time.Second, 20*time.Millisecond)

	assert.False(t, maintenance.GetNextRun().IsZero())
}

func TestMaintenanceStopIsSafe(t *testing.T) {
	manager := newTestManager(t)
	repo, err := manager.Settings()
	require.NoError(t, err)

	maintenance := NewMaintenance(manager, repo, zerolog.Nop())
	maintenance.Stop()
	maintenance.Stop()

	// The initial background sweep finishes on its own after Stop.
	assert.Eventually(t, func() bool {
		return !maintenance.IsRunning()
	}, 3*time.Second, 20*time.Millisecond)
}
