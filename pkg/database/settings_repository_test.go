package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aventh/cadenza/pkg/player"
)

func newTestRepository(t *testing.T) (*SettingsRepository, *sql.DB) {
	t.Helper()

	manager := newTestManager(t)
	repo, err := manager.Settings()
	require.NoError(t, err)
	db, err := manager.DB()
	require.NoError(t, err)
	return repo, db
}

func TestNewSettingsRepositoryRequiresDB(t *testing.T) {
	repo, err := NewSettingsRepository(nil, zerolog.Nop())
	assert.Error(t, err)
	assert.Nil(t, repo)
}

func TestLoadUnknownGuild(t *testing.T) {
	repo, _ := newTestRepository(t)

	settings, found, err := repo.Load(context.Background(), "guild-unknown")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, player.Settings{}, settings)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	saved := player.Settings{
		Volume:          55,
		LoopMode:        player.LoopQueue,
		Stay247:         true,
		AnnounceEnabled: true,
		AnnounceChannel: "chan-9",
	}
	require.NoError(t, repo.Save(ctx, "guild-1", saved))

	loaded, found, err := repo.Load(ctx, "guild-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, saved, loaded)
}

func TestSaveUpserts(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "guild-1", player.Settings{Volume: 30, LoopMode: player.LoopOff}))
	require.NoError(t, repo.Save(ctx, "guild-1", player.Settings{Volume: 80, LoopMode: player.LoopTrack}))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	loaded, found, err := repo.Load(ctx, "guild-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 80, loaded.Volume)
	assert.Equal(t, player.LoopTrack, loaded.LoopMode)
}

func TestLoadInvalidLoopModeFallsBackToOff(t *testing.T) {
	repo, db := newTestRepository(t)

	_, err := db.Exec(`
		INSERT INTO guild_settings (guild_id, volume_default, loop_mode, stay_247, announce_enabled, announce_channel_id)
		VALUES ('guild-1', 40, 'forever', 0, 0, '')`)
	require.NoError(t, err)

	loaded, found, err := repo.Load(context.Background(), "guild-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, player.LoopOff, loaded.LoopMode)
	assert.Equal(t, 40, loaded.Volume)
}

func TestPruneRemovesOnlyStaleRows(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "guild-fresh", player.Settings{Volume: 30}))
	require.NoError(t, repo.Save(ctx, "guild-stale", player.Settings{Volume: 30}))

	stale := time.Now().UTC().Add(-400 * 24 * time.Hour)
	_, err := db.Exec(`UPDATE guild_settings SET updated_at = ? WHERE guild_id = 'guild-stale'`, stale)
	require.NoError(t, err)

	pruned, err := repo.Prune(ctx, 365*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	_, found, err := repo.Load(ctx, "guild-fresh")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCount(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	for _, guildID := range []string{"guild-1", "guild-2", "guild-3"} {
		require.NoError(t, repo.Save(ctx, guildID, player.Settings{Volume: 30}))
	}

	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}
