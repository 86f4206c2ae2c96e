package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aventh/cadenza/pkg/player"
)

// SettingsRepository stores per-guild playback preferences. It implements
// player.SettingsStore.
type SettingsRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSettingsRepository creates a repository on an open database handle.
func NewSettingsRepository(db *sql.DB, logger zerolog.Logger) (*SettingsRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &SettingsRepository{
		db:     db,
		logger: logger.With().Str("component", "settings_repository").Logger(),
	}, nil
}

// Load fetches the stored settings for a guild. The second return is false
// when the guild has no stored row.
func (r *SettingsRepository) Load(ctx context.Context, guildID string) (player.Settings, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT volume_default, loop_mode, stay_247, announce_enabled, announce_channel_id
		FROM guild_settings
		WHERE guild_id = ?`, guildID)

	var (
		settings player.Settings
		loopMode string
	)
	err := row.Scan(&settings.Volume, &loopMode, &settings.Stay247, &settings.AnnounceEnabled, &settings.AnnounceChannel)
	if errors.Is(err, sql.ErrNoRows) {
		return player.Settings{}, false, nil
	}
	if err != nil {
		return player.Settings{}, false, fmt.Errorf("failed to load guild settings: %w", err)
	}

	mode, err := player.ParseLoopMode(loopMode)
	if err != nil {
		r.logger.Warn().
			Str("guild_id", guildID).
			Str("loop_mode", loopMode).
			Msg("stored loop mode is invalid, falling back to off")
		mode = player.LoopOff
	}
	settings.LoopMode = mode
	return settings, true, nil
}

// Save upserts the settings row for a guild.
func (r *SettingsRepository) Save(ctx context.Context, guildID string, settings player.Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, volume_default, loop_mode, stay_247, announce_enabled, announce_channel_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			volume_default = excluded.volume_default,
			loop_mode = excluded.loop_mode,
			stay_247 = excluded.stay_247,
			announce_enabled = excluded.announce_enabled,
			announce_channel_id = excluded.announce_channel_id,
			updated_at = excluded.updated_at`,
		guildID,
		settings.Volume,
		settings.LoopMode.String(),
		settings.Stay247,
		settings.AnnounceEnabled,
		settings.AnnounceChannel,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save guild settings: %w", err)
	}
	return nil
}

// Prune deletes settings rows untouched for longer than olderThan and
// returns how many were removed.
func (r *SettingsRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := r.db.ExecContext(ctx, `DELETE FROM guild_settings WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune guild settings: %w", err)
	}
	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned guild settings: %w", err)
	}
	return pruned, nil
}

// Count returns the number of stored guild settings rows.
func (r *SettingsRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM guild_settings`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count guild settings: %w", err)
	}
	return count, nil
}
