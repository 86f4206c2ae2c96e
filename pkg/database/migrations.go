package database

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// migration is a single versioned schema change. Each one runs inside its
// own transaction; UpSQL and DownSQL may contain multiple statements.
type migration struct {
	Version     int
	Name        string
	Description string
	UpSQL       string
	DownSQL     string
}

func (m *migration) checksum() string {
	sum := md5.Sum([]byte(m.UpSQL + m.DownSQL))
	return hex.EncodeToString(sum[:])
}

// schemaMigrations holds every known migration keyed by version. New schema
// changes append a new version here; applied scripts must never be edited,
// the startup checksum verification will refuse to boot on a mismatch.
var schemaMigrations = map[int]*migration{
	1: {
		Version:     1,
		Name:        "guild_settings",
		Description: "Per-guild playback preferences",
		UpSQL: `
			CREATE TABLE IF NOT EXISTS guild_settings (
				guild_id TEXT PRIMARY KEY,
				volume_default INTEGER NOT NULL DEFAULT 30,
				loop_mode TEXT NOT NULL DEFAULT 'off',
				stay_247 INTEGER NOT NULL DEFAULT 0,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_guild_settings_updated_at ON guild_settings(updated_at);
		`,
		DownSQL: `
			DROP INDEX IF EXISTS idx_guild_settings_updated_at;
			DROP TABLE IF EXISTS guild_settings;
		`,
	},
	2: {
		Version:     2,
		Name:        "announce_settings",
		Description: "Now-playing announcement preferences",
		UpSQL: `
			ALTER TABLE guild_settings ADD COLUMN announce_enabled INTEGER NOT NULL DEFAULT 0;
			ALTER TABLE guild_settings ADD COLUMN announce_channel_id TEXT NOT NULL DEFAULT '';
		`,
		DownSQL: `
			ALTER TABLE guild_settings DROP COLUMN announce_channel_id;
			ALTER TABLE guild_settings DROP COLUMN announce_enabled;
		`,
	},
}

const schemaTableSQL = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		checksum TEXT NOT NULL,
		applied_at DATETIME NOT NULL
	)`

// runMigrations brings the schema up to the latest known version. Already
// applied migrations are verified against their recorded checksums first.
func runMigrations(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	if _, err := db.ExecContext(ctx, schemaTableSQL); err != nil {
		return fmt.Errorf("%w: create schema_migrations: %v", ErrMigrationFailed, err)
	}

	if err := verifyAppliedMigrations(ctx, db); err != nil {
		return err
	}

	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, mig := range pendingMigrations(current) {
		if err := applyMigration(ctx, db, mig); err != nil {
			return fmt.Errorf("%w: %q (version %d): %v", ErrMigrationFailed, mig.Name, mig.Version, err)
		}
		logger.Info().
			Int("version", mig.Version).
			Str("name", mig.Name).
			Msg("applied migration")
	}
	return nil
}

func currentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("%w: read schema version: %v", ErrMigrationFailed, err)
	}
	return version, nil
}

func latestVersion() int {
	latest := 0
	for version := range schemaMigrations {
		if version > latest {
			latest = version
		}
	}
	return latest
}

func pendingMigrations(after int) []*migration {
	var pending []*migration
	for version, mig := range schemaMigrations {
		if version > after {
			pending = append(pending, mig)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })
	return pending
}

func applyMigration(ctx context.Context, db *sql.DB, mig *migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, mig.UpSQL); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO schema_migrations (version, name, description, checksum, applied_at)
		VALUES (?, ?, ?, ?, ?)`,
		mig.Version, mig.Name, mig.Description, mig.checksum(), time.Now().UTC())
	if err != nil {
		return err
	}
	return tx.Commit()
}

// verifyAppliedMigrations compares recorded checksums with the scripts
// compiled into this binary. A mismatch means an applied script was edited
// after the fact; an unknown version means the database was written by a
// newer build.
func verifyAppliedMigrations(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT version, checksum FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("%w: read applied migrations: %v", ErrMigrationFailed, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			version  int
			recorded string
		)
		if err := rows.Scan(&version, &recorded); err != nil {
			return fmt.Errorf("%w: scan applied migration: %v", ErrMigrationFailed, err)
		}
		mig, ok := schemaMigrations[version]
		if !ok {
			return fmt.Errorf("%w: applied version %d", ErrUnknownMigration, version)
		}
		if mig.checksum() != recorded {
			return fmt.Errorf("%w: version %d (%s)", ErrMigrationChecksumMismatch, version, mig.Name)
		}
	}
	return rows.Err()
}

// rollbackMigrations walks the schema down to targetVersion, newest first.
func rollbackMigrations(ctx context.Context, db *sql.DB, targetVersion int, logger zerolog.Logger) error {
	if targetVersion < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRollbackTarget, targetVersion)
	}

	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}
	if targetVersion > current {
		return fmt.Errorf("%w: %d is above current version %d", ErrInvalidRollbackTarget, targetVersion, current)
	}

	for version := current; version > targetVersion; version-- {
		mig, ok := schemaMigrations[version]
		if !ok {
			return fmt.Errorf("%w: version %d", ErrUnknownMigration, version)
		}
		if err := revertMigration(ctx, db, mig); err != nil {
			return fmt.Errorf("%w: rollback %q (version %d): %v", ErrMigrationFailed, mig.Name, mig.Version, err)
		}
		logger.Info().
			Int("version", mig.Version).
			Str("name", mig.Name).
			Msg("rolled back migration")
	}
	return nil
}

func revertMigration(ctx context.Context, db *sql.DB, mig *migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, mig.DownSQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = ?`, mig.Version); err != nil {
		return err
	}
	return tx.Commit()
}
