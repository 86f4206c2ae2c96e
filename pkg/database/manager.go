package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Config holds the SQLite connection settings.
type Config struct {
	DatabasePath      string
	MaxConnections    int
	ConnectionTimeout time.Duration
	ConnMaxLifetime   time.Duration
	BusyTimeout       time.Duration
	WALMode           bool
	SynchronousMode   string
	CacheSize         int
}

// DefaultConfig returns a config suitable for a single-process bot.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:      "./data/cadenza.db",
		MaxConnections:    10,
		ConnectionTimeout: 30 * time.Second,
		ConnMaxLifetime:   time.Hour,
		BusyTimeout:       5 * time.Second,
		WALMode:           true,
		SynchronousMode:   "NORMAL",
		CacheSize:         -64000,
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return ErrInvalidDatabasePath
	}
	if c.MaxConnections <= 0 {
		return ErrInvalidMaxConnections
	}
	if c.ConnectionTimeout <= 0 {
		return ErrInvalidConnectionTimeout
	}
	if c.BusyTimeout <= 0 {
		return ErrInvalidBusyTimeout
	}
	switch strings.ToUpper(c.SynchronousMode) {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSynchronousMode, c.SynchronousMode)
	}
	return nil
}

// Manager owns the SQLite handle shared by the repositories.
type Manager struct {
	config *Config
	logger zerolog.Logger

	mutex     sync.RWMutex
	db        *sql.DB
	settings  *SettingsRepository
	connected bool
}

// NewManager creates a database manager. A nil config uses defaults.
func NewManager(config *Config, logger zerolog.Logger) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	return &Manager{
		config: config,
		logger: logger.With().Str("component", "database").Logger(),
	}, nil
}

// Connect opens the database, applies pragmas, runs pending migrations and
// wires the repositories. Connecting an already connected manager is a no-op.
func (m *Manager) Connect() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.connected {
		return nil
	}
	return m.connectLocked()
}

func (m *Manager) connectLocked() error {
	if dir := filepath.Dir(m.config.DatabasePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", m.buildDSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(m.config.MaxConnections)
	idle := m.config.MaxConnections / 2
	if idle < 1 {
		idle = 1
	}
	db.SetMaxIdleConns(idle)
	db.SetConnMaxLifetime(m.config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectionTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, db, m.logger); err != nil {
		db.Close()
		return err
	}

	settings, err := NewSettingsRepository(db, m.logger)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize settings repository: %w", err)
	}

	m.db = db
	m.settings = settings
	m.connected = true
	m.logger.Info().
		Str("path", m.config.DatabasePath).
		Int("max_connections", m.config.MaxConnections).
		Msg("database connected")
	return nil
}

func (m *Manager) buildDSN() string {
	journalMode := "DELETE"
	if m.config.WALMode {
		journalMode = "WAL"
	}
	return fmt.Sprintf(
		"file:%s?_journal_mode=%s&_synchronous=%s&_cache_size=%d&_busy_timeout=%d&_foreign_keys=on",
		m.config.DatabasePath,
		journalMode,
		strings.ToUpper(m.config.SynchronousMode),
		m.config.CacheSize,
		m.config.BusyTimeout.Milliseconds(),
	)
}

// DB returns the underlying handle for ad-hoc queries.
func (m *Manager) DB() (*sql.DB, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if !m.connected {
		return nil, ErrDatabaseNotConnected
	}
	return m.db, nil
}

// Settings returns the guild settings repository.
func (m *Manager) Settings() (*SettingsRepository, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if !m.connected {
		return nil, ErrDatabaseNotConnected
	}
	return m.settings, nil
}

// Ping verifies the connection is alive.
func (m *Manager) Ping(ctx context.Context) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if !m.connected {
		return ErrDatabaseNotConnected
	}
	return m.db.PingContext(ctx)
}

// GetSchemaVersion returns the highest applied migration version.
func (m *Manager) GetSchemaVersion() (int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if !m.connected {
		return 0, ErrDatabaseNotConnected
	}
	return currentVersion(context.Background(), m.db)
}

// Migrate applies any migrations not yet recorded in schema_migrations.
func (m *Manager) Migrate() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.connected {
		return ErrDatabaseNotConnected
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectionTimeout)
	defer cancel()
	return runMigrations(ctx, m.db, m.logger)
}

// Rollback walks the schema back down to targetVersion.
func (m *Manager) Rollback(targetVersion int) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.connected {
		return ErrDatabaseNotConnected
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectionTimeout)
	defer cancel()
	return rollbackMigrations(ctx, m.db, targetVersion, m.logger)
}

// Optimize runs the SQLite housekeeping pragmas. Safe to call while the
// database is in use.
func (m *Manager) Optimize(ctx context.Context) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if !m.connected {
		return ErrDatabaseNotConnected
	}
	if _, err := m.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("pragma optimize: %w", err)
	}
	if m.config.WALMode {
		if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			return fmt.Errorf("wal checkpoint: %w", err)
		}
	}
	return nil
}

// Close shuts the connection pool down. Closing a disconnected manager is a
// no-op.
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.connected {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	m.settings = nil
	m.connected = false
	m.logger.Info().Msg("database closed")
	return err
}
