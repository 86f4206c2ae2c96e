package database

import "errors"

// Database configuration errors
var (
	ErrInvalidDatabasePath      = errors.New("invalid database path")
	ErrInvalidMaxConnections    = errors.New("invalid max connections")
	ErrInvalidConnectionTimeout = errors.New("invalid connection timeout")
	ErrInvalidBusyTimeout       = errors.New("invalid busy timeout")
	ErrInvalidSynchronousMode   = errors.New("invalid synchronous mode")
)

// Database operation errors
var (
	ErrDatabaseNotConnected = errors.New("database not connected")
	ErrMigrationFailed      = errors.New("migration failed")
)

// Migration errors
var (
	ErrUnknownMigration          = errors.New("unknown migration version")
	ErrMigrationChecksumMismatch = errors.New("migration checksum mismatch")
	ErrInvalidRollbackTarget     = errors.New("invalid rollback target")
)
