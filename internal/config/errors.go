package config

import "errors"

// Configuration errors
var (
	ErrMissingBotToken      = errors.New("DISCORD_BOT_TOKEN is not set")
	ErrInvalidNodeList      = errors.New("invalid AUDIO_NODES_JSON")
	ErrInvalidRetryBudget   = errors.New("NODE_RETRY_BUDGET must not be negative")
	ErrInvalidRetryBackoff  = errors.New("node retry backoff must not be negative")
	ErrInvalidDefaultVolume = errors.New("DEFAULT_VOLUME must be between 0 and 100")
	ErrInvalidIdleTimeout   = errors.New("IDLE_TIMEOUT_SECONDS must not be negative")
	ErrInvalidDBPath        = errors.New("DB_PATH is not set")
	ErrInvalidLogLevel      = errors.New("invalid LOG_LEVEL")
	ErrInvalidLogRotation   = errors.New("invalid log rotation settings")
)
