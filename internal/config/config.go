package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/aventh/cadenza/pkg/lavalink"
)

// Config is the full environment-driven configuration surface.
type Config struct {
	DiscordBotToken string `env:"DISCORD_BOT_TOKEN"`
	GuildID         string `env:"GUILD_ID"`

	AudioNodesJSON        string `env:"AUDIO_NODES_JSON"`
	NodeRetryBudget       int    `env:"NODE_RETRY_BUDGET" envDefault:"2"`
	NodeRetryBackoffMS    int    `env:"NODE_RETRY_BACKOFF_MS" envDefault:"500"`
	NodeRetryBackoffMaxMS int    `env:"NODE_RETRY_BACKOFF_MAX_MS" envDefault:"5000"`

	DefaultVolume      int  `env:"DEFAULT_VOLUME" envDefault:"30"`
	IdleTimeoutSeconds int  `env:"IDLE_TIMEOUT_SECONDS" envDefault:"300"`
	AnnounceNowPlaying bool `env:"ANNOUNCE_NOWPLAYING" envDefault:"false"`

	DBPath string `env:"DB_PATH" envDefault:"./data/cadenza.db"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogDir        string `env:"LOG_DIR" envDefault:"./logs"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"10"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`

	nodes []lavalink.NodeDescriptor
}

// Load reads the .env file if one exists, parses the process environment and
// validates the result.
func Load() (*Config, error) {
	// A missing .env file is fine, the process environment still applies.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and aggregates all failures into one error.
// On success the audio node list is resolved and available through Nodes.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.DiscordBotToken) == "" {
		errs = append(errs, ErrMissingBotToken)
	}

	nodes, err := resolveNodes(c.AudioNodesJSON)
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidNodeList, err))
	} else {
		c.nodes = nodes
	}

	if c.NodeRetryBudget < 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidRetryBudget, c.NodeRetryBudget))
	}
	if c.NodeRetryBackoffMS < 0 || c.NodeRetryBackoffMaxMS < 0 {
		errs = append(errs, ErrInvalidRetryBackoff)
	} else if c.NodeRetryBackoffMaxMS < c.NodeRetryBackoffMS {
		errs = append(errs, fmt.Errorf("%w: max %dms is below base %dms",
			ErrInvalidRetryBackoff, c.NodeRetryBackoffMaxMS, c.NodeRetryBackoffMS))
	}

	if c.DefaultVolume < 0 || c.DefaultVolume > 100 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidDefaultVolume, c.DefaultVolume))
	}
	if c.IdleTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidIdleTimeout, c.IdleTimeoutSeconds))
	}

	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, ErrInvalidDBPath)
	}

	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel))
	}
	if c.LogMaxSizeMB <= 0 || c.LogMaxBackups < 0 {
		errs = append(errs, ErrInvalidLogRotation)
	}

	return errors.Join(errs...)
}

// Nodes returns the configured audio nodes in priority order.
func (c *Config) Nodes() []lavalink.NodeDescriptor {
	return c.nodes
}

// IdleTimeout returns the idle session timeout. Zero disables idle teardown.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// NodeBackoff returns the base delay between node connect attempts.
func (c *Config) NodeBackoff() time.Duration {
	return time.Duration(c.NodeRetryBackoffMS) * time.Millisecond
}

// NodeBackoffMax returns the backoff ceiling between node connect attempts.
func (c *Config) NodeBackoffMax() time.Duration {
	return time.Duration(c.NodeRetryBackoffMaxMS) * time.Millisecond
}

// resolveNodes parses AUDIO_NODES_JSON. An empty value falls back to a
// single local node with Lavalink's stock credentials.
func resolveNodes(raw string) ([]lavalink.NodeDescriptor, error) {
	if strings.TrimSpace(raw) == "" {
		return []lavalink.NodeDescriptor{{
			Identifier: "main",
			Host:       "127.0.0.1",
			Port:       2333,
			Password:   "youshallnotpass",
		}}, nil
	}
	return lavalink.ParseDescriptors([]byte(raw))
}
