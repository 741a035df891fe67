package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Store backends.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"score-duel"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`

	Store       Store
	Postgres    Postgres
	Redis       Redis
	Matchmaking Matchmaking
	Feed        Feed
	Bot         Bot
}

// Store selects the match store backend.
type Store struct {
	Backend string `env:"STORE_BACKEND" envDefault:"redis"`
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER" envDefault:""`
	Password string `env:"PG_PASSWORD" envDefault:""`
	Database string `env:"PG_DATABASE" envDefault:""`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int32  `env:"PG_MAX_CONNS" envDefault:"10"`
}

// DSN renders a libpq keyword/value connection string with every value quoted.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dsnQuote(p.Host), p.Port, dsnQuote(p.User), dsnQuote(p.Password), dsnQuote(p.Database), dsnQuote(p.SSLMode))
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func dsnQuote(v string) string {
	return "'" + dsnEscaper.Replace(v) + "'"
}

// Redis holds store and feed connection configuration.
type Redis struct {
	Addr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DB        int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize  int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"mm"`
}

// Matchmaking tunes the pairing engine and lobby expiry.
type Matchmaking struct {
	ClaimAttempts int           `env:"MATCHMAKING_CLAIM_ATTEMPTS" envDefault:"5"`
	ScanPage      int           `env:"MATCHMAKING_SCAN_PAGE" envDefault:"50"`
	LobbyTTL      time.Duration `env:"MATCHMAKING_LOBBY_TTL" envDefault:"0s"`
	SweepInterval time.Duration `env:"MATCHMAKING_SWEEP_INTERVAL" envDefault:"1m"`
}

// Feed configures the match event channel.
type Feed struct {
	Channel string `env:"FEED_CHANNEL" envDefault:"matchmaking:events"`
}

// Bot configures the chat command gateway.
type Bot struct {
	CommandPrefix string `env:"BOT_COMMAND_PREFIX" envDefault:"!"`
	HistoryLimit  int    `env:"BOT_HISTORY_LIMIT" envDefault:"5"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field rules; backend credentials are required only for the selected backend.
func (c *App) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case BackendPostgres:
		if c.Postgres.User == "" {
			errs = append(errs, errors.New("PG_USER is required for the postgres backend"))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, errors.New("PG_DATABASE is required for the postgres backend"))
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend))
	}

	if c.Matchmaking.ClaimAttempts < 1 {
		errs = append(errs, errors.New("MATCHMAKING_CLAIM_ATTEMPTS must be at least 1"))
	}
	if c.Matchmaking.ScanPage < 1 {
		errs = append(errs, errors.New("MATCHMAKING_SCAN_PAGE must be at least 1"))
	}
	if c.Matchmaking.LobbyTTL < 0 {
		errs = append(errs, errors.New("MATCHMAKING_LOBBY_TTL must not be negative"))
	}
	if c.Matchmaking.LobbyTTL > 0 && c.Matchmaking.SweepInterval <= 0 {
		errs = append(errs, errors.New("MATCHMAKING_SWEEP_INTERVAL must be positive when expiry is enabled"))
	}
	if c.Bot.CommandPrefix == "" {
		errs = append(errs, errors.New("BOT_COMMAND_PREFIX must not be empty"))
	}
	return errors.Join(errs...)
}
