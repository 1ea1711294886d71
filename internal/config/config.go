// Package config reads the settings of the server and the CLI from the
// environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/ledgersync/pkg/logging"
)

// Logging selects the log handler. An empty Format lets the binary choose.
type Logging struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT"`
}

// Options converts the settings for pkg/logging.
func (l Logging) Options() logging.Options {
	return logging.Options{
		Level:  logging.ParseLevel(l.Level),
		Format: logging.Format(l.Format),
	}
}

// Server configures cmd/server.
type Server struct {
	Logging

	Addr       string        `env:"LEDGERSYNC_ADDR"        envDefault:":8080"`
	DBPath     string        `env:"LEDGERSYNC_DB_PATH"     envDefault:"./data/ledgersync.db"`
	JWTSecret  string        `env:"LEDGERSYNC_JWT_SECRET,required,notEmpty"`
	TokenTTL   time.Duration `env:"LEDGERSYNC_TOKEN_TTL"   envDefault:"720h"`
	CORSOrigin string        `env:"LEDGERSYNC_CORS_ORIGIN" envDefault:"*"`
}

// Client configures cmd/ledger.
type Client struct {
	Logging

	DBPath          string        `env:"LEDGERSYNC_LOCAL_DB"         envDefault:"./data/ledger.db"`
	RemoteURL       string        `env:"LEDGERSYNC_REMOTE_URL"       envDefault:"http://localhost:8080"`
	Token           string        `env:"LEDGERSYNC_TOKEN"`
	SyncInterval    time.Duration `env:"LEDGERSYNC_SYNC_INTERVAL"    envDefault:"1m"`
	SyncAttempts    int           `env:"LEDGERSYNC_SYNC_ATTEMPTS"    envDefault:"3"`
	DuplicateWindow time.Duration `env:"LEDGERSYNC_DUPLICATE_WINDOW" envDefault:"4s"`
}

// LoadServer parses and checks the server settings.
func LoadServer() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	if cfg.TokenTTL <= 0 {
		return Server{}, fmt.Errorf("LEDGERSYNC_TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}
	if len(cfg.JWTSecret) < 16 {
		return Server{}, errors.New("LEDGERSYNC_JWT_SECRET must be at least 16 characters")
	}
	return cfg, nil
}

// LoadClient parses and checks the CLI settings.
func LoadClient() (Client, error) {
	var cfg Client
	if err := ParseEnv(&cfg); err != nil {
		return Client{}, err
	}
	if cfg.SyncAttempts <= 0 {
		return Client{}, fmt.Errorf("LEDGERSYNC_SYNC_ATTEMPTS must be positive, got %d", cfg.SyncAttempts)
	}
	if cfg.SyncInterval <= 0 {
		return Client{}, fmt.Errorf("LEDGERSYNC_SYNC_INTERVAL must be positive, got %s", cfg.SyncInterval)
	}
	if cfg.DuplicateWindow < 0 {
		return Client{}, fmt.Errorf("LEDGERSYNC_DUPLICATE_WINDOW must not be negative, got %s", cfg.DuplicateWindow)
	}
	return cfg, nil
}
