// Package config reads the service settings from VOTE_* environment
// variables, after loading an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	Addr string `env:"VOTE_ADDR" envDefault:":8080"`

	Store        string        `env:"VOTE_STORE"         envDefault:"mongo"`
	MongoURI     string        `env:"VOTE_MONGODB_URI"   envDefault:"mongodb://localhost:27017"`
	Database     string        `env:"VOTE_DATABASE"      envDefault:"livevote"`
	StoreTimeout time.Duration `env:"VOTE_STORE_TIMEOUT" envDefault:"5s"`

	ScanInterval time.Duration `env:"VOTE_SCAN_INTERVAL" envDefault:"30s"`
	WatchMatches bool          `env:"VOTE_WATCH_MATCHES" envDefault:"false"`

	RetryMaxTries        uint          `env:"VOTE_RETRY_MAX_TRIES"        envDefault:"5"`
	RetryInitialInterval time.Duration `env:"VOTE_RETRY_INITIAL_INTERVAL" envDefault:"20ms"`
	RetryMaxInterval     time.Duration `env:"VOTE_RETRY_MAX_INTERVAL"     envDefault:"500ms"`

	LeaderboardSize int    `env:"VOTE_LEADERBOARD_SIZE" envDefault:"3"`
	LogLevel        string `env:"VOTE_LOG_LEVEL"        envDefault:"info"`

	AdminGroups []string `env:"VOTE_ADMIN_GROUPS" envDefault:"eboard" envSeparator:","`
	Auth        Auth
}

// Auth holds the OIDC settings handed to csh-auth.
type Auth struct {
	ClientID     string `env:"VOTE_OIDC_ID"`
	ClientSecret string `env:"VOTE_OIDC_SECRET"`
	JWTSecret    string `env:"VOTE_JWT_SECRET"`
	State        string `env:"VOTE_STATE"`
	Host         string `env:"VOTE_HOST" envDefault:"http://localhost:8080"`
}

// Load reads files (default ".env") into the environment without overriding
// variables that are already set, then parses and validates Config.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Store != StoreMongo && c.Store != StoreMemory {
		errs = append(errs, fmt.Errorf("VOTE_STORE must be %q or %q, got %q", StoreMongo, StoreMemory, c.Store))
	}
	if c.ScanInterval <= 0 {
		errs = append(errs, errors.New("VOTE_SCAN_INTERVAL must be positive"))
	}
	if c.RetryMaxTries == 0 {
		errs = append(errs, errors.New("VOTE_RETRY_MAX_TRIES must be at least 1"))
	}
	if c.LeaderboardSize <= 0 {
		errs = append(errs, errors.New("VOTE_LEADERBOARD_SIZE must be positive"))
	}
	return errors.Join(errs...)
}
