// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Store backends selectable with MYKEYRING_STORE.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr             string
	Store                  string
	DBPath                 string
	DatabaseURL            string
	HashCredentials        bool
	LoginAttemptsPerMinute int
	LogLevel               slog.Level
}

// Load reads configuration from environment variables and returns a validated Config.
// Optional variables with defaults: MYKEYRING_LISTEN_ADDR (127.0.0.1:8484),
// MYKEYRING_STORE (sqlite), MYKEYRING_DB_PATH (mykeyring.db),
// MYKEYRING_HASH_CREDENTIALS (false), MYKEYRING_LOGIN_RATE (10 per minute),
// MYKEYRING_LOG_LEVEL (info). MYKEYRING_DATABASE_URL is required when the
// store is postgres.
func Load() (*Config, error) {
	listenAddr := "127.0.0.1:8484"
	if v, ok := os.LookupEnv("MYKEYRING_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	store := StoreSQLite
	if v, ok := os.LookupEnv("MYKEYRING_STORE"); ok && v != "" {
		store = strings.ToLower(strings.TrimSpace(v))
	}
	switch store {
	case StoreSQLite, StorePostgres, StoreMemory:
	default:
		return nil, fmt.Errorf("MYKEYRING_STORE has unknown backend %q (want sqlite, postgres or memory)", store)
	}

	dbPath := "mykeyring.db"
	if v, ok := os.LookupEnv("MYKEYRING_DB_PATH"); ok {
		dbPath = v
	}

	databaseURL := os.Getenv("MYKEYRING_DATABASE_URL")
	if store == StorePostgres && databaseURL == "" {
		return nil, fmt.Errorf("MYKEYRING_DATABASE_URL is required when MYKEYRING_STORE=postgres")
	}

	hash := false
	if v, ok := os.LookupEnv("MYKEYRING_HASH_CREDENTIALS"); ok && v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("MYKEYRING_HASH_CREDENTIALS has invalid boolean %q: %w", v, err)
		}
		hash = parsed
	}

	loginRate := 10
	if v, ok := os.LookupEnv("MYKEYRING_LOGIN_RATE"); ok && v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("MYKEYRING_LOGIN_RATE has invalid integer %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("MYKEYRING_LOGIN_RATE must be positive, got %d", parsed)
		}
		loginRate = parsed
	}

	level := slog.LevelInfo
	if v, ok := os.LookupEnv("MYKEYRING_LOG_LEVEL"); ok && v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("MYKEYRING_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	return &Config{
		ListenAddr:             listenAddr,
		Store:                  store,
		DBPath:                 dbPath,
		DatabaseURL:            databaseURL,
		HashCredentials:        hash,
		LoginAttemptsPerMinute: loginRate,
		LogLevel:               level,
	}, nil
}
