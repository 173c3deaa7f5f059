package factory

import (
	"fmt"
	"strings"

	"github.com/hostling/hostling/internal/store"
	"github.com/hostling/hostling/internal/store/postgres"
	"github.com/hostling/hostling/internal/store/sqlite"
)

// Config selects and configures the lifecycle record store.
type Config struct {
	Type string `toml:"type" mapstructure:"type"` // "sqlite" (default) or "postgres"
	Path string `toml:"path" mapstructure:"path"` // sqlite file path
	DSN  string `toml:"dsn" mapstructure:"dsn"`   // postgres DSN
}

// New builds a store from config. An empty type defaults to sqlite.
func New(cfg Config) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "hostling.db"
		}
		return sqlite.New(path)
	case "postgres", "postgresql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres store requires dsn")
		}
		return postgres.New(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store type: %s (supported: sqlite, postgres)", cfg.Type)
	}
}
