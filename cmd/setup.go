package cmd

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/kanta-app/cluster-faces/internal/config"
	"github.com/kanta-app/cluster-faces/internal/store/postgres"
)

// connect loads the configuration and opens the PostgreSQL pool, running
// pending migrations. The caller owns the pool and must close it.
func connect(log zerolog.Logger) (*config.Config, *postgres.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(&cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}
