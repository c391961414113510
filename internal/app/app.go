// Package app builds a ready-to-use engine from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reportline/internal/config"
	"reportline/internal/db"
	"reportline/internal/engine"
	"reportline/internal/migrate"
)

// ResolveConfig prefers an explicit file, then reportline.yml in workspace,
// then the built-in defaults. It also reports where the config came from.
func ResolveConfig(path, workspace string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.FromFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("load config %s: %w", path, err)
		}
		return cfg, path, nil
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, "", err
	}
	if cfg != nil {
		return cfg, config.Path(workspace), nil
	}
	return config.Default(), "defaults", nil
}

// NewLogger returns a development logger when debug is set, else a
// production one.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// Bootstrap opens the database, applies migrations and seeds the sample
// requests. The returned func closes the database.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger, now func() time.Time) (engine.Engine, func() error, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := db.Open(db.Config{Path: cfg.Database.Path})
	if err != nil {
		return engine.Engine{}, nil, fmt.Errorf("open db: %w", err)
	}
	version, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	e := engine.New(conn, cfg, logger, now)
	n, err := e.Seed(ctx)
	if err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("seed: %w", err)
	}
	logger.Debug("bootstrap complete",
		zap.Int("schema_version", version),
		zap.Int("seeded", n),
		zap.Bool("in_memory", cfg.Database.Path == ""),
	)
	return e, conn.Close, nil
}
