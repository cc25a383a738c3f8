package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/zulandar/puddle/internal/config"
	"github.com/zulandar/puddle/internal/db"
	"github.com/zulandar/puddle/internal/identity"
	"github.com/zulandar/puddle/internal/logging"
	"github.com/zulandar/puddle/internal/models"
	"gorm.io/gorm"
)

// connectFromConfig loads the config file and opens the configured database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// newLogger builds the process logger, writing to stderr.
func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	return logging.New(cfg.Log, os.Stderr)
}

// lookupUser resolves a --as or --owner username flag.
func lookupUser(ctx context.Context, gormDB *gorm.DB, username string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("a username is required")
	}
	u, err := identity.GetByUsername(ctx, gormDB, username)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", username, err)
	}
	return u, nil
}
