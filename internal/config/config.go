// Package config provides YAML-based configuration loading for puddle.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the config file.
const (
	EnvAuthSecret = "PUDDLE_AUTH_SECRET"
	EnvDBPassword = "PUDDLE_DB_PASSWORD"
)

// Config is the top-level puddle configuration, loaded from puddle.yaml.
type Config struct {
	Site        string            `yaml:"site"`
	Database    DatabaseConfig    `yaml:"database"`
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Log         LogConfig         `yaml:"log"`
	Categories  []string          `yaml:"categories"`
}

// DatabaseConfig selects and addresses the backing store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`   // sqlite only
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// AuthConfig holds session signing settings.
type AuthConfig struct {
	Secret     string        `yaml:"secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	CookieName string        `yaml:"cookie_name"`
}

// MaintenanceConfig schedules background housekeeping.
type MaintenanceConfig struct {
	PruneSchedule string `yaml:"prune_schedule"`
}

// LogConfig controls logger level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console, json, or empty for auto
}

// scheduleParser accepts standard 5-field cron expressions.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Load reads a YAML config file from path and returns a validated Config.
// A .env file in the same directory, if present, is loaded first so that
// its variables can override secrets.
func Load(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envPath, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAuthSecret); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv(EnvDBPassword); v != "" {
		c.Database.Password = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Site == "" {
		c.Site = "puddle"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "puddle.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "puddle_" + c.Site
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 24 * time.Hour
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "puddle_session"
	}
	if c.Maintenance.PruneSchedule == "" {
		c.Maintenance.PruneSchedule = "0 * * * *"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Auth.Secret == "" {
		errs = append(errs, "auth.secret is required (or set "+EnvAuthSecret+")")
	} else if len(c.Auth.Secret) < 16 {
		errs = append(errs, "auth.secret must be at least 16 characters")
	}
	if c.Auth.SessionTTL < 0 {
		errs = append(errs, "auth.session_ttl must be positive")
	}
	if _, err := scheduleParser.Parse(c.Maintenance.PruneSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("maintenance.prune_schedule: %v", err))
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q must be console or json", c.Log.Format))
	}
	seen := make(map[string]bool, len(c.Categories))
	for i, name := range c.Categories {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Sprintf("categories[%d] is empty", i))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Sprintf("categories[%d] %q is duplicated", i, name))
		}
		seen[name] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
