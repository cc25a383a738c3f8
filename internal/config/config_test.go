package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
site: market
database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  name: market_db
  user: puddle
  password: hunter2
server:
  port: 9090
auth:
  secret: 0123456789abcdef0123456789abcdef
  session_ttl: 2h
  cookie_name: pd
maintenance:
  prune_schedule: "*/15 * * * *"
log:
  level: debug
  format: json
categories:
  - Electronics
  - Books
`

const minimalYAML = `
auth:
  secret: 0123456789abcdef
`

// clearEnv unsets the override variables for the duration of a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvAuthSecret, EnvDBPassword} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestParse_FullConfig(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Site != "market" {
		t.Errorf("Site = %q, want %q", cfg.Site, "market")
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.Database.Host != "10.0.0.5" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "10.0.0.5")
	}
	if cfg.Database.Port != 3307 {
		t.Errorf("Database.Port = %d, want 3307", cfg.Database.Port)
	}
	if cfg.Database.Name != "market_db" {
		t.Errorf("Database.Name = %q, want market_db", cfg.Database.Name)
	}
	if cfg.Database.User != "puddle" || cfg.Database.Password != "hunter2" {
		t.Errorf("Database credentials = %q/%q", cfg.Database.User, cfg.Database.Password)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Auth.SessionTTL != 2*time.Hour {
		t.Errorf("Auth.SessionTTL = %v, want 2h", cfg.Auth.SessionTTL)
	}
	if cfg.Auth.CookieName != "pd" {
		t.Errorf("Auth.CookieName = %q, want pd", cfg.Auth.CookieName)
	}
	if cfg.Maintenance.PruneSchedule != "*/15 * * * *" {
		t.Errorf("Maintenance.PruneSchedule = %q", cfg.Maintenance.PruneSchedule)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want debug/json", cfg.Log)
	}
	if len(cfg.Categories) != 2 || cfg.Categories[0] != "Electronics" {
		t.Errorf("Categories = %v", cfg.Categories)
	}
}

func TestParse_MinimalConfig_AppliesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Site != "puddle" {
		t.Errorf("Site = %q, want puddle (default)", cfg.Site)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite (default)", cfg.Database.Driver)
	}
	if cfg.Database.Path != "puddle.db" {
		t.Errorf("Database.Path = %q, want puddle.db (default)", cfg.Database.Path)
	}
	if cfg.Database.Host != "127.0.0.1" {
		t.Errorf("Database.Host = %q, want 127.0.0.1 (default)", cfg.Database.Host)
	}
	if cfg.Database.Port != 3306 {
		t.Errorf("Database.Port = %d, want 3306 (default)", cfg.Database.Port)
	}
	if cfg.Database.Name != "puddle_puddle" {
		t.Errorf("Database.Name = %q, want puddle_puddle (derived from site)", cfg.Database.Name)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080 (default)", cfg.Server.Port)
	}
	if cfg.Auth.SessionTTL != 24*time.Hour {
		t.Errorf("Auth.SessionTTL = %v, want 24h (default)", cfg.Auth.SessionTTL)
	}
	if cfg.Auth.CookieName != "puddle_session" {
		t.Errorf("Auth.CookieName = %q, want puddle_session (default)", cfg.Auth.CookieName)
	}
	if cfg.Maintenance.PruneSchedule != "0 * * * *" {
		t.Errorf("PruneSchedule = %q, want hourly default", cfg.Maintenance.PruneSchedule)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info (default)", cfg.Log.Level)
	}
}

func TestParse_MySQLHasNoSQLitePathDefault(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte(minimalYAML + "database:\n  driver: mysql\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Path != "" {
		t.Errorf("Database.Path = %q, want empty for mysql", cfg.Database.Path)
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAuthSecret, "from-the-environment-0123")
	t.Setenv(EnvDBPassword, "envpass")

	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Auth.Secret != "from-the-environment-0123" {
		t.Errorf("Auth.Secret = %q, want env value", cfg.Auth.Secret)
	}
	if cfg.Database.Password != "envpass" {
		t.Errorf("Database.Password = %q, want env value", cfg.Database.Password)
	}
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing secret",
			yaml: "site: x\n",
			want: "auth.secret is required",
		},
		{
			name: "short secret",
			yaml: "auth:\n  secret: short\n",
			want: "auth.secret must be at least 16 characters",
		},
		{
			name: "unknown driver",
			yaml: minimalYAML + "database:\n  driver: postgres\n",
			want: `database.driver "postgres" must be sqlite or mysql`,
		},
		{
			name: "bad schedule",
			yaml: minimalYAML + "maintenance:\n  prune_schedule: not a cron expr\n",
			want: "maintenance.prune_schedule",
		},
		{
			name: "bad log format",
			yaml: minimalYAML + "log:\n  format: xml\n",
			want: `log.format "xml" must be console or json`,
		},
		{
			name: "empty category",
			yaml: minimalYAML + "categories: [\"\"]\n",
			want: "categories[0] is empty",
		},
		{
			name: "duplicate category",
			yaml: minimalYAML + "categories: [Books, Books]\n",
			want: `categories[1] "Books" is duplicated`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_MultipleValidationErrors(t *testing.T) {
	clearEnv(t)
	_, err := Parse([]byte("database:\n  driver: oracle\nlog:\n  format: xml\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"auth.secret is required", "database.driver", "log.format"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q: %s", want, msg)
		}
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte(":::invalid"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "config: parse:") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse:")
	}
}

func TestLoad_ValidFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "puddle.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Auth.Secret != "0123456789abcdef" {
		t.Errorf("Auth.Secret = %q", cfg.Auth.Secret)
	}
}

func TestLoad_DotEnvSuppliesSecret(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "puddle.yaml")
	if err := os.WriteFile(path, []byte("site: market\n"), 0644); err != nil {
		t.Fatal(err)
	}
	env := EnvAuthSecret + "=dotenv-secret-value-0123\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Auth.Secret != "dotenv-secret-value-0123" {
		t.Errorf("Auth.Secret = %q, want value from .env", cfg.Auth.Secret)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/puddle.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}

// --- Fixture-based tests using testdata/ files ---

func TestLoad_FullFixture(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("testdata/valid_full.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "10.0.0.5" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "10.0.0.5")
	}
	if len(cfg.Categories) != 2 {
		t.Fatalf("len(Categories) = %d, want 2", len(cfg.Categories))
	}
}

func TestLoad_MinimalFixture(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("testdata/valid_minimal.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want default sqlite", cfg.Database.Driver)
	}
}

func TestLoad_MissingSecretFixture(t *testing.T) {
	clearEnv(t)
	_, err := Load("testdata/missing_secret.yaml")
	if err == nil {
		t.Fatal("expected error for missing secret")
	}
	if !strings.Contains(err.Error(), "auth.secret is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "auth.secret is required")
	}
}

func TestLoad_InvalidYAMLFixture(t *testing.T) {
	_, err := Load("testdata/invalid.yaml")
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "config: parse:") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse:")
	}
}
