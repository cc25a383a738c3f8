package db

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/zulandar/puddle/internal/config"
	"github.com/zulandar/puddle/internal/models"
	"gorm.io/gorm"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		addr string
		user string
		db   string
	}{
		{
			name: "default local",
			cfg:  config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, Name: "puddle_puddle", User: "root"},
			addr: "127.0.0.1:3306",
			user: "root",
			db:   "puddle_puddle",
		},
		{
			name: "custom host and port",
			cfg:  config.DatabaseConfig{Host: "10.0.0.5", Port: 3307, Name: "market", User: "puddle", Password: "pw"},
			addr: "10.0.0.5:3307",
			user: "puddle",
			db:   "market",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := DSN(tt.cfg)
			parsed, err := mysql.ParseDSN(dsn)
			if err != nil {
				t.Fatalf("ParseDSN(%q): %v", dsn, err)
			}
			if parsed.Addr != tt.addr {
				t.Errorf("Addr = %q, want %q", parsed.Addr, tt.addr)
			}
			if parsed.User != tt.user {
				t.Errorf("User = %q, want %q", parsed.User, tt.user)
			}
			if parsed.DBName != tt.db {
				t.Errorf("DBName = %q, want %q", parsed.DBName, tt.db)
			}
			if parsed.Passwd != tt.cfg.Password {
				t.Errorf("Passwd = %q, want %q", parsed.Passwd, tt.cfg.Password)
			}
			if !parsed.ParseTime {
				t.Error("ParseTime should be enabled")
			}
		})
	}
}

func TestDSN_ParseTimeFlag(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "localhost", Port: 3306, Name: "test", User: "root"})
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("DSN missing parseTime=true: %s", dsn)
	}
	if !strings.Contains(dsn, "tcp(localhost:3306)") {
		t.Errorf("DSN should contain tcp(host:port): %s", dsn)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), `unknown driver "oracle"`) {
		t.Errorf("error = %q", err.Error())
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite("")
	if err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestConnect_Error(t *testing.T) {
	// Port 1 is unlikely to have a MySQL server; expect connection error.
	_, err := Connect(config.DatabaseConfig{Host: "127.0.0.1", Port: 1, Name: "nonexistent", User: "root"})
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: connect to")
	}
}

func TestConnectAdmin_Error(t *testing.T) {
	_, err := ConnectAdmin(config.DatabaseConfig{Host: "127.0.0.1", Port: 1, User: "root"})
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: admin connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: admin connect to")
	}
}

func TestAllModels_Count(t *testing.T) {
	models := AllModels()
	if len(models) != 7 {
		t.Errorf("AllModels() returned %d models, want 7", len(models))
	}
}

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { Close(gormDB) })
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return gormDB
}

func TestAutoMigrate_CreatesTables(t *testing.T) {
	gormDB := openMemory(t)
	for _, m := range AllModels() {
		if !gormDB.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}
	if !gormDB.Migrator().HasIndex(&models.Conversation{}, "idx_item_initiator") {
		t.Error("conversations should carry the idx_item_initiator unique index")
	}
}

func TestAutoMigrate_Idempotent(t *testing.T) {
	gormDB := openMemory(t)
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("second AutoMigrate: %v", err)
	}
}

func TestDropAll(t *testing.T) {
	gormDB := openMemory(t)
	if err := DropAll(gormDB); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	for _, m := range AllModels() {
		if gormDB.Migrator().HasTable(m) {
			t.Errorf("table for %T still present", m)
		}
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate after DropAll: %v", err)
	}
}

func TestSeedCategories(t *testing.T) {
	gormDB := openMemory(t)

	if err := SeedCategories(gormDB, []string{"Electronics", "Books", " ", "Books"}); err != nil {
		t.Fatalf("SeedCategories: %v", err)
	}
	// Re-seeding must not duplicate or fail.
	if err := SeedCategories(gormDB, []string{"Electronics", "Garden"}); err != nil {
		t.Fatalf("SeedCategories again: %v", err)
	}

	var names []string
	gormDB.Model(&models.Category{}).Order("name").Pluck("name", &names)
	want := []string{"Books", "Electronics", "Garden"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Errorf("categories = %v, want %v", names, want)
	}
}

func TestSeedCategories_EmptySlice(t *testing.T) {
	// No input means no DB call.
	if err := SeedCategories(nil, nil); err != nil {
		t.Errorf("SeedCategories(nil, nil) = %v, want nil", err)
	}
}

func TestIsDuplicateKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, true},
		{"wrapped gorm duplicated key", fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), true},
		{"mysql 1062", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{"mysql other", &mysql.MySQLError{Number: 1213, Message: "Deadlock"}, false},
		{"sqlite text", errors.New("UNIQUE constraint failed: conversations.item_id"), true},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicateKey(tt.err); got != tt.want {
				t.Errorf("IsDuplicateKey(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsDuplicateKey_SQLiteUniqueIndex(t *testing.T) {
	gormDB := openMemory(t)
	if err := gormDB.Create(&models.Category{Name: "Books"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	err := gormDB.Create(&models.Category{Name: "Books"}).Error
	if !IsDuplicateKey(err) {
		t.Errorf("IsDuplicateKey(%v) = false, want true", err)
	}
}

func TestOpenSQLite_ForeignKeysEnforced(t *testing.T) {
	gormDB := openMemory(t)
	err := gormDB.Create(&models.Item{Name: "orphan", CategoryID: 99, OwnerID: 99}).Error
	if err == nil {
		t.Fatal("expected foreign key violation for item with missing owner/category")
	}
}
