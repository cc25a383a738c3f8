package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/zulandar/puddle/internal/config"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// gormConfig is shared by every connection. TranslateError maps driver
// unique violations onto gorm.ErrDuplicatedKey.
func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
}

// DSN builds a MySQL DSN for the configured database.
func DSN(cfg config.DatabaseConfig) string {
	return mysqlConfig(cfg, cfg.Name).FormatDSN()
}

func mysqlConfig(cfg config.DatabaseConfig, dbName string) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = dbName
	mc.ParseTime = true
	return mc
}

// Open connects to the database selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "mysql":
		return Connect(cfg)
	case "sqlite", "":
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("db: unknown driver %q", cfg.Driver)
	}
}

// Connect opens a GORM connection to a MySQL database.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(gormmysql.Open(DSN(cfg)), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}
	return db, nil
}

// ConnectAdmin opens a GORM connection to the MySQL server without selecting
// a specific database, used for CREATE DATABASE operations.
func ConnectAdmin(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(gormmysql.Open(mysqlConfig(cfg, "").FormatDSN()), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return db, nil
}

// OpenSQLite opens a SQLite database at path (":memory:" for an in-memory
// database). The pool is capped at one connection: SQLite serializes writers
// anyway, and an in-memory database lives only as long as its connection.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db: sqlite path is required")
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("db: enable foreign keys: %w", err)
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("db: close: %w", err)
	}
	return sqlDB.Close()
}

// DropDatabase drops the named database if it exists.
func DropDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: drop database %s: %w", name, err)
	}
	return nil
}

// CreateDatabase creates the named database if it doesn't already exist.
func CreateDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}

// IsDuplicateKey reports whether err is a unique or primary key violation.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
