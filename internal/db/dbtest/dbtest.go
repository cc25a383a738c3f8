// Package dbtest provides migrated in-memory databases and row fixtures for
// package tests.
package dbtest

import (
	"testing"

	"github.com/zulandar/puddle/internal/db"
	"github.com/zulandar/puddle/internal/models"
	"gorm.io/gorm"
)

// Open returns a migrated in-memory SQLite database closed at test cleanup.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	gormDB, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close(gormDB) })
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return gormDB
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t testing.TB, gormDB *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	if err := gormDB.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// CreateCategory inserts a category.
func CreateCategory(t testing.TB, gormDB *gorm.DB, name string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name}
	if err := gormDB.Create(c).Error; err != nil {
		t.Fatalf("create category %s: %v", name, err)
	}
	return c
}

// CreateItem inserts an unsold item owned by owner.
func CreateItem(t testing.TB, gormDB *gorm.DB, owner *models.User, category *models.Category, name string, price float64) *models.Item {
	t.Helper()
	it := &models.Item{
		CategoryID: category.ID,
		Name:       name,
		Price:      price,
		OwnerID:    owner.ID,
	}
	if err := gormDB.Create(it).Error; err != nil {
		t.Fatalf("create item %s: %v", name, err)
	}
	return it
}
