package db

import (
	"fmt"
	"strings"

	"github.com/zulandar/puddle/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model for migration, parents first.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.RevokedSession{},
		&models.Category{},
		&models.Item{},
		&models.Conversation{},
		&models.ConversationMember{},
		&models.ConversationMessage{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedCategories inserts any configured categories that don't exist yet.
// Existing rows are left untouched, so re-seeding is idempotent.
func SeedCategories(db *gorm.DB, names []string) error {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cat := models.Category{Name: name}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&cat)
		if result.Error != nil {
			return fmt.Errorf("db: seed category %q: %w", name, result.Error)
		}
	}
	return nil
}

// DropAll drops every model table, children first.
func DropAll(db *gorm.DB) error {
	all := AllModels()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(all[i]); err != nil {
			return fmt.Errorf("db: drop %T: %w", all[i], err)
		}
	}
	return nil
}
