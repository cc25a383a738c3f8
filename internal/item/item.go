// Package item provides listing lifecycle operations: create, edit, delete,
// browse and the owner's dashboard view.
package item

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/zulandar/puddle/internal/apperr"
	"github.com/zulandar/puddle/internal/models"
	"gorm.io/gorm"
)

// Field error texts shown next to form inputs.
const (
	MsgRequired      = "This field is required."
	MsgNegativePrice = "Ensure this value is greater than or equal to 0."
	MsgBadCategory   = "Select a valid choice."
)

const maxNameLen = 255

// CreateOpts holds parameters for creating a new item.
type CreateOpts struct {
	OwnerID     uint
	CategoryID  uint
	Name        string
	Description string
	Price       float64
	ImageURL    string
}

// UpdateOpts holds the editable fields of an item. All fields are applied.
type UpdateOpts struct {
	Name        string
	Description string
	Price       float64
	ImageURL    string
	IsSold      bool
}

// BrowseFilters narrows the public listing.
type BrowseFilters struct {
	Query      string
	CategoryID uint
	Limit      int
}

func validateFields(name string, price float64) *apperr.ValidationError {
	ve := apperr.NewValidationError()
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		ve.Add("name", MsgRequired)
	case len(name) > maxNameLen:
		ve.Add("name", fmt.Sprintf("Ensure this value has at most %d characters.", maxNameLen))
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		ve.Add("price", "Enter a number.")
	} else if price < 0 {
		ve.Add("price", MsgNegativePrice)
	}
	return ve
}

// Create validates opts and inserts a new unsold item.
func Create(ctx context.Context, db *gorm.DB, opts CreateOpts) (*models.Item, error) {
	ve := validateFields(opts.Name, opts.Price)
	if opts.CategoryID == 0 {
		ve.Add("category", MsgRequired)
	} else {
		var count int64
		if err := db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", opts.CategoryID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("item: check category %d: %w", opts.CategoryID, err)
		}
		if count == 0 {
			ve.Add("category", MsgBadCategory)
		}
	}
	if err := ve.OrNil(); err != nil {
		return nil, fmt.Errorf("item: create: %w", err)
	}

	var owners int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", opts.OwnerID).Count(&owners).Error; err != nil {
		return nil, fmt.Errorf("item: check owner %d: %w", opts.OwnerID, err)
	}
	if owners == 0 {
		return nil, fmt.Errorf("item: owner %d: %w", opts.OwnerID, apperr.ErrNotFound)
	}

	it := models.Item{
		OwnerID:     opts.OwnerID,
		CategoryID:  opts.CategoryID,
		Name:        strings.TrimSpace(opts.Name),
		Description: strings.TrimSpace(opts.Description),
		Price:       opts.Price,
		ImageURL:    strings.TrimSpace(opts.ImageURL),
	}
	if err := db.WithContext(ctx).Create(&it).Error; err != nil {
		return nil, fmt.Errorf("item: create: %w", err)
	}
	return &it, nil
}

// Get retrieves an item by ID with its category and owner.
func Get(ctx context.Context, db *gorm.DB, id uint) (*models.Item, error) {
	var it models.Item
	if err := db.WithContext(ctx).Preload("Category").Preload("Owner").First(&it, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("item: %d: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("item: get %d: %w", id, err)
	}
	return &it, nil
}

// GetOwned loads an item and returns ErrForbidden unless ownerID owns it.
func GetOwned(ctx context.Context, db *gorm.DB, id, ownerID uint) (*models.Item, error) {
	it, err := Get(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if it.OwnerID != ownerID {
		return nil, fmt.Errorf("item: %d is not owned by user %d: %w", id, ownerID, apperr.ErrForbidden)
	}
	return it, nil
}

// Update replaces the editable fields of an item owned by ownerID.
func Update(ctx context.Context, db *gorm.DB, id, ownerID uint, opts UpdateOpts) (*models.Item, error) {
	if _, err := GetOwned(ctx, db, id, ownerID); err != nil {
		return nil, err
	}
	if err := validateFields(opts.Name, opts.Price).OrNil(); err != nil {
		return nil, fmt.Errorf("item: update %d: %w", id, err)
	}

	updates := map[string]interface{}{
		"name":        strings.TrimSpace(opts.Name),
		"description": strings.TrimSpace(opts.Description),
		"price":       opts.Price,
		"image_url":   strings.TrimSpace(opts.ImageURL),
		"is_sold":     opts.IsSold,
	}
	if err := db.WithContext(ctx).Model(&models.Item{ID: id}).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("item: update %d: %w", id, err)
	}
	return Get(ctx, db, id)
}

// Delete removes an item owned by ownerID together with every conversation
// about it, in one transaction.
func Delete(ctx context.Context, db *gorm.DB, id, ownerID uint) error {
	if _, err := GetOwned(ctx, db, id, ownerID); err != nil {
		return err
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		convIDs := func() *gorm.DB {
			return tx.Model(&models.Conversation{}).Select("id").Where("item_id = ?", id)
		}
		if err := tx.Where("conversation_id IN (?)", convIDs()).Delete(&models.ConversationMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id IN (?)", convIDs()).Delete(&models.ConversationMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("item_id = ?", id).Delete(&models.Conversation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Item{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("item: delete %d: %w", id, err)
	}
	return nil
}

// likeEscaper makes LIKE wildcards in user queries match literally. '!' is
// the escape character since MySQL treats a backslash literal specially.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Browse returns unsold items, newest first, optionally filtered by a
// case-insensitive text query over name and description and by category.
func Browse(ctx context.Context, db *gorm.DB, filters BrowseFilters) ([]models.Item, error) {
	q := db.WithContext(ctx).Preload("Category").Where("is_sold = ?", false)
	if query := strings.TrimSpace(filters.Query); query != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
		q = q.Where("(LOWER(name) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')", like, like)
	}
	if filters.CategoryID != 0 {
		q = q.Where("category_id = ?", filters.CategoryID)
	}
	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}

	var items []models.Item
	if err := q.Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("item: browse: %w", err)
	}
	return items, nil
}

// ListByOwner returns every item owned by ownerID, sold or not.
func ListByOwner(ctx context.Context, db *gorm.DB, ownerID uint) ([]models.Item, error) {
	var items []models.Item
	if err := db.WithContext(ctx).Preload("Category").Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("item: list for owner %d: %w", ownerID, err)
	}
	return items, nil
}

// Related returns up to limit unsold items in the same category as it.
func Related(ctx context.Context, db *gorm.DB, it *models.Item, limit int) ([]models.Item, error) {
	var items []models.Item
	if err := db.WithContext(ctx).
		Where("category_id = ? AND is_sold = ? AND id <> ?", it.CategoryID, false, it.ID).
		Order("created_at DESC, id DESC").Limit(limit).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("item: related to %d: %w", it.ID, err)
	}
	return items, nil
}

// ListCategories returns every category ordered by name.
func ListCategories(ctx context.Context, db *gorm.DB) ([]models.Category, error) {
	var cats []models.Category
	if err := db.WithContext(ctx).Order("name ASC").Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("item: list categories: %w", err)
	}
	return cats, nil
}
