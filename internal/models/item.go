package models

import "time"

// Category groups items for browsing.
type Category struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"size:255;not null;uniqueIndex"`
}

// Item is a listing owned by a single user.
type Item struct {
	ID          uint    `gorm:"primaryKey;autoIncrement"`
	CategoryID  uint    `gorm:"not null;index"`
	Name        string  `gorm:"size:255;not null"`
	Description string  `gorm:"type:text"`
	Price       float64 `gorm:"not null"`
	ImageURL    string  `gorm:"size:512"`
	IsSold      bool    `gorm:"default:false;index"`
	OwnerID     uint    `gorm:"not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Category Category `gorm:"foreignKey:CategoryID"`
	Owner    User     `gorm:"foreignKey:OwnerID"`
}
