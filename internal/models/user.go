package models

import "time"

// User is a marketplace account. Username doubles as the display name.
type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"size:150;not null;uniqueIndex"`
	Email        string `gorm:"size:254"`
	PasswordHash string `gorm:"size:72;not null"`
	CreatedAt    time.Time
}

// RevokedSession records a logged-out session token until it would have
// expired anyway.
type RevokedSession struct {
	TokenID   string    `gorm:"primaryKey;size:36"`
	UserID    uint      `gorm:"index"`
	ExpiresAt time.Time `gorm:"index"`
}
