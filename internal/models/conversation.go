package models

import "time"

// Conversation is a thread about one item between its owner and one
// interested user. InitiatorID is the non-owner member; the unique index on
// (ItemID, InitiatorID) keeps a single thread per visitor per item.
type Conversation struct {
	ID          string `gorm:"primaryKey;size:36"`
	ItemID      uint   `gorm:"not null;uniqueIndex:idx_item_initiator"`
	InitiatorID uint   `gorm:"not null;uniqueIndex:idx_item_initiator"`
	CreatedAt   time.Time

	Item      Item                  `gorm:"foreignKey:ItemID"`
	Initiator User                  `gorm:"foreignKey:InitiatorID"`
	Members   []ConversationMember  `gorm:"foreignKey:ConversationID"`
	Messages  []ConversationMessage `gorm:"foreignKey:ConversationID"`
}

// ConversationMember is one row of a conversation's membership set.
type ConversationMember struct {
	ConversationID string `gorm:"primaryKey;size:36"`
	UserID         uint   `gorm:"primaryKey;index"`

	User User `gorm:"foreignKey:UserID"`
}

// ConversationMessage is an immutable message posted to a conversation.
type ConversationMessage struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	ConversationID string    `gorm:"size:36;not null;index"`
	AuthorID       uint      `gorm:"not null"`
	Content        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"index"`

	Author User `gorm:"foreignKey:AuthorID"`
}
