// Package conversation stores item-scoped message threads between a
// listing's owner and an interested user.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zulandar/puddle/internal/apperr"
	"github.com/zulandar/puddle/internal/db"
	"github.com/zulandar/puddle/internal/logging"
	"github.com/zulandar/puddle/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MsgRequired is the field message for blank message content.
const MsgRequired = "This field is required."

// createAttempts bounds how often a create that lost a race on the
// (item_id, initiator_id) index is retried as a find.
const createAttempts = 2

// Store handles conversation membership and message persistence.
type Store struct {
	db  *gorm.DB
	now func() time.Time
	log zerolog.Logger
}

// StoreOpts holds parameters for creating a Store.
type StoreOpts struct {
	DB     *gorm.DB
	Now    func() time.Time // defaults to time.Now
	Logger *zerolog.Logger
}

// NewStore creates a Store.
func NewStore(opts StoreOpts) (*Store, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("conversation: store: db is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		db:  opts.DB,
		now: now,
		log: logging.OrNop(opts.Logger).With().Str("component", "conversations").Logger(),
	}, nil
}

// InboxEntry is one row of a user's inbox.
type InboxEntry struct {
	Conversation models.Conversation
	ItemName     string
	Counterpart  models.User                 // the other member
	LastMessage  *models.ConversationMessage // nil when the thread is empty
	LastActivity time.Time
}

// Thread is a conversation with its messages, oldest first.
type Thread struct {
	Conversation models.Conversation
	Messages     []models.ConversationMessage
}

// ItemName returns the display name of the conversation's item.
func (t *Thread) ItemName() string {
	return t.Conversation.Item.Name
}

// FindOrCreateForItem returns the conversation about itemID that includes
// userID, creating it with members {owner, user} when none exists. Repeated
// calls return the same conversation.
func (s *Store) FindOrCreateForItem(ctx context.Context, itemID, userID uint) (*models.Conversation, error) {
	it, err := s.checkParticipants(ctx, itemID, userID)
	if err != nil {
		return nil, err
	}

	var conv *models.Conversation
	for attempt := 1; ; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			c, _, err := s.findOrCreate(tx, it, userID)
			conv = c
			return err
		})
		if err == nil || !db.IsDuplicateKey(err) || attempt >= createAttempts {
			break
		}
		s.log.Debug().Uint("item", itemID).Uint("user", userID).Msg("lost create race, retrying find")
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: find or create for item %d: %w", itemID, err)
	}
	return conv, nil
}

// StartConversation finds or creates the conversation about itemID for
// userID and appends content as a message, all in one transaction. Content
// is validated before anything is written.
func (s *Store) StartConversation(ctx context.Context, itemID, userID uint, content string) (*models.Conversation, *models.ConversationMessage, error) {
	content, err := cleanContent(content)
	if err != nil {
		return nil, nil, err
	}
	it, err := s.checkParticipants(ctx, itemID, userID)
	if err != nil {
		return nil, nil, err
	}

	var (
		conv    *models.Conversation
		msg     *models.ConversationMessage
		created bool
	)
	for attempt := 1; ; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			c, isNew, err := s.findOrCreate(tx, it, userID)
			if err != nil {
				return err
			}
			m, err := s.appendMessage(tx, c.ID, userID, content)
			if err != nil {
				return err
			}
			conv, msg, created = c, m, isNew
			return nil
		})
		if err == nil || !db.IsDuplicateKey(err) || attempt >= createAttempts {
			break
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("conversation: start for item %d: %w", itemID, err)
	}
	if created {
		s.log.Info().Str("conversation", conv.ID).Uint("item", itemID).Uint("user", userID).Msg("conversation started")
	}
	return conv, msg, nil
}

// PostMessage appends content to a conversation on behalf of authorID, who
// must be a member.
func (s *Store) PostMessage(ctx context.Context, conversationID string, authorID uint, content string) (*models.ConversationMessage, error) {
	var msg *models.ConversationMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getConversation(tx, conversationID); err != nil {
			return err
		}
		if err := requireMember(tx, conversationID, authorID); err != nil {
			return err
		}
		cleaned, err := cleanContent(content)
		if err != nil {
			return err
		}
		msg, err = s.appendMessage(tx, conversationID, authorID, cleaned)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: post to %s: %w", conversationID, err)
	}
	s.log.Debug().Str("conversation", conversationID).Uint("author", authorID).Msg("message posted")
	return msg, nil
}

// ListInbox returns every conversation userID belongs to, most recently
// active first. A conversation without messages is dated by its creation.
func (s *Store) ListInbox(ctx context.Context, userID uint) ([]InboxEntry, error) {
	tx := s.db.WithContext(ctx)

	var convs []models.Conversation
	err := tx.Select("conversations.*").
		Joins("JOIN conversation_members ON conversation_members.conversation_id = conversations.id").
		Where("conversation_members.user_id = ?", userID).
		Preload("Item").
		Preload("Members.User").
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("conversation: inbox for user %d: %w", userID, err)
	}
	if len(convs) == 0 {
		return []InboxEntry{}, nil
	}

	ids := make([]string, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
	}
	// Latest by timestamp; messages sharing it are narrowed to the highest id.
	var latest []models.ConversationMessage
	err = tx.Where("conversation_id IN ?", ids).
		Where("created_at = (SELECT MAX(m2.created_at) FROM conversation_messages m2" +
			" WHERE m2.conversation_id = conversation_messages.conversation_id)").
		Find(&latest).Error
	if err != nil {
		return nil, fmt.Errorf("conversation: inbox last messages for user %d: %w", userID, err)
	}
	byConv := make(map[string]models.ConversationMessage, len(latest))
	for _, m := range latest {
		if prev, ok := byConv[m.ConversationID]; !ok || m.ID > prev.ID {
			byConv[m.ConversationID] = m
		}
	}

	entries := make([]InboxEntry, 0, len(convs))
	for _, c := range convs {
		e := InboxEntry{
			Conversation: c,
			ItemName:     c.Item.Name,
			LastActivity: c.CreatedAt,
		}
		for _, m := range c.Members {
			if m.UserID != userID {
				e.Counterpart = m.User
			}
		}
		if m, ok := byConv[c.ID]; ok {
			e.LastMessage = &m
			e.LastActivity = m.CreatedAt
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.LastActivity.Equal(b.LastActivity) {
			return a.LastActivity.After(b.LastActivity)
		}
		if !a.Conversation.CreatedAt.Equal(b.Conversation.CreatedAt) {
			return a.Conversation.CreatedAt.After(b.Conversation.CreatedAt)
		}
		return lastID(a) > lastID(b)
	})
	return entries, nil
}

func lastID(e InboxEntry) uint {
	if e.LastMessage == nil {
		return 0
	}
	return e.LastMessage.ID
}

// GetThread returns a conversation and its messages for a member.
func (s *Store) GetThread(ctx context.Context, conversationID string, requestingUserID uint) (*Thread, error) {
	tx := s.db.WithContext(ctx)
	conv, err := getConversation(tx.Preload("Item").Preload("Members.User"), conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation: thread: %w", err)
	}
	if err := requireMember(tx, conversationID, requestingUserID); err != nil {
		return nil, fmt.Errorf("conversation: thread: %w", err)
	}

	var msgs []models.ConversationMessage
	err = tx.Preload("Author").
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("conversation: thread %s messages: %w", conversationID, err)
	}
	return &Thread{Conversation: *conv, Messages: msgs}, nil
}

// IsMember reports whether userID belongs to the conversation.
func (s *Store) IsMember(ctx context.Context, conversationID string, userID uint) (bool, error) {
	ok, err := isMember(s.db.WithContext(ctx), conversationID, userID)
	if err != nil {
		return false, fmt.Errorf("conversation: membership %s: %w", conversationID, err)
	}
	return ok, nil
}

// checkParticipants loads the item and rejects unknown users and owners
// messaging themselves, before anything is written.
func (s *Store) checkParticipants(ctx context.Context, itemID, userID uint) (*models.Item, error) {
	tx := s.db.WithContext(ctx)
	var it models.Item
	if err := tx.First(&it, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation: item %d: %w", itemID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("conversation: load item %d: %w", itemID, err)
	}
	if it.OwnerID == userID {
		return nil, fmt.Errorf("conversation: user %d owns item %d: %w", userID, itemID, apperr.ErrInvalidOperation)
	}
	var n int64
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("conversation: load user %d: %w", userID, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("conversation: user %d: %w", userID, apperr.ErrNotFound)
	}
	return &it, nil
}

// findOrCreate runs inside tx. The bool reports whether a new conversation
// was inserted.
func (s *Store) findOrCreate(tx *gorm.DB, it *models.Item, userID uint) (*models.Conversation, bool, error) {
	var conv models.Conversation
	err := tx.Select("conversations.*").
		Joins("JOIN conversation_members ON conversation_members.conversation_id = conversations.id").
		Where("conversations.item_id = ? AND conversation_members.user_id = ?", it.ID, userID).
		Take(&conv).Error
	if err == nil {
		return &conv, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	conv = models.Conversation{
		ID:          uuid.NewString(),
		ItemID:      it.ID,
		InitiatorID: userID,
		CreatedAt:   s.now().UTC(),
	}
	if err := tx.Omit(clause.Associations).Create(&conv).Error; err != nil {
		return nil, false, err
	}
	members := []models.ConversationMember{
		{ConversationID: conv.ID, UserID: it.OwnerID},
		{ConversationID: conv.ID, UserID: userID},
	}
	if err := tx.Omit(clause.Associations).Create(&members).Error; err != nil {
		return nil, false, err
	}
	return &conv, true, nil
}

func (s *Store) appendMessage(tx *gorm.DB, conversationID string, authorID uint, content string) (*models.ConversationMessage, error) {
	msg := models.ConversationMessage{
		ConversationID: conversationID,
		AuthorID:       authorID,
		Content:        content,
		CreatedAt:      s.now().UTC(),
	}
	if err := tx.Omit(clause.Associations).Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func getConversation(tx *gorm.DB, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := tx.Where("id = ?", id).Take(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", id, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &conv, nil
}

func isMember(tx *gorm.DB, conversationID string, userID uint) (bool, error) {
	var n int64
	err := tx.Model(&models.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&n).Error
	return n > 0, err
}

func requireMember(tx *gorm.DB, conversationID string, userID uint) error {
	ok, err := isMember(tx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %d is not a member of %s: %w", userID, conversationID, apperr.ErrForbidden)
	}
	return nil
}

func cleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.Field("content", MsgRequired)
	}
	return content, nil
}
