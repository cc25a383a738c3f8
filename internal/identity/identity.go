// Package identity owns user accounts: signup, password checks and lookup.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/zulandar/puddle/internal/apperr"
	"github.com/zulandar/puddle/internal/db"
	"github.com/zulandar/puddle/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	maxUsernameLen = 150
	minPasswordLen = 8
	// bcrypt ignores input beyond 72 bytes.
	maxPasswordLen = 72
)

// Field error texts shown next to form inputs.
const (
	MsgRequired         = "This field is required."
	MsgUsernameTaken    = "A user with that username already exists."
	MsgInvalidEmail     = "Enter a valid email address."
	MsgPasswordMismatch = "The two password fields didn't match."
)

// SignupForm holds the fields submitted when registering.
type SignupForm struct {
	Username  string
	Email     string
	Password1 string
	Password2 string
}

// Validate checks the form without touching the database.
func (f SignupForm) Validate() error {
	ve := apperr.NewValidationError()
	username := strings.TrimSpace(f.Username)
	switch {
	case username == "":
		ve.Add("username", MsgRequired)
	case len(username) > maxUsernameLen:
		ve.Add("username", fmt.Sprintf("Ensure this value has at most %d characters.", maxUsernameLen))
	}
	email := strings.TrimSpace(f.Email)
	if email == "" {
		ve.Add("email", MsgRequired)
	} else if _, err := mail.ParseAddress(email); err != nil {
		ve.Add("email", MsgInvalidEmail)
	}
	switch {
	case f.Password1 == "":
		ve.Add("password1", MsgRequired)
	case len(f.Password1) < minPasswordLen:
		ve.Add("password1", fmt.Sprintf("This password is too short. It must contain at least %d characters.", minPasswordLen))
	case len(f.Password1) > maxPasswordLen:
		ve.Add("password1", fmt.Sprintf("Ensure this value has at most %d characters.", maxPasswordLen))
	}
	if f.Password2 == "" {
		ve.Add("password2", MsgRequired)
	} else if f.Password1 != f.Password2 {
		ve.Add("password2", MsgPasswordMismatch)
	}
	return ve.OrNil()
}

// Signup validates the form and creates the user. Nothing is written when
// validation fails.
func Signup(ctx context.Context, gormDB *gorm.DB, form SignupForm) (*models.User, error) {
	if err := form.Validate(); err != nil {
		return nil, fmt.Errorf("identity: signup: %w", err)
	}
	username := strings.TrimSpace(form.Username)

	var count int64
	if err := gormDB.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("identity: signup: check username: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("identity: signup: %w", apperr.Field("username", MsgUsernameTaken))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password1), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("identity: signup: hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		Email:        strings.TrimSpace(form.Email),
		PasswordHash: string(hash),
	}
	if err := gormDB.WithContext(ctx).Create(&user).Error; err != nil {
		if db.IsDuplicateKey(err) {
			return nil, fmt.Errorf("identity: signup: %w", apperr.Field("username", MsgUsernameTaken))
		}
		return nil, fmt.Errorf("identity: signup: %w", err)
	}
	return &user, nil
}

// Authenticate returns the user when username and password match.
func Authenticate(ctx context.Context, gormDB *gorm.DB, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("identity: authenticate: %w", apperr.ErrUnauthenticated)
	}
	var user models.User
	if err := gormDB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("identity: authenticate %s: %w", username, apperr.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("identity: authenticate %s: %w", username, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("identity: authenticate %s: %w", username, apperr.ErrUnauthenticated)
	}
	return &user, nil
}

// Get retrieves a user by ID.
func Get(ctx context.Context, gormDB *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	if err := gormDB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("identity: user %d: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("identity: get user %d: %w", id, err)
	}
	return &user, nil
}

// GetByUsername retrieves a user by username.
func GetByUsername(ctx context.Context, gormDB *gorm.DB, username string) (*models.User, error) {
	var user models.User
	if err := gormDB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("identity: user %q: %w", username, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("identity: get user %q: %w", username, err)
	}
	return &user, nil
}
