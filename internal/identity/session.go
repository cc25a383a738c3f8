package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zulandar/puddle/internal/apperr"
	"github.com/zulandar/puddle/internal/logging"
	"github.com/zulandar/puddle/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultSessionTTL applies when SessionOpts.TTL is zero.
const DefaultSessionTTL = 24 * time.Hour

const issuer = "puddle"

// Claims is the payload of a session token.
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies signed session tokens. Tokens are
// stateless; logging out records the token ID in revoked_sessions until the
// token would have expired.
type SessionManager struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// SessionOpts holds parameters for creating a SessionManager.
type SessionOpts struct {
	DB     *gorm.DB
	Secret string
	TTL    time.Duration    // defaults to DefaultSessionTTL
	Now    func() time.Time // defaults to time.Now
	Logger *zerolog.Logger
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(opts SessionOpts) (*SessionManager, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("identity: session manager: db is required")
	}
	if opts.Secret == "" {
		return nil, fmt.Errorf("identity: session manager: secret is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SessionManager{
		db:     opts.DB,
		secret: []byte(opts.Secret),
		ttl:    ttl,
		now:    now,
		log:    logging.OrNop(opts.Logger).With().Str("component", "sessions").Logger(),
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a new session token for user.
func (m *SessionManager) Issue(user *models.User) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   fmt.Sprintf("user_%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("identity: sign session: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies a token's signature, expiry and revocation status.
func (m *SessionManager) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("identity: session: %w", apperr.ErrUnauthenticated)
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("identity: session: %v: %w", err, apperr.ErrUnauthenticated)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, fmt.Errorf("identity: session: invalid claims: %w", apperr.ErrUnauthenticated)
	}

	var revoked int64
	if err := m.db.WithContext(ctx).Model(&models.RevokedSession{}).
		Where("token_id = ?", claims.ID).Count(&revoked).Error; err != nil {
		return nil, fmt.Errorf("identity: session: check revocation: %w", err)
	}
	if revoked > 0 {
		return nil, fmt.Errorf("identity: session revoked: %w", apperr.ErrUnauthenticated)
	}
	return claims, nil
}

// Revoke invalidates the session identified by claims. Revoking twice is a
// no-op.
func (m *SessionManager) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return errors.New("identity: revoke: token id is required")
	}
	expires := m.now().Add(m.ttl)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	rs := models.RevokedSession{
		TokenID:   claims.ID,
		UserID:    claims.UserID,
		ExpiresAt: expires.UTC(),
	}
	if err := m.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rs).Error; err != nil {
		return fmt.Errorf("identity: revoke %s: %w", claims.ID, err)
	}
	m.log.Info().Uint("user_id", claims.UserID).Str("token_id", claims.ID).Msg("session revoked")
	return nil
}

// PruneRevoked deletes revocation records whose tokens have expired and
// returns how many were removed.
func (m *SessionManager) PruneRevoked(ctx context.Context) (int64, error) {
	result := m.db.WithContext(ctx).Where("expires_at < ?", m.now().UTC()).Delete(&models.RevokedSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("identity: prune revoked sessions: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		m.log.Debug().Int64("pruned", result.RowsAffected).Msg("pruned revoked sessions")
	}
	return result.RowsAffected, nil
}
