package service

import (
	"context"
	"strings"
	"time"

	"github.com/beaverio/beaver-core/internal/auth/domain"
	"github.com/beaverio/beaver-core/internal/auth/store"
	"github.com/beaverio/beaver-core/pkg/cachex"
	"github.com/beaverio/beaver-core/pkg/cryptox"
	"github.com/beaverio/beaver-core/pkg/idx"
	"github.com/beaverio/beaver-core/pkg/slogx"
)

// UserService owns user records. Lookups by id go through Cache when set,
// which should be a lenient cache: the store is the source of truth.
type UserService struct {
	Store    store.Store
	Cache    cachex.Cache
	CacheTTL time.Duration
}

// cachedUser keeps the password hash, which domain.User hides from JSON.
type cachedUser struct {
	domain.User
	PasswordHash string `json:"passwordHash"`
}

func userCacheKey(id string) string { return "user:" + id }

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetByID fetches a user by id.
func (s *UserService) GetByID(ctx context.Context, userID string) (domain.User, error) {
	if s.Cache != nil {
		if cu, err := cachex.GetJSON[cachedUser](ctx, s.Cache, userCacheKey(userID)); err == nil {
			u := cu.User
			u.PasswordHash = cu.PasswordHash
			return u, nil
		}
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	if s.Cache != nil {
		_ = cachex.SetJSON(ctx, s.Cache, userCacheKey(userID), cachedUser{User: u, PasswordHash: u.PasswordHash}, s.CacheTTL)
	}
	return u, nil
}

// GetByEmail fetches a user by email. The email is normalised first.
func (s *UserService) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.Store.Users().GetUserByEmail(ctx, NormalizeEmail(email))
}

// Create hashes password and inserts a new user. A taken email surfaces as
// store.ErrAlreadyExists.
func (s *UserService) Create(ctx context.Context, email, password string) (domain.User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New().String(),
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user created", "user_id", u.ID)
	return u, nil
}

// UpdateLastLogin records a signin at at and drops the cached copy.
func (s *UserService) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	if err := s.Store.Users().UpdateLastLogin(ctx, userID, at); err != nil {
		return err
	}
	if s.Cache != nil {
		_ = s.Cache.Delete(ctx, userCacheKey(userID))
	}
	return nil
}
