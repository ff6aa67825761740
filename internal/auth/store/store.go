package store

import (
	"context"
	"errors"
	"time"

	"github.com/beaverio/beaver-core/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Repositories hang off the store so that a Tx-scoped store
// exposes exactly the same surface.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks a user up by their (already normalised) email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. Returns ErrAlreadyExists when the
	// email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateLastLogin sets last_login and bumps updated_at.
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token row. Returns
	// ErrAlreadyExists on a duplicate (user_id, token_hash).
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshToken returns the row for a user and token digest.
	GetRefreshToken(ctx context.Context, userID, tokenHash string) (domain.RefreshToken, error)

	// ListRefreshTokensByUser returns a user's rows, newest first.
	ListRefreshTokensByUser(ctx context.Context, userID string) ([]domain.RefreshToken, error)

	// DeleteRefreshToken removes one row. Deleting a missing row is not an error.
	DeleteRefreshToken(ctx context.Context, userID, tokenHash string) error

	// DeleteAllUserRefreshTokens removes every row for a user and reports
	// how many were removed.
	DeleteAllUserRefreshTokens(ctx context.Context, userID string) (int64, error)

	// DeleteExpiredRefreshTokens is housekeeping; it reports how many rows
	// were removed.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}
