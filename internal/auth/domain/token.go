package domain

import "time"

// TokenPair is what signin hands back to the transport: a short-lived
// access JWT and a long-lived refresh JWT with their expiries.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// RefreshToken models the durable refresh token row. Only the SHA-256 hex
// digest of the token is stored; (UserID, TokenHash) is unique.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	Device    string // client label, at most 255 chars; may be empty
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the token has expired at now. A token is still
// valid at the exact instant of ExpiresAt.
func (t RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
