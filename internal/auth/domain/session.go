package domain

import "time"

// SessionRecord is the cached view of a live refresh session, keyed by
// user and token digest. It carries the raw refresh token so the cache
// entry is self-describing.
type SessionRecord struct {
	UserID       string    `json:"userId"`
	RefreshToken string    `json:"refreshToken"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Session is a durable session as listed to its owner. The token itself
// is never exposed.
type Session struct {
	ID        string    `json:"id"`
	Device    string    `json:"device,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
