package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/beaverio/beaver-core/internal/auth/domain"
	"github.com/beaverio/beaver-core/pkg/cachex"
	"github.com/beaverio/beaver-core/pkg/cryptox"
)

// DefaultSessionTTL is used when a session's remaining lifetime is not
// positive (clock skew between issuance and caching).
const DefaultSessionTTL = 7 * 24 * time.Hour

// SessionIndex tracks live refresh sessions in the cache:
//
//	session:{userId}:{sha256(token)} -> SessionRecord
//	user_sessions:{userId}           -> []session key
//
// It must be given a strict cache. Swallowed errors here would make logout
// silently ineffective.
type SessionIndex struct {
	Cache   cachex.Cache
	ListTTL time.Duration // TTL for rewritten user_sessions lists; normally the refresh TTL
	Now     func() time.Time
}

// NewSessionIndex returns an index over c whose lists live for listTTL.
func NewSessionIndex(c cachex.Cache, listTTL time.Duration) *SessionIndex {
	return &SessionIndex{Cache: c, ListTTL: listTTL, Now: time.Now}
}

func SessionKey(userID, tokenHash string) string {
	return fmt.Sprintf("session:%s:%s", userID, tokenHash)
}

func UserSessionsKey(userID string) string {
	return "user_sessions:" + userID
}

func (s *SessionIndex) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *SessionIndex) listTTL() time.Duration {
	if s.ListTTL <= 0 {
		return DefaultSessionTTL
	}
	return s.ListTTL
}

// Add caches rec and appends its key to the user's list if not already there.
func (s *SessionIndex) Add(ctx context.Context, rec domain.SessionRecord) error {
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	key := SessionKey(rec.UserID, cryptox.HashToken(rec.RefreshToken))
	if err := cachex.SetJSON(ctx, s.Cache, key, rec, ttl); err != nil {
		return err
	}

	keys, err := s.keys(ctx, rec.UserID)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return cachex.SetJSON(ctx, s.Cache, UserSessionsKey(rec.UserID), append(keys, key), ttl)
}

// Valid reports whether the session for (userID, rawToken) is still cached.
func (s *SessionIndex) Valid(ctx context.Context, userID, rawToken string) (bool, error) {
	rec, err := cachex.GetJSON[domain.SessionRecord](ctx, s.Cache, SessionKey(userID, cryptox.HashToken(rawToken)))
	if errors.Is(err, cachex.ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.UserID == userID &&
		subtle.ConstantTimeCompare([]byte(rec.RefreshToken), []byte(rawToken)) == 1, nil
}

// Revoke removes one session and its entry in the user's list. The list
// is deleted once empty.
func (s *SessionIndex) Revoke(ctx context.Context, userID, rawToken string) error {
	key := SessionKey(userID, cryptox.HashToken(rawToken))
	if err := s.Cache.Delete(ctx, key); err != nil {
		return err
	}

	keys, err := s.keys(ctx, userID)
	if err != nil {
		return err
	}
	remaining := slices.DeleteFunc(keys, func(k string) bool { return k == key })
	return s.writeKeys(ctx, userID, remaining)
}

// RevokeAll removes every listed session for userID and the list itself.
func (s *SessionIndex) RevokeAll(ctx context.Context, userID string) error {
	keys, err := s.keys(ctx, userID)
	if err != nil {
		return err
	}
	return s.Cache.Delete(ctx, append(keys, UserSessionsKey(userID))...)
}

// Count returns the number of listed sessions that are still cached and
// prunes the stale ones from the list.
func (s *SessionIndex) Count(ctx context.Context, userID string) (int, error) {
	keys, err := s.keys(ctx, userID)
	if err != nil {
		return 0, err
	}

	live := make([]string, 0, len(keys))
	for _, k := range keys {
		_, err := s.Cache.Get(ctx, k)
		switch {
		case err == nil:
			live = append(live, k)
		case errors.Is(err, cachex.ErrMiss):
		default:
			return 0, err
		}
	}

	if len(live) != len(keys) {
		if err := s.writeKeys(ctx, userID, live); err != nil {
			return 0, err
		}
	}
	return len(live), nil
}

func (s *SessionIndex) keys(ctx context.Context, userID string) ([]string, error) {
	keys, err := cachex.GetJSON[[]string](ctx, s.Cache, UserSessionsKey(userID))
	if errors.Is(err, cachex.ErrMiss) {
		return nil, nil
	}
	return keys, err
}

func (s *SessionIndex) writeKeys(ctx context.Context, userID string, keys []string) error {
	if len(keys) == 0 {
		return s.Cache.Delete(ctx, UserSessionsKey(userID))
	}
	return cachex.SetJSON(ctx, s.Cache, UserSessionsKey(userID), keys, s.listTTL())
}
