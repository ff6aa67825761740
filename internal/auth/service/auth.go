package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/beaverio/beaver-core/internal/auth/domain"
	"github.com/beaverio/beaver-core/internal/auth/store"
	"github.com/beaverio/beaver-core/pkg/cryptox"
	"github.com/beaverio/beaver-core/pkg/idx"
	"github.com/beaverio/beaver-core/pkg/jwtx"
	"github.com/beaverio/beaver-core/pkg/slogx"
)

// MaxDeviceLength bounds the device label stored with a refresh token.
const MaxDeviceLength = 255

// AuthService issues, verifies and revokes sessions. A session is live
// only while both its cached SessionRecord and its durable refresh token
// row exist; the cache is always checked first.
type AuthService struct {
	Users    *UserService
	Store    store.Store
	Sessions *SessionIndex

	AccessTokens  jwtx.Signer
	RefreshTokens interface {
		jwtx.Signer
		jwtx.Verifier
	}
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	Metrics *Metrics
	Now     func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Signup creates a user. The existence check is best-effort; the store's
// unique constraint decides concurrent signups.
func (s *AuthService) Signup(ctx context.Context, email, password string) (user domain.User, err error) {
	defer func() { s.Metrics.observe("signup", err) }()

	_, err = s.Users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return domain.User{}, ErrEmailExists
	case !errors.Is(err, store.ErrNotFound):
		return domain.User{}, err
	}

	user, err = s.Users.Create(ctx, email, password)
	if errors.Is(err, store.ErrAlreadyExists) {
		return domain.User{}, ErrEmailExists
	}
	return user, err
}

// VerifyUser checks an email/password pair. Unknown emails and wrong
// passwords fail identically.
func (s *AuthService) VerifyUser(ctx context.Context, email, password string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		l.Info("signin rejected", "reason", "unknown email")
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		l.Info("signin rejected", "reason", "password mismatch", "user_id", user.ID, "err", err)
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Signin issues an access/refresh token pair for user, persists the
// refresh token digest and caches the session.
func (s *AuthService) Signin(ctx context.Context, user domain.User, device string) (pair domain.TokenPair, err error) {
	defer func() { s.Metrics.observe("signin", err) }()

	now := s.now()
	s.touchLastLogin(ctx, user.ID, now)

	pair, row, err := s.issue(user.ID, device, now)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, row); err != nil {
		return domain.TokenPair{}, err
	}
	if err := s.cacheSession(ctx, user.ID, pair, now); err != nil {
		return domain.TokenPair{}, err
	}

	slogx.FromContext(ctx).Info("session issued", "user_id", user.ID)
	return pair, nil
}

// touchLastLogin is best-effort.
func (s *AuthService) touchLastLogin(ctx context.Context, userID string, now time.Time) {
	if err := s.Users.UpdateLastLogin(ctx, userID, now); err != nil {
		slogx.FromContext(ctx).Warn("failed to update last login", "user_id", userID, "err", err)
	}
}

// issue signs a new token pair and builds its durable row.
func (s *AuthService) issue(userID, device string, now time.Time) (domain.TokenPair, domain.RefreshToken, error) {
	access := jwtx.NewClaims(userID, s.AccessTTL, now)
	refresh := jwtx.NewClaims(userID, s.RefreshTTL, now)

	var (
		pair domain.TokenPair
		err  error
	)
	pair.AccessToken, err = s.AccessTokens.Sign(access)
	if err != nil {
		return domain.TokenPair{}, domain.RefreshToken{}, err
	}
	pair.RefreshToken, err = s.RefreshTokens.Sign(refresh)
	if err != nil {
		return domain.TokenPair{}, domain.RefreshToken{}, err
	}
	pair.AccessExpiresAt = access.Expiry()
	pair.RefreshExpiresAt = refresh.Expiry()

	row := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    userID,
		TokenHash: cryptox.HashToken(pair.RefreshToken),
		Device:    truncateDevice(device),
		ExpiresAt: pair.RefreshExpiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return pair, row, nil
}

func (s *AuthService) cacheSession(ctx context.Context, userID string, pair domain.TokenPair, now time.Time) error {
	return s.Sessions.Add(ctx, domain.SessionRecord{
		UserID:       userID,
		RefreshToken: pair.RefreshToken,
		CreatedAt:    now,
		ExpiresAt:    pair.RefreshExpiresAt,
	})
}

// VerifyRefreshToken returns the owner of a live refresh token. Failures
// are always ErrUnauthorized; unexpected ones collapse to ErrRefreshInvalid.
func (s *AuthService) VerifyRefreshToken(ctx context.Context, rawToken, userID string) (domain.User, error) {
	user, err := s.verifyRefreshToken(ctx, rawToken, userID)
	if err == nil {
		return user, nil
	}

	l := slogx.FromContext(ctx)
	var authErr *AuthError
	if errors.As(err, &authErr) {
		l.Info("refresh token rejected", "user_id", userID, "reason", authErr.Message)
		return domain.User{}, err
	}
	l.Warn("refresh token verification failed", "user_id", userID, "err", err)
	return domain.User{}, ErrRefreshInvalid
}

func (s *AuthService) verifyRefreshToken(ctx context.Context, rawToken, userID string) (domain.User, error) {
	// 1. Session index first; a revoked session fails here even if the
	// durable row has not been deleted yet.
	ok, err := s.Sessions.Valid(ctx, userID, rawToken)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, ErrSessionRevoked
	}

	// 2. Durable row
	hash := cryptox.HashToken(rawToken)
	rt, err := s.Store.RefreshTokens().GetRefreshToken(ctx, userID, hash)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrRefreshNotFound
	}
	if err != nil {
		return domain.User{}, err
	}

	// 3. Expiry, deleting the row as a side effect
	if rt.Expired(s.now()) {
		if err := s.Store.RefreshTokens().DeleteRefreshToken(ctx, userID, hash); err != nil {
			slogx.FromContext(ctx).Warn("failed to delete expired refresh token", "user_id", userID, "err", err)
		}
		return domain.User{}, ErrRefreshExpired
	}

	// 4. Owner
	return s.Users.GetByID(ctx, userID)
}

// AuthenticateRefresh verifies the refresh JWT itself and then the session
// it names.
func (s *AuthService) AuthenticateRefresh(ctx context.Context, rawToken string) (domain.User, error) {
	if rawToken == "" {
		return domain.User{}, ErrRefreshInvalid
	}
	claims, err := s.RefreshTokens.Verify(rawToken)
	if err != nil {
		slogx.FromContext(ctx).Info("refresh token rejected", "err", err)
		return domain.User{}, ErrRefreshInvalid
	}
	if _, err := idx.Parse(claims.Subject); err != nil {
		slogx.FromContext(ctx).Info("refresh token rejected", "reason", "malformed subject")
		return domain.User{}, ErrRefreshInvalid
	}
	return s.VerifyRefreshToken(ctx, rawToken, claims.Subject)
}

// Refresh exchanges a live refresh token for a new pair. The presented
// row is swapped for the new one in a single transaction, so a failed
// insert leaves the old session intact.
func (s *AuthService) Refresh(ctx context.Context, rawToken, device string) (user domain.User, pair domain.TokenPair, err error) {
	defer func() { s.Metrics.observe("refresh", err) }()

	user, err = s.AuthenticateRefresh(ctx, rawToken)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	now := s.now()
	pair, row, err := s.issue(user.ID, device, now)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().DeleteRefreshToken(ctx, user.ID, cryptox.HashToken(rawToken)); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, row)
	})
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	// The old row is gone, so the old token already fails verification
	// even if the cache update below does not happen.
	if err = s.Sessions.Revoke(ctx, user.ID, rawToken); err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	if err = s.cacheSession(ctx, user.ID, pair, now); err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	s.touchLastLogin(ctx, user.ID, now)

	slogx.FromContext(ctx).Info("session refreshed", "user_id", user.ID)
	return user, pair, nil
}

// Logout revokes one session in both stores. Both deletions are always
// attempted and their errors joined.
func (s *AuthService) Logout(ctx context.Context, userID, rawToken string) (err error) {
	defer func() { s.Metrics.observe("logout", err) }()

	cacheErr := s.Sessions.Revoke(ctx, userID, rawToken)
	storeErr := s.Store.RefreshTokens().DeleteRefreshToken(ctx, userID, cryptox.HashToken(rawToken))
	return errors.Join(cacheErr, storeErr)
}

// LogoutAllDevices revokes every session of userID in both stores.
func (s *AuthService) LogoutAllDevices(ctx context.Context, userID string) (err error) {
	defer func() { s.Metrics.observe("logout_all", err) }()

	cacheErr := s.Sessions.RevokeAll(ctx, userID)
	n, storeErr := s.Store.RefreshTokens().DeleteAllUserRefreshTokens(ctx, userID)
	if storeErr == nil {
		slogx.FromContext(ctx).Info("all sessions revoked", "user_id", userID, "refresh_tokens_deleted", n)
	}
	return errors.Join(cacheErr, storeErr)
}

// ActiveSessionCount returns the number of live cached sessions for userID.
func (s *AuthService) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	return s.Sessions.Count(ctx, userID)
}

// ListSessions returns the user's unexpired durable sessions, newest first.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	rows, err := s.Store.RefreshTokens().ListRefreshTokensByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]domain.Session, 0, len(rows))
	for _, rt := range rows {
		if rt.Expired(now) {
			continue
		}
		out = append(out, domain.Session{
			ID:        rt.ID,
			Device:    rt.Device,
			CreatedAt: rt.CreatedAt,
			ExpiresAt: rt.ExpiresAt,
		})
	}
	return out, nil
}

// truncateDevice drops invalid UTF-8 and cuts the label to MaxDeviceLength
// bytes on a rune boundary.
func truncateDevice(device string) string {
	device = strings.ToValidUTF8(device, "")
	if len(device) <= MaxDeviceLength {
		return device
	}
	device = device[:MaxDeviceLength]
	for !utf8.ValidString(device) {
		device = device[:len(device)-1]
	}
	return device
}
