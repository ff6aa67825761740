package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
)

// Session is one signed-in device. Its tokens live in a private cookie jar
// and are sent and rotated by the service's Set-Cookie headers.
type Session struct {
	client *SDKClient
	jar    http.CookieJar
	http   *http.Client

	mu   sync.RWMutex
	user User
}

func (s *Session) baseURL() (*url.URL, error) {
	u, err := url.Parse(s.client.BaseURL + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	return u, nil
}

func (s *Session) cookie(name string) string {
	u, err := s.baseURL()
	if err != nil {
		return ""
	}
	for _, c := range s.jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// AccessToken returns the current access token cookie, if any.
func (s *Session) AccessToken() string { return s.cookie(AccessCookieName) }

// RefreshToken returns the current refresh token cookie, if any.
func (s *Session) RefreshToken() string { return s.cookie(RefreshCookieName) }

// User returns the user the session was opened for.
func (s *Session) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) authenticate(ctx context.Context, path, email, password string, expected int) error {
	body, err := jsonBody(CredentialsRequest{Email: email, Password: password})
	if err != nil {
		return err
	}
	resp, err := s.client.do(ctx, s.http, http.MethodPost, path, body)
	if err != nil {
		return err
	}

	var u User
	if err := decodeJSON(resp, &u, expected); err != nil {
		return err
	}
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	return nil
}

func (s *Session) call(ctx context.Context, method, path string, target any) error {
	resp, err := s.client.do(ctx, s.http, method, path, nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target, http.StatusOK)
}

// Me returns the signed-in user.
func (s *Session) Me(ctx context.Context) (*User, error) {
	var u User
	if err := s.call(ctx, http.MethodGet, "/users/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Refresh exchanges the refresh cookie for a new token pair. The old
// refresh token stops working.
func (s *Session) Refresh(ctx context.Context) error {
	var u User
	if err := s.call(ctx, http.MethodPost, "/auth/refresh", &u); err != nil {
		return err
	}
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	return nil
}

// Logout revokes this session.
func (s *Session) Logout(ctx context.Context) error {
	var msg MessageResponse
	return s.call(ctx, http.MethodPost, "/auth/logout", &msg)
}

// LogoutAll revokes every session of the user.
func (s *Session) LogoutAll(ctx context.Context) error {
	var msg MessageResponse
	return s.call(ctx, http.MethodPost, "/auth/logout-all", &msg)
}

// ActiveSessionCount returns the number of live sessions of the user.
func (s *Session) ActiveSessionCount(ctx context.Context) (int, error) {
	var resp SessionCountResponse
	if err := s.call(ctx, http.MethodGet, "/auth/sessions/count", &resp); err != nil {
		return 0, err
	}
	return resp.ActiveSessionCount, nil
}

// ListSessions returns the user's durable sessions, newest first.
func (s *Session) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	var resp SessionsResponse
	if err := s.call(ctx, http.MethodGet, "/auth/sessions", &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}
