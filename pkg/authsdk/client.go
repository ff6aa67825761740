package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

const (
	AccessCookieName  = "authentication"
	RefreshCookieName = "refresh"
)

// SDKClient is a client for the authentication service. It performs public
// requests and creates Sessions.
type SDKClient struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper

	// UserAgent is sent on every request; the service stores it as the
	// device label of new sessions.
	UserAgent string
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Timeout: 10 * time.Second,
	}
}

func (c *SDKClient) httpClient(jar http.CookieJar) *http.Client {
	return &http.Client{Timeout: c.Timeout, Transport: c.Transport, Jar: jar}
}

// newSession returns an empty Session with its own cookie jar.
func (c *SDKClient) newSession() *Session {
	jar, _ := cookiejar.New(nil) // only fails on a bad PublicSuffixList
	return &Session{client: c, jar: jar, http: c.httpClient(jar)}
}

// Signup creates an account and returns the signed-in Session.
func (c *SDKClient) Signup(ctx context.Context, email, password string) (*Session, error) {
	s := c.newSession()
	if err := s.authenticate(ctx, "/auth/signup", email, password, http.StatusCreated); err != nil {
		return nil, err
	}
	return s, nil
}

// Signin signs in to an existing account. Each call creates a new device
// session.
func (c *SDKClient) Signin(ctx context.Context, email, password string) (*Session, error) {
	s := c.newSession()
	if err := s.authenticate(ctx, "/auth/signin", email, password, http.StatusOK); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSessionFromTokens builds a Session from tokens obtained elsewhere.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string) (*Session, error) {
	s := c.newSession()
	u, err := s.baseURL()
	if err != nil {
		return nil, err
	}
	var cookies []*http.Cookie
	if accessToken != "" {
		cookies = append(cookies, &http.Cookie{Name: AccessCookieName, Value: accessToken, Path: "/"})
	}
	if refreshToken != "" {
		cookies = append(cookies, &http.Cookie{Name: RefreshCookieName, Value: refreshToken, Path: "/"})
	}
	s.jar.SetCookies(u, cookies)
	return s, nil
}

func jsonBody(v any) (*bytes.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return bytes.NewReader(b), nil
}
