package http_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	authhttp "github.com/beaverio/beaver-core/internal/auth/http"
	"github.com/beaverio/beaver-core/internal/auth/service"
	"github.com/beaverio/beaver-core/internal/auth/store/drivers/sqlite"
	"github.com/beaverio/beaver-core/pkg/authsdk"
	"github.com/beaverio/beaver-core/pkg/cachex"
	"github.com/beaverio/beaver-core/pkg/cryptox"
	"github.com/beaverio/beaver-core/pkg/httpx"
	"github.com/beaverio/beaver-core/pkg/idx"
	"github.com/beaverio/beaver-core/pkg/jwtx"
	"github.com/beaverio/beaver-core/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct horse battery"

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "beaver-http-*")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// switchCache fails every call while down is set.
type switchCache struct {
	cachex.Cache
	down bool
}

var errDown = errors.New("cache down")

func (c *switchCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.down {
		return nil, errDown
	}
	return c.Cache.Get(ctx, key)
}

func (c *switchCache) Set(ctx context.Context, key string, v []byte, ttl time.Duration) error {
	if c.down {
		return errDown
	}
	return c.Cache.Set(ctx, key, v, ttl)
}

func (c *switchCache) Delete(ctx context.Context, keys ...string) error {
	if c.down {
		return errDown
	}
	return c.Cache.Delete(ctx, keys...)
}

func (c *switchCache) Ping(ctx context.Context) error {
	if c.down {
		return errDown
	}
	return nil
}

type testServer struct {
	*httptest.Server
	client *authsdk.SDKClient
	cache  *switchCache
	auth   *service.AuthService
	access *jwtx.HMAC
}

func newTestServer(t *testing.T, opts ...func(*authhttp.Router)) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	access, err := jwtx.NewHMAC("access-secret-access-secret-access-secret", 0)
	require.NoError(t, err)
	refresh, err := jwtx.NewHMAC("refresh-secret-refresh-secret-refresh-secret", 0)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	cache := &switchCache{Cache: cachex.NewMemory(time.Minute)}
	instrumented := cachex.Instrument(cache, reg)

	users := &service.UserService{Store: st}
	auth := &service.AuthService{
		Users:         users,
		Store:         st,
		Sessions:      service.NewSessionIndex(instrumented, 7*24*time.Hour),
		AccessTokens:  access,
		RefreshTokens: refresh,
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Metrics:       service.NewMetrics(reg),
	}

	router := authhttp.NewRouter(access, "test", st, slogx.Discard())
	router.AuthService = auth
	router.UserService = users
	router.Cache = instrumented
	router.Gatherer = reg
	for _, opt := range opts {
		opt(router)
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{
		Server: srv,
		client: authsdk.NewSDKClient(srv.URL),
		cache:  cache,
		auth:   auth,
		access: access,
	}
}

func (s *testServer) post(t *testing.T, path, contentType, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSignupSetsCookies(t *testing.T) {
	s := newTestServer(t)

	resp := s.post(t, "/auth/signup", "application/json", `{"email":"alice@example.com","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `"email":"alice@example.com"`)
	require.NotContains(t, string(body), "password")

	for _, name := range []string{authhttp.AccessCookieName, authhttp.RefreshCookieName} {
		c := findCookie(resp, name)
		require.NotNil(t, c, name)
		require.NotEmpty(t, c.Value)
		require.True(t, c.HttpOnly)
		require.Equal(t, http.SameSiteLaxMode, c.SameSite)
		require.Equal(t, "/", c.Path)
		require.False(t, c.Secure)
	}
}

func TestSecureCookies(t *testing.T) {
	s := newTestServer(t, func(r *authhttp.Router) {
		r.Cookies = httpx.CookieOptions{Secure: true}
	})

	resp := s.post(t, "/auth/signup", "application/json", `{"email":"alice@example.com","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, findCookie(resp, authhttp.AccessCookieName).Secure)
	require.True(t, findCookie(resp, authhttp.RefreshCookieName).Secure)
}

func TestSignupValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
	}{
		{"bad email", "application/json", `{"email":"not-an-email","password":"` + testPassword + `"}`, http.StatusBadRequest},
		{"short password", "application/json", `{"email":"bob@example.com","password":"short"}`, http.StatusBadRequest},
		{"malformed json", "application/json", `{"email":`, http.StatusBadRequest},
		{"form body", "application/x-www-form-urlencoded", "email=bob@example.com", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.post(t, "/auth/signup", tt.contentType, tt.body)
			require.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	ctx := t.Context()

	_, err := s.client.Signup(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)

	_, err = s.client.Signup(ctx, "alice@example.com", testPassword)
	require.True(t, authsdk.IsConflict(err), "got %v", err)

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Email already exists", apiErr.Description)
}

func TestSigninFailuresAreGeneric(t *testing.T) {
	s := newTestServer(t)
	ctx := t.Context()

	_, err := s.client.Signup(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)

	_, wrongPassword := s.client.Signin(ctx, "alice@example.com", "wrong password")
	_, unknownEmail := s.client.Signin(ctx, "nobody@example.com", testPassword)

	require.True(t, authsdk.IsUnauthorized(wrongPassword))
	require.True(t, authsdk.IsUnauthorized(unknownEmail))
	require.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	require.NotContains(t, wrongPassword.Error(), "Credentials")
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)
	ctx := t.Context()

	laptop, err := s.client.Signup(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)
	phone, err := s.client.Signin(ctx, "ALICE@example.com", testPassword)
	require.NoError(t, err)

	me, err := phone.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, laptop.User().ID, me.ID)
	require.NotNil(t, me.LastLogin)

	count, err := laptop.ActiveSessionCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	sessions, err := laptop.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	// Refresh rotates: the count stays the same and the old token is dead.
	oldRefresh := phone.RefreshToken()
	require.NoError(t, phone.Refresh(ctx))
	require.NotEqual(t, oldRefresh, phone.RefreshToken())

	count, err = phone.ActiveSessionCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	stale, err := s.client.NewSessionFromTokens("", oldRefresh)
	require.NoError(t, err)
	require.True(t, authsdk.IsUnauthorized(stale.Refresh(ctx)))

	// Logout revokes only the phone.
	require.NoError(t, phone.Logout(ctx))
	require.Empty(t, phone.RefreshToken())

	count, err = laptop.ActiveSessionCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// Logout-all revokes the laptop too.
	require.NoError(t, laptop.LogoutAll(ctx))
	count, err = s.auth.ActiveSessionCount(ctx, laptop.User().ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestRefreshWithoutCookie(t *testing.T) {
	s := newTestServer(t)

	resp := s.post(t, "/auth/refresh", "", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	s := newTestServer(t)
	ctx := t.Context()

	sess, err := s.client.Signup(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)

	// An access token is signed with the other secret.
	forged, err := s.client.NewSessionFromTokens("", sess.AccessToken())
	require.NoError(t, err)
	require.True(t, authsdk.IsUnauthorized(forged.Refresh(ctx)))
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/users/me", "/auth/sessions/count", "/auth/sessions"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(s.URL + path)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestTokenForUnknownUserIsRejected(t *testing.T) {
	s := newTestServer(t)
	ctx := t.Context()

	// Validly signed, but no such user.
	tok, err := s.access.Sign(jwtx.NewClaims(idx.New().String(), time.Minute, time.Now()))
	require.NoError(t, err)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/users/me"},
		{http.MethodGet, "/auth/sessions/count"},
		{http.MethodGet, "/auth/sessions"},
		{http.MethodPost, "/auth/logout"},
		{http.MethodPost, "/auth/logout-all"},
	} {
		t.Run(route.path, func(t *testing.T) {
			req, err := http.NewRequestWithContext(ctx, route.method, s.URL+route.path, nil)
			require.NoError(t, err)
			req.AddCookie(&http.Cookie{Name: authhttp.AccessCookieName, Value: tok})

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestBearerHeaderFallback(t *testing.T) {
	s := newTestServer(t)
	ctx := t.Context()

	sess, err := s.client.Signup(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+"/users/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogoutSurfacesCacheFailure(t *testing.T) {
	s := newTestServer(t)
	ctx := t.Context()

	sess, err := s.client.Signup(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)

	s.cache.down = true
	err = sess.Logout(ctx)

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestSigninRateLimit(t *testing.T) {
	s := newTestServer(t, func(r *authhttp.Router) {
		r.AuthRateLimit = httpx.NewRateLimitConfig(2, time.Minute)
	})
	ctx := t.Context()

	for range 2 {
		_, err := s.client.Signin(ctx, "alice@example.com", testPassword)
		require.True(t, authsdk.IsUnauthorized(err))
	}
	_, err := s.client.Signin(ctx, "alice@example.com", testPassword)
	require.True(t, authsdk.IsRateLimited(err))

	// A different email has its own bucket.
	_, err = s.client.Signin(ctx, "bob@example.com", testPassword)
	require.True(t, authsdk.IsUnauthorized(err))
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	ctx := t.Context()

	live, err := s.client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := s.client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Cache)

	health, err := s.client.GetHealth(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "healthy", health.Services["cache"])

	// The health probe above was one hit.
	metrics, err := s.client.GetCacheMetrics(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, metrics.Hits)

	s.cache.down = true

	_, err = s.client.GetReadiness(ctx)
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)

	_, err = s.client.GetHealth(ctx)
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	_, err := s.client.Signup(t.Context(), "alice@example.com", testPassword)
	require.NoError(t, err)

	resp, err := http.Get(s.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "beaver_cache_operations_total")
	require.Contains(t, buf.String(), `beaver_auth_session_events_total{event="signin",result="ok"} 1`)
}
