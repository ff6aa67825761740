package httpx_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/beaverio/beaver-core/pkg/httpx"
	"github.com/beaverio/beaver-core/pkg/idx"
	"github.com/beaverio/beaver-core/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), mw("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.ErrConflict.WithDescription("Email already exists").WriteError(rec)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body httpx.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "conflict", body.Error)
	require.Equal(t, "Email already exists", body.ErrorDescription)

	// Original is untouched.
	require.NotEqual(t, "Email already exists", httpx.ErrConflict.Description)
}

func TestCookies(t *testing.T) {
	t.Run("set cookie attributes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		expires := time.Now().Add(time.Hour)
		httpx.SetCookie(rec, "authentication", "tok", expires, httpx.CookieOptions{Secure: true})

		res := rec.Result()
		cookies := res.Cookies()
		require.Len(t, cookies, 1)

		c := cookies[0]
		require.Equal(t, "authentication", c.Name)
		require.Equal(t, "tok", c.Value)
		require.True(t, c.HttpOnly)
		require.True(t, c.Secure)
		require.Equal(t, http.SameSiteLaxMode, c.SameSite)
		require.Equal(t, "/", c.Path)
		require.Greater(t, c.MaxAge, 0)
	})

	t.Run("clear cookie expires immediately", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httpx.ClearCookie(rec, "refresh", httpx.CookieOptions{})

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, "refresh", cookies[0].Name)
		require.Empty(t, cookies[0].Value)
		require.Less(t, cookies[0].MaxAge, 0)
	})

	t.Run("read cookie value", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		require.Empty(t, httpx.CookieValue(req, "refresh"))

		req.AddCookie(&http.Cookie{Name: "refresh", Value: "abc"})
		require.Equal(t, "abc", httpx.CookieValue(req, "refresh"))
	})
}

type stubVerifier struct {
	subject string
	err     error
}

func (s stubVerifier) Verify(token string) (jwtx.Claims, error) {
	if s.err != nil {
		return jwtx.Claims{}, s.err
	}
	c := jwtx.Claims{}
	c.Subject = s.subject
	return c, nil
}

func TestAuthnMiddleware(t *testing.T) {
	userID := idx.New().String()
	var gotUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = httpx.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("cookie token", func(t *testing.T) {
		gotUser = ""
		h := httpx.AuthnMiddleware(stubVerifier{subject: userID}, "authentication")(next)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "authentication", Value: "tok"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, userID, gotUser)
	})

	t.Run("bearer fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer tok")
		require.Equal(t, "tok", httpx.AccessTokenFromRequest(req, "authentication"))
	})

	t.Run("missing token", func(t *testing.T) {
		h := httpx.AuthnMiddleware(stubVerifier{subject: userID}, "authentication")(next)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.True(t, strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Bearer"))
	})

	t.Run("malformed subject", func(t *testing.T) {
		for _, sub := range []string{"", "user-1", "../admin"} {
			gotUser = ""
			h := httpx.AuthnMiddleware(stubVerifier{subject: sub}, "authentication")(next)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: "authentication", Value: "tok"})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code, "subject %q", sub)
			require.Empty(t, gotUser)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		h := httpx.AuthnMiddleware(stubVerifier{err: errors.New("bad")}, "authentication")(next)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
