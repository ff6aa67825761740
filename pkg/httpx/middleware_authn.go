package httpx

import (
	"net/http"
	"strings"

	"github.com/beaverio/beaver-core/pkg/idx"
	"github.com/beaverio/beaver-core/pkg/jwtx"
	"github.com/beaverio/beaver-core/pkg/slogx"
)

// AccessTokenFromRequest reads the access token from the named cookie and
// falls back to an "Authorization: Bearer" header.
func AccessTokenFromRequest(r *http.Request, cookieName string) string {
	if v := CookieValue(r, cookieName); v != "" {
		return v
	}

	authz := r.Header.Get("Authorization")
	if len(authz) > len("Bearer ") && strings.EqualFold(authz[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(authz[len("Bearer "):])
	}
	return ""
}

// AuthnMiddleware verifies the access token and stores its subject, which
// must be a well-formed user id, on the request context. Failures are a
// 401 with the generic body; the reason only goes to the log.
func AuthnMiddleware(v jwtx.Verifier, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := AccessTokenFromRequest(r, cookieName)
			if raw == "" {
				writeUnauthorized(w)
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				log.Info("access token rejected", "err", err)
				writeUnauthorized(w)
				return
			}
			if _, err := idx.Parse(claims.Subject); err != nil {
				log.Info("access token rejected", "reason", "malformed subject")
				writeUnauthorized(w)
				return
			}

			ctx = ContextWithUserID(ctx, claims.Subject)
			ctx = slogx.With(ctx, "user_id", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	ErrUnauthorized.WriteError(w)
}
