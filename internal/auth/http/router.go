package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/beaverio/beaver-core/internal/auth/service"
	"github.com/beaverio/beaver-core/internal/auth/store"
	"github.com/beaverio/beaver-core/pkg/cachex"
	"github.com/beaverio/beaver-core/pkg/httpx"
	"github.com/beaverio/beaver-core/pkg/jwtx"
	"github.com/beaverio/beaver-core/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/beaverio/beaver-core/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

const (
	AccessCookieName  = "authentication"
	RefreshCookieName = "refresh"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	AuthService *service.AuthService
	UserService *service.UserService

	// Cache is probed by the health endpoints and reports hit/miss stats.
	Cache *cachex.Instrumented
	// Gatherer backs /metrics; prometheus.DefaultGatherer when nil.
	Gatherer prometheus.Gatherer

	Cookies       httpx.CookieOptions
	AuthRateLimit httpx.RateLimitConfig
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:           http.NewServeMux(),
		verifier:      verifier,
		buildVersion:  buildVersion,
		startTime:     time.Now(),
		store:         st,
		logger:        logger,
		AuthRateLimit: httpx.DefaultLimit,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSessions()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Beaver Authentication Service API
//	@version		0.1.0
//	@description	Cookie based session authentication. Signing in sets an httpOnly "authentication" cookie
//	@description	holding a short lived access token and a "refresh" cookie holding a refresh token.
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
//
//	@securityDefinitions.apikey	CookieAuth
//	@in							cookie
//	@name						authentication
//	@description				Access token cookie. An "Authorization: Bearer {token}" header is also accepted.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authn verifies the access token and then checks that its user still
// exists.
func (r *Router) authn() httpx.Middleware {
	verify := httpx.AuthnMiddleware(r.verifier, AccessCookieName)
	return func(next http.Handler) http.Handler {
		return verify(r.requireUser(next))
	}
}

func (r *Router) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		userID, ok := httpx.UserIDFromContext(ctx)
		if !ok {
			httpx.ErrUnauthorized.WriteError(w)
			return
		}

		_, err := r.UserService.GetByID(ctx, userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			slogx.FromContext(ctx).Info("access token rejected", "reason", "unknown user")
			httpx.ErrUnauthorized.WriteError(w)
			return
		case err != nil:
			slogx.FromContext(ctx).Warn("failed to load user", "err", err)
			httpx.ErrServerError.WriteError(w)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Auth: r.AuthService, Cookies: r.Cookies}

	// Credential endpoints share the configured window. Signin is keyed by
	// IP and email so one address cannot lock out another.
	r.Mux.Handle("POST /auth/signup",
		httpx.Chain(http.HandlerFunc(h.Signup),
			httpx.RateLimitByIP(r.AuthRateLimit),
		),
	)
	r.Mux.Handle("POST /auth/signin",
		httpx.Chain(http.HandlerFunc(h.Signin),
			httpx.RateLimitByIPAndJSONField(r.AuthRateLimit, "email"),
		),
	)
	r.Mux.Handle("POST /auth/refresh",
		httpx.Chain(http.HandlerFunc(h.Refresh),
			httpx.RateLimitByIP(r.AuthRateLimit),
		),
	)

	r.Mux.Handle("POST /auth/logout",
		httpx.Chain(http.HandlerFunc(h.Logout),
			r.authn(),
			httpx.RateLimitByUser(httpx.DefaultLimit),
		),
	)
	r.Mux.Handle("POST /auth/logout-all",
		httpx.Chain(http.HandlerFunc(h.LogoutAll),
			r.authn(),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{Auth: r.AuthService}

	r.Mux.Handle("GET /auth/sessions/count",
		httpx.Chain(http.HandlerFunc(h.Count),
			r.authn(),
			httpx.RateLimitByUser(httpx.DefaultLimit),
		),
	)
	r.Mux.Handle("GET /auth/sessions",
		httpx.Chain(http.HandlerFunc(h.List),
			r.authn(),
			httpx.RateLimitByUser(httpx.DefaultLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &MeHandler{UserService: r.UserService}

	r.Mux.Handle("GET /users/me",
		httpx.Chain(h,
			r.authn(),
			httpx.RateLimitByUser(httpx.DefaultLimit),
		),
	)
}

func (r *Router) registerSystem() {
	public := httpx.RateLimitByIP(httpx.PublicLimit)

	r.Mux.Handle("GET /livez", httpx.Chain(LivezHandler(r.startTime, r.buildVersion), public))
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Cache), public),
	)
	r.Mux.Handle("GET /health", httpx.Chain(HealthHandler(r.Cache), public))
	r.Mux.Handle("GET /health/cache", httpx.Chain(CacheMetricsHandler(r.Cache), public))

	gatherer := r.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
