package authsdk

import "time"

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	// Error is a short machine readable code (e.g. "unauthorized")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// CredentialsRequest is the body of signup and signin.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the public view of a user account.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	LastLogin *time.Time `json:"lastLogin"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// MessageResponse is returned by logout endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// SessionCountResponse is returned by GET /auth/sessions/count.
type SessionCountResponse struct {
	ActiveSessionCount int `json:"activeSessionCount"`
}

// SessionInfo describes one durable session (one device).
type SessionInfo struct {
	ID        string    `json:"id"`
	Device    string    `json:"device,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionsResponse is returned by GET /auth/sessions.
type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks holds per-dependency readiness results.
type HealthChecks struct {
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

// CacheHealthResponse is returned by GET /health.
type CacheHealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// CacheMetricsResponse is returned by GET /health/cache.
type CacheMetricsResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Errors    int64     `json:"errors"`
	HitRate   float64   `json:"hitRate"`
}
