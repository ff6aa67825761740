package http

import (
	"errors"
	"net/http"

	"github.com/beaverio/beaver-core/internal/auth/service"
	"github.com/beaverio/beaver-core/pkg/httpx"
	"github.com/beaverio/beaver-core/pkg/slogx"
)

// writeServiceError maps a service error to a response. Authentication
// failures always get the generic 401 body.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *service.AuthError

	switch {
	case errors.Is(err, service.ErrUnauthorized):
		httpx.ErrUnauthorized.WriteError(w)
	case errors.Is(err, service.ErrConflict) && errors.As(err, &authErr):
		httpx.ErrConflict.WithDescription(authErr.Message).WriteError(w)
	case errors.Is(err, service.ErrConflict):
		httpx.ErrConflict.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		httpx.ErrServerError.WriteError(w)
	}
}
