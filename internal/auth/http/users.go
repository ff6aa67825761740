package http

import (
	"errors"
	"net/http"

	"github.com/beaverio/beaver-core/internal/auth/service"
	"github.com/beaverio/beaver-core/internal/auth/store"
	"github.com/beaverio/beaver-core/pkg/httpx"
	"github.com/beaverio/beaver-core/pkg/slogx"
)

type MeHandler struct {
	UserService *service.UserService
}

// ServeHTTP returns the authenticated user.
//
//	@Summary		Get the current user
//	@Tags			Users
//	@Security		CookieAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.User
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		500	{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/users/me [get].
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		httpx.ErrUnauthorized.WriteError(w)
		return
	}

	user, err := h.UserService.GetByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		// Access token outlived its user.
		httpx.ErrUnauthorized.WriteError(w)
		return
	}
	if err != nil {
		slogx.FromContext(ctx).Warn("failed to load user", "user_id", userID, "err", err)
		httpx.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}
