package http

import (
	"net/http"

	"github.com/beaverio/beaver-core/internal/auth/service"
	"github.com/beaverio/beaver-core/pkg/authsdk"
	"github.com/beaverio/beaver-core/pkg/httpx"
)

type SessionsHandler struct {
	Auth *service.AuthService
}

// Count returns the number of live sessions.
//
//	@Summary		Count active sessions
//	@Tags			Sessions
//	@Security		CookieAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.SessionCountResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/auth/sessions/count [get].
func (h *SessionsHandler) Count(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := httpx.UserIDFromContext(ctx)

	n, err := h.Auth.ActiveSessionCount(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.SessionCountResponse{ActiveSessionCount: n})
}

// List returns the user's sessions, newest first.
//
//	@Summary		List sessions
//	@Description	Lists the unexpired sessions of the authenticated user with their device labels.
//	@Tags			Sessions
//	@Security		CookieAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.SessionsResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/auth/sessions [get].
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := httpx.UserIDFromContext(ctx)

	sessions, err := h.Auth.ListSessions(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := authsdk.SessionsResponse{Sessions: make([]authsdk.SessionInfo, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, authsdk.SessionInfo{
			ID:        s.ID,
			Device:    s.Device,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
