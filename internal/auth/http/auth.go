package http

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/beaverio/beaver-core/internal/auth/domain"
	"github.com/beaverio/beaver-core/internal/auth/service"
	"github.com/beaverio/beaver-core/pkg/authsdk"
	"github.com/beaverio/beaver-core/pkg/httpx"
	"github.com/beaverio/beaver-core/pkg/slogx"
)

const maxCredentialBody = 16 << 10

// AuthHandler serves the credential and session cookie endpoints.
type AuthHandler struct {
	Auth    *service.AuthService
	Cookies httpx.CookieOptions
}

// Signup handles account creation.
//
//	@Summary		Create an account
//	@Description	Creates a user and signs them in. Sets the "authentication" and "refresh" cookies.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.CredentialsRequest	true	"email and password (min 8 characters)"
//	@Success		201		{object}	authsdk.User				"The created user"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Invalid email or password"
//	@Failure		409		{object}	authsdk.ErrorResponse		"Email already exists"
//	@Failure		429		{object}	authsdk.ErrorResponse		"Rate limit exceeded"
//	@Router			/auth/signup [post].
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeJSON[signupRequest](w, r)
	if !ok {
		return
	}
	if apiErr := validateRequest(creds); apiErr != nil {
		apiErr.WriteError(w)
		return
	}

	ctx := r.Context()
	user, err := h.Auth.Signup(ctx, creds.Email, creds.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	pair, err := h.Auth.Signin(ctx, user, r.UserAgent())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.setSessionCookies(w, pair)
	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// Signin handles credential login.
//
//	@Summary		Sign in
//	@Description	Verifies the email and password and opens a new session for this device.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.CredentialsRequest	true	"email and password"
//	@Success		200		{object}	authsdk.User				"The signed in user"
//	@Failure		401		{object}	authsdk.ErrorResponse		"Credentials are invalid"
//	@Failure		429		{object}	authsdk.ErrorResponse		"Rate limit exceeded"
//	@Router			/auth/signin [post].
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeJSON[signinRequest](w, r)
	if !ok {
		return
	}
	if apiErr := validateRequest(creds); apiErr != nil {
		apiErr.WriteError(w)
		return
	}

	ctx := r.Context()
	user, err := h.Auth.VerifyUser(ctx, creds.Email, creds.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	pair, err := h.Auth.Signin(ctx, user, r.UserAgent())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.setSessionCookies(w, pair)
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// Refresh handles refresh token rotation.
//
//	@Summary		Refresh the session
//	@Description	Exchanges the "refresh" cookie for a new access and refresh token. The presented refresh token is revoked.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.User			"The session owner"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Missing, invalid, expired or revoked refresh token"
//	@Router			/auth/refresh [post].
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw := httpx.CookieValue(r, RefreshCookieName)

	user, pair, err := h.Auth.Refresh(r.Context(), raw, r.UserAgent())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.setSessionCookies(w, pair)
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// Logout revokes the current session.
//
//	@Summary		Log out
//	@Description	Revokes the session named by the "refresh" cookie and clears both cookies.
//	@Tags			Auth
//	@Security		CookieAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MessageResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		500	{object}	authsdk.ErrorResponse	"Session could not be revoked"
//	@Router			/auth/logout [post].
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := httpx.UserIDFromContext(ctx)

	// Without a refresh cookie there is no session to revoke; the access
	// token simply expires.
	if raw := httpx.CookieValue(r, RefreshCookieName); raw != "" {
		if err := h.Auth.Logout(ctx, userID, raw); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	h.clearSessionCookies(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Logged out successfully"})
}

// LogoutAll revokes every session of the user.
//
//	@Summary		Log out from all devices
//	@Description	Revokes every session of the authenticated user and clears both cookies.
//	@Tags			Auth
//	@Security		CookieAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MessageResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		500	{object}	authsdk.ErrorResponse	"Sessions could not be revoked"
//	@Router			/auth/logout-all [post].
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := httpx.UserIDFromContext(ctx)

	if err := h.Auth.LogoutAllDevices(ctx, userID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.clearSessionCookies(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Logged out from all devices successfully"})
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, pair domain.TokenPair) {
	httpx.SetCookie(w, AccessCookieName, pair.AccessToken, pair.AccessExpiresAt, h.Cookies)
	httpx.SetCookie(w, RefreshCookieName, pair.RefreshToken, pair.RefreshExpiresAt, h.Cookies)
}

func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	httpx.ClearCookie(w, AccessCookieName, h.Cookies)
	httpx.ClearCookie(w, RefreshCookieName, h.Cookies)
}

func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var body T

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		httpx.ErrUnsupportedMediaType.WriteError(w)
		return body, false
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxCredentialBody))
	if err := dec.Decode(&body); err != nil {
		slogx.FromContext(r.Context()).Debug("malformed request body", "err", err)
		httpx.ErrInvalidRequest.WithDescription("request body must be a JSON object").WriteError(w)
		return body, false
	}
	return body, true
}

func toUserResponse(u domain.User) authsdk.User {
	return authsdk.User{
		ID:        u.ID,
		Email:     u.Email,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
