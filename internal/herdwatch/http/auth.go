package http

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/herdwatch/herdwatch/internal/herdwatch/domain"
	"github.com/herdwatch/herdwatch/internal/herdwatch/service"
	"github.com/herdwatch/herdwatch/pkg/authsdk"
	"github.com/herdwatch/herdwatch/pkg/httpx"
	"github.com/herdwatch/herdwatch/pkg/slogx"
)

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	AuthService *service.AuthService
	Cookie      CookieConfig
	AccessTTL   time.Duration

	validate *validator.Validate
}

func (h *AuthHandler) expiresIn() int {
	return int(h.AccessTTL.Seconds())
}

func (h *AuthHandler) signedIn(w http.ResponseWriter, status int, msg string, res service.AuthResult) {
	h.Cookie.set(w, res.Tokens.RefreshToken, res.Tokens.RefreshExpiresAt)
	httpx.WriteJSON(w, status, authsdk.AuthResponse{
		Message:     msg,
		User:        toUser(res.Account),
		AccessToken: res.Tokens.AccessToken,
		ExpiresIn:   h.expiresIn(),
	})
}

func (h *AuthHandler) rotated(w http.ResponseWriter, msg string, tokens domain.TokenPair) {
	h.Cookie.set(w, tokens.RefreshToken, tokens.RefreshExpiresAt)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		Message:     msg,
		AccessToken: tokens.AccessToken,
		ExpiresIn:   h.expiresIn(),
	})
}

// HandleRegister godoc
//
//	@Summary		Register
//	@Description	Creates an account and signs it in. The refresh token is set as an httpOnly cookie.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RegisterRequest	true	"account details"
//	@Success		201		{object}	authsdk.AuthResponse
//	@Failure		400		{object}	authsdk.APIError	"validation_failed, duplicate_account"
//	@Failure		403		{object}	authsdk.APIError	"admin self-registration disabled"
//	@Failure		429		{object}	authsdk.APIError
//	@Router			/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}
	if err := validate(h.validate, req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.AuthService.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
		Role:     domain.Role(req.Role),
		Language: req.Language,
		Farmer:   farmerPatch(req.FarmerProfile),
		Vet:      vetPatch(req.VetProfile),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.signedIn(w, http.StatusCreated, "User registered successfully", res)
}

// HandleLogin godoc
//
//	@Summary		Login
//	@Description	Verifies email and password. Unknown email and wrong password give the same response.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.LoginRequest	true	"credentials"
//	@Success		200		{object}	authsdk.AuthResponse
//	@Failure		400		{object}	authsdk.APIError
//	@Failure		401		{object}	authsdk.APIError	"invalid_credentials"
//	@Failure		429		{object}	authsdk.APIError
//	@Router			/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}
	if err := validate(h.validate, req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.signedIn(w, http.StatusOK, "Login successful", res)
}

// HandleRefresh godoc
//
//	@Summary		Refresh
//	@Description	Exchanges the refresh cookie for a new access token and a rotated refresh cookie.
//	@Description	Each refresh token works once.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.TokenResponse
//	@Failure		401	{object}	authsdk.APIError	"missing_token, invalid_token"
//	@Failure		429	{object}	authsdk.APIError
//	@Router			/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.AuthService.Refresh(r.Context(), readRefreshCookie(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.rotated(w, "Token refreshed successfully", tokens)
}

// HandleLogout godoc
//
//	@Summary		Logout
//	@Description	Ends the calling device's session. Other devices stay signed in.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MessageResponse
//	@Failure		401	{object}	authsdk.APIError
//	@Router			/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	acc := identity(r)

	// The cookie is cleared whatever happens to the stored session, so a
	// storage hiccup can't leave the client holding a token it thinks is dead.
	if _, err := h.AuthService.Logout(r.Context(), acc.ID, readRefreshCookie(r)); err != nil {
		slogx.FromContext(r.Context()).Warn("logout: session not removed", "err", err)
	}

	h.Cookie.clear(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Logout successful"})
}

// HandleLogoutAll godoc
//
//	@Summary		Logout everywhere
//	@Description	Ends every session of the account.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MessageResponse
//	@Failure		401	{object}	authsdk.APIError
//	@Failure		500	{object}	authsdk.APIError
//	@Router			/auth/logout-all [post].
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if _, err := h.AuthService.LogoutAll(r.Context(), identity(r).ID); err != nil {
		writeError(w, r, err)
		return
	}

	h.Cookie.clear(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Logged out of all sessions"})
}

// HandleChangePassword godoc
//
//	@Summary		Change password
//	@Description	Replaces the password, ends every session and signs this device back in.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.ChangePasswordRequest	true	"current and new password"
//	@Success		200		{object}	authsdk.TokenResponse
//	@Failure		400		{object}	authsdk.APIError
//	@Failure		401		{object}	authsdk.APIError	"invalid_credentials"
//	@Router			/auth/password [post].
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}
	if err := validate(h.validate, req); err != nil {
		writeError(w, r, err)
		return
	}

	tokens, err := h.AuthService.ChangePassword(r.Context(), identity(r).ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.rotated(w, "Password changed successfully", tokens)
}

// HandleMe godoc
//
//	@Summary		Current account
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserResponse
//	@Failure		401	{object}	authsdk.APIError	"missing_credential, token_expired, invalid_token, account_not_found"
//	@Router			/auth/me [get].
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, authsdk.UserResponse{User: toUser(*identity(r))})
}
