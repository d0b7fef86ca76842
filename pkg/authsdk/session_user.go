package authsdk

import (
	"context"
	"net/http"
)

// Me returns the account behind the session.
func (s *Session) Me(ctx context.Context) (*User, error) {
	return s.getUser(ctx, "/auth/me")
}

// UpdateMe applies a partial profile update and returns the updated account.
func (s *Session) UpdateMe(ctx context.Context, req UpdateProfileRequest) (*User, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPut, "/users/me", req)
	if err != nil {
		return nil, err
	}

	var userResp UserResponse
	if err := decodeJSON(resp, &userResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &userResp.User, nil
}

// Logout ends this device's session. The server clears the refresh cookie.
func (s *Session) Logout(ctx context.Context) error {
	return s.postMessage(ctx, "/auth/logout", nil)
}

// LogoutAll ends every session of the account, this one included.
func (s *Session) LogoutAll(ctx context.Context) error {
	return s.postMessage(ctx, "/auth/logout-all", nil)
}

// ChangePassword replaces the password. Every other session of the account
// is ended; this Session receives a fresh token pair.
func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/auth/password", ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     next,
	})
	if err != nil {
		return err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return err
	}

	s.mu.Lock()
	s.setAccessTokenLocked(tokenResp.AccessToken, tokenResp.ExpiresIn)
	s.mu.Unlock()
	return nil
}

// ListFarmers lists farmer accounts. Only verified vets may call it.
func (s *Session) ListFarmers(ctx context.Context, page, limit int) (*UsersResponse, error) {
	return s.listUsers(ctx, "/vets/farmers", "", page, limit)
}

func (s *Session) getUser(ctx context.Context, path string) (*User, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var userResp UserResponse
	if err := decodeJSON(resp, &userResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &userResp.User, nil
}

func (s *Session) postMessage(ctx context.Context, path string, body any) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}

	var msg MessageResponse
	return decodeJSON(resp, &msg, http.StatusOK)
}
