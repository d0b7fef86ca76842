package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ListUsers lists accounts newest first. role may be empty; page and limit
// of zero use the server defaults. Requires the admin role.
func (s *Session) ListUsers(ctx context.Context, role string, page, limit int) (*UsersResponse, error) {
	return s.listUsers(ctx, "/users", role, page, limit)
}

// GetUser fetches a single account. Requires the admin role.
func (s *Session) GetUser(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, "/users/"+url.PathEscape(id))
}

// SetVetVerification sets the verified flag on a vet account. Requires the
// admin role.
func (s *Session) SetVetVerification(ctx context.Context, id string, verified bool) (*User, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPut, "/users/"+url.PathEscape(id)+"/verification",
		VerificationRequest{Verified: verified})
	if err != nil {
		return nil, err
	}

	var userResp UserResponse
	if err := decodeJSON(resp, &userResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &userResp.User, nil
}

func (s *Session) listUsers(ctx context.Context, path, role string, page, limit int) (*UsersResponse, error) {
	q := url.Values{}
	if role != "" {
		q.Set("role", role)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := s.doAuthRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var users UsersResponse
	if err := decodeJSON(resp, &users, http.StatusOK); err != nil {
		return nil, err
	}
	return &users, nil
}
