package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// refreshBuffer is how long before expiry a Session refreshes its access token.
const refreshBuffer = 30 * time.Second

// ErrNoRefreshToken is returned when a Session has to refresh but its cookie
// jar holds no refresh token.
var ErrNoRefreshToken = errors.New("authsdk: no refresh token available")

// Session is one signed-in device. It owns a cookie jar holding the refresh
// token and refreshes the access token automatically.
type Session struct {
	client *SDKClient
	http   *http.Client

	mu          sync.RWMutex
	accessToken string
	expiresAt   time.Time
}

func newSession(client *SDKClient, hc *http.Client, accessToken string, expiresIn int) *Session {
	return &Session{
		client:      client,
		http:        hc,
		accessToken: accessToken,
		expiresAt:   time.Now().Add(time.Duration(expiresIn)*time.Second - refreshBuffer),
	}
}

// getValidToken returns a valid access token, refreshing if expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	if _, err := s.refreshLocked(ctx); err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	return s.accessToken, nil
}

// Refresh rotates the refresh token and obtains a new access token now.
func (s *Session) Refresh(ctx context.Context) (*TokenResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) (*TokenResponse, error) {
	if s.RefreshToken() == "" {
		return nil, ErrNoRefreshToken
	}

	resp, err := s.client.doRequestWith(ctx, s.http, http.MethodPost, "/auth/refresh", nil, nil)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}

	s.setAccessTokenLocked(tokenResp.AccessToken, tokenResp.ExpiresIn)
	return &tokenResp, nil
}

func (s *Session) setAccessTokenLocked(token string, expiresIn int) {
	s.accessToken = token
	s.expiresAt = time.Now().Add(time.Duration(expiresIn)*time.Second - refreshBuffer)
}

// AccessToken returns the current access token without checking expiration.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the refresh token currently held in the cookie jar,
// or "" if there is none.
func (s *Session) RefreshToken() string {
	u, err := s.refreshURL()
	if err != nil || s.http.Jar == nil {
		return ""
	}
	for _, ck := range s.http.Jar.Cookies(u) {
		if ck.Name == RefreshCookieName {
			return ck.Value
		}
	}
	return ""
}

func (s *Session) setRefreshToken(token string) error {
	u, err := s.refreshURL()
	if err != nil {
		return err
	}
	s.http.Jar.SetCookies(u, []*http.Cookie{{Name: RefreshCookieName, Value: token, Path: "/auth"}})
	return nil
}

func (s *Session) refreshURL() (*url.URL, error) {
	return url.Parse(s.client.url("/auth/refresh"))
}
