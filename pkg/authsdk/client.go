package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// RefreshCookieName is the cookie the server stores the refresh token in.
const RefreshCookieName = "refreshToken"

// SDKClient is a client for the HerdWatch API.
// It provides access to unauthenticated operations and creates authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new HerdWatch API client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates an account and returns a Session for it.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*Session, *AuthResponse, error) {
	return c.authenticate(ctx, "/auth/register", req, http.StatusCreated)
}

// Login authenticates with email and password and returns a new Session.
// Each call is a separate device as far as the server is concerned.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*Session, *AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", LoginRequest{Email: email, Password: password}, http.StatusOK)
}

func (c *SDKClient) authenticate(ctx context.Context, path string, body any, status int) (*Session, *AuthResponse, error) {
	hc, err := c.cookieClient()
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.doRequestWith(ctx, hc, http.MethodPost, path, body, nil)
	if err != nil {
		return nil, nil, err
	}

	var authResp AuthResponse
	if err := decodeJSON(resp, &authResp, status); err != nil {
		return nil, nil, err
	}

	return newSession(c, hc, authResp.AccessToken, authResp.ExpiresIn), &authResp, nil
}

// RefreshWithToken presents refreshToken to the refresh endpoint without any
// cookie state and returns the new access token and the rotated refresh token.
func (c *SDKClient) RefreshWithToken(ctx context.Context, refreshToken string) (*TokenResponse, string, error) {
	headers := map[string]string{}
	if refreshToken != "" {
		headers["Cookie"] = (&http.Cookie{Name: RefreshCookieName, Value: refreshToken}).String()
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/refresh", nil, headers)
	if err != nil {
		return nil, "", err
	}

	var next string
	for _, ck := range resp.Cookies() {
		if ck.Name == RefreshCookieName {
			next = ck.Value
		}
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, "", err
	}

	return &tokenResp, next, nil
}

// NewSessionFromTokens creates a Session from tokens obtained elsewhere.
// The refresh token is placed in the Session's cookie jar so auto-refresh
// keeps working.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, expiresIn int) (*Session, error) {
	hc, err := c.cookieClient()
	if err != nil {
		return nil, err
	}

	s := newSession(c, hc, accessToken, expiresIn)
	if refreshToken != "" {
		if err := s.setRefreshToken(refreshToken); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// cookieClient returns a copy of HTTPClient with its own cookie jar.
func (c *SDKClient) cookieClient() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	hc := &http.Client{Jar: jar}
	if c.HTTPClient != nil {
		hc.Transport = c.HTTPClient.Transport
		hc.Timeout = c.HTTPClient.Timeout
		hc.CheckRedirect = c.HTTPClient.CheckRedirect
	}
	return hc, nil
}
