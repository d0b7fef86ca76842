package domain

import "time"

// TokenPair is what a successful register, login, refresh or password change
// hands back. The refresh token travels in a cookie, never in the body.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
