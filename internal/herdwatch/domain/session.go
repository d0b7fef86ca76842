package domain

import "time"

// Session is the persisted shadow of one refresh token. Only the token's
// fingerprint is stored, never the token itself.
type Session struct {
	ID        string
	AccountID string
	TokenHash string // base64url SHA-256 of the refresh token
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session has passed its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// AccountFilter narrows account listings.
type AccountFilter struct {
	Role   Role // empty means any
	Offset int
	Limit  int
}
