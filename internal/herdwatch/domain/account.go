package domain

import (
	"strings"
	"time"
)

// Account is an identity record. Its role is carried by Profile.
type Account struct {
	ID           string
	Email        string // normalized, unique
	PasswordHash string // argon2id PHC string
	FullName     string
	Phone        string
	Language     string
	Profile      Profile
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role returns the role implied by the account's profile.
func (a Account) Role() Role {
	if a.Profile == nil {
		return ""
	}
	return a.Profile.Role()
}

// IsVerifiedVet reports whether the account is a vet whose verification has
// been approved.
func (a Account) IsVerifiedVet() bool {
	vp, ok := a.Profile.(VetProfile)
	return ok && vp.Verified
}

// Sanitized returns a copy safe to hand to request handlers.
func (a Account) Sanitized() Account {
	a.PasswordHash = ""
	return a
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
