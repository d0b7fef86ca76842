package domain

import (
	"errors"
	"slices"
	"strings"
)

// Role is the fixed set of account roles. A vet is the "verified
// professional" role once an administrator has set its verified flag.
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleVet    Role = "vet"
	RoleAdmin  Role = "admin"
)

var ErrUnknownRole = errors.New("domain: unknown role")

// Roles lists every valid role.
var Roles = []Role{RoleFarmer, RoleVet, RoleAdmin}

func (r Role) String() string { return string(r) }

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return slices.Contains(Roles, r) }

// ParseRole is case-insensitive and ignores surrounding whitespace.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

// DefaultLanguage is used when registration doesn't specify one.
const DefaultLanguage = "en"

// Languages are the UI languages an account may select.
var Languages = []string{
	"en", "hi", "bn", "te", "mr", "gu", "kn", "ml",
	"ta", "pa", "or", "as", "ne", "ur", "sd", "ks",
}

func IsSupportedLanguage(lang string) bool {
	return slices.Contains(Languages, lang)
}
