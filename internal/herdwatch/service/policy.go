package service

import (
	"slices"

	"github.com/herdwatch/herdwatch/internal/herdwatch/domain"
)

// Authorize passes when identity holds one of allowed. A nil identity means
// authentication never ran, which is ErrUnauthenticated rather than
// ErrForbidden.
func Authorize(identity *domain.Account, allowed ...domain.Role) error {
	if identity == nil {
		return ErrUnauthenticated
	}
	if !slices.Contains(allowed, identity.Role()) {
		return ErrForbidden
	}
	return nil
}

// RequireVerifiedProfessional passes only for a vet whose verification has
// been approved by an administrator.
func RequireVerifiedProfessional(identity *domain.Account) error {
	if identity == nil {
		return ErrUnauthenticated
	}
	if !identity.IsVerifiedVet() {
		return ErrForbidden
	}
	return nil
}
