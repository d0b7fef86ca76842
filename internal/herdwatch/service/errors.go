package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

var (
	ErrValidation         = errors.New("validation_failed")
	ErrDuplicateAccount   = errors.New("duplicate_account")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrMissingCredential  = errors.New("missing_credential")
	ErrMissingToken       = errors.New("missing_token")
	ErrTokenExpired       = errors.New("token_expired")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrAccountNotFound    = errors.New("account_not_found")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrUserNotFound       = errors.New("user_not_found")

	// ErrStorageUnavailable wraps any persistence failure that isn't a
	// domain outcome. It must never turn into a 401 or 403.
	ErrStorageUnavailable = errors.New("storage_unavailable")
)

// ValidationError is an ErrValidation with per-field messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalidField(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

// errCode is the metric label for err.
func errCode(err error) string {
	for _, e := range []error{
		ErrValidation, ErrDuplicateAccount, ErrInvalidCredentials, ErrMissingCredential,
		ErrMissingToken, ErrTokenExpired, ErrInvalidToken, ErrAccountNotFound,
		ErrUnauthenticated, ErrForbidden, ErrUserNotFound, ErrStorageUnavailable,
	} {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return "error"
}

// withStoreTimeout bounds a persistence call. A zero timeout means none.
func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
