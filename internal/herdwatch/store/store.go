package store

import (
	"context"
	"errors"
	"time"

	"github.com/herdwatch/herdwatch/internal/herdwatch/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories so callers can't start a transaction from inside
// another one by accident.
type Store interface {
	Accounts() Accounts
	Sessions() Sessions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// CreateAccount inserts a new account. Returns ErrAlreadyExists when the
	// email is taken.
	CreateAccount(ctx context.Context, a domain.Account) error

	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByEmail expects an already-normalized email.
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	// UpdateAccount writes the mutable profile fields (name, phone, language,
	// profile payload) and updated_at. Email and role are never changed here.
	UpdateAccount(ctx context.Context, a domain.Account) error

	// UpdatePasswordHash sets the password hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, accountID, hash string, at time.Time) error

	// ListAccounts returns one page, newest first, plus the total number of
	// accounts matching the filter.
	ListAccounts(ctx context.Context, f domain.AccountFilter) ([]domain.Account, int, error)

	// DeleteAccount cascades to the account's sessions.
	DeleteAccount(ctx context.Context, accountID string) error
}

// Sessions persists refresh-token shadows. Implementations must treat an
// expired session as absent even if it has not been deleted yet.
type Sessions interface {
	// AddSession stores a new shadow. Distinct tokens for the same account
	// coexist.
	AddSession(ctx context.Context, s domain.Session) error

	// RemoveSession deletes one shadow and reports whether it existed.
	RemoveSession(ctx context.Context, accountID, tokenHash string) (bool, error)

	// RemoveAllSessions deletes every shadow of the account.
	RemoveAllSessions(ctx context.Context, accountID string) (int64, error)

	// ContainsSession reports whether an unexpired shadow exists at now.
	ContainsSession(ctx context.Context, accountID, tokenHash string, now time.Time) (bool, error)

	// RotateSession atomically removes the unexpired shadow oldHash and adds
	// next. It returns ErrNotFound without adding anything if oldHash is
	// absent or expired, so of two concurrent rotations of the same token
	// at most one succeeds.
	RotateSession(ctx context.Context, accountID, oldHash string, next domain.Session, now time.Time) error

	// ListSessions returns the unexpired shadows of an account, oldest first.
	ListSessions(ctx context.Context, accountID string, now time.Time) ([]domain.Session, error)

	// DeleteExpiredSessions is housekeeping. It returns the number removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Pinger is implemented by anything the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}
