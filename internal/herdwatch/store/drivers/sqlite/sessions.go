package sqlite

import (
	"context"
	"time"

	"github.com/herdwatch/herdwatch/internal/herdwatch/domain"
	"github.com/herdwatch/herdwatch/internal/herdwatch/store"
)

type sessionsRepo struct {
	db     dbtx
	atomic func(ctx context.Context, fn func(q dbtx) error) error
}

func insertSession(ctx context.Context, q dbtx, s domain.Session) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO refresh_sessions (id, account_id, token_hash, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.AccountID, s.TokenHash, toMillis(s.IssuedAt), toMillis(s.ExpiresAt),
	)
	return mapUnique(err)
}

func (r *sessionsRepo) AddSession(ctx context.Context, s domain.Session) error {
	return insertSession(ctx, r.db, s)
}

func (r *sessionsRepo) RemoveSession(ctx context.Context, accountID, tokenHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_sessions WHERE account_id = ? AND token_hash = ?`,
		accountID, tokenHash,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *sessionsRepo) RemoveAllSessions(ctx context.Context, accountID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE account_id = ?`, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) ContainsSession(ctx context.Context, accountID, tokenHash string, now time.Time) (bool, error) {
	var found int
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM refresh_sessions
			WHERE account_id = ? AND token_hash = ? AND expires_at > ?
		)`,
		accountID, tokenHash, toMillis(now),
	).Scan(&found)
	if err != nil {
		return false, err
	}
	return found == 1, nil
}

func (r *sessionsRepo) RotateSession(
	ctx context.Context,
	accountID, oldHash string,
	next domain.Session,
	now time.Time,
) error {
	return r.atomic(ctx, func(q dbtx) error {
		// The DELETE takes the write lock first, so a concurrent rotation of
		// the same token waits and then deletes nothing.
		res, err := q.ExecContext(ctx, `
			DELETE FROM refresh_sessions
			WHERE account_id = ? AND token_hash = ? AND expires_at > ?`,
			accountID, oldHash, toMillis(now),
		)
		if err != nil {
			return err
		}
		if err := requireOneRow(res); err != nil {
			return err
		}
		return insertSession(ctx, q, next)
	})
}

func (r *sessionsRepo) ListSessions(ctx context.Context, accountID string, now time.Time) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, token_hash, issued_at, expires_at
		FROM refresh_sessions
		WHERE account_id = ? AND expires_at > ?
		ORDER BY issued_at, id`,
		accountID, toMillis(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		var (
			s                 domain.Session
			issued, expiresAt int64
		)
		if err := rows.Scan(&s.ID, &s.AccountID, &s.TokenHash, &issued, &expiresAt); err != nil {
			return nil, err
		}
		s.IssuedAt = fromMillis(issued)
		s.ExpiresAt = fromMillis(expiresAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ store.Sessions = (*sessionsRepo)(nil)
