package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/herdwatch/herdwatch/internal/herdwatch/domain"
	"github.com/herdwatch/herdwatch/internal/herdwatch/store"
)

const accountColumns = `id, email, password_hash, full_name, phone, role, language, profile, created_at, updated_at`

type accountsRepo struct {
	db dbtx
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		a         domain.Account
		role      string
		profile   []byte
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.FullName, &a.Phone,
		&role, &a.Language, &profile, &createdAt, &updatedAt,
	); err != nil {
		return domain.Account{}, err
	}

	p, err := domain.UnmarshalProfile(domain.Role(role), profile)
	if err != nil {
		return domain.Account{}, err
	}
	a.Profile = p
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	profile, err := domain.MarshalProfile(a.Profile)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.PasswordHash, a.FullName, a.Phone,
		a.Role().String(), a.Language, string(profile),
		toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	)
	return mapUnique(err)
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) UpdateAccount(ctx context.Context, a domain.Account) error {
	profile, err := domain.MarshalProfile(a.Profile)
	if err != nil {
		return err
	}

	// role is part of the WHERE clause so a profile of another variant can
	// never be written over the stored one.
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET full_name = ?, phone = ?, language = ?, profile = ?, updated_at = ?
		WHERE id = ? AND role = ?`,
		a.FullName, a.Phone, a.Language, string(profile), toMillis(a.UpdatedAt),
		a.ID, a.Role().String(),
	)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, accountID, hash string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, toMillis(at), accountID,
	)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *accountsRepo) ListAccounts(ctx context.Context, f domain.AccountFilter) ([]domain.Account, int, error) {
	where, args := "", []any{}
	if f.Role != "" {
		where = ` WHERE role = ?`
		args = append(args, f.Role.String())
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts`+where+
			` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, max(f.Offset, 0))...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]domain.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *accountsRepo) DeleteAccount(ctx context.Context, accountID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, accountID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
