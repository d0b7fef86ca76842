package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/herdwatch/herdwatch/internal/herdwatch/domain"
	"github.com/herdwatch/herdwatch/internal/herdwatch/store"
	"github.com/herdwatch/herdwatch/pkg/cryptox"
	"github.com/herdwatch/herdwatch/pkg/idx"
	"github.com/herdwatch/herdwatch/pkg/slogx"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// AccountService covers profile reads and writes and the admin views.
type AccountService struct {
	Store        store.Store
	Hasher       *cryptox.PasswordHasher
	StoreTimeout time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ListQuery selects one page of accounts. Page is 1-based.
type ListQuery struct {
	Role  string
	Page  int
	Limit int
}

// AccountPage is one page of a listing.
type AccountPage struct {
	Accounts []domain.Account
	Page     int
	Pages    int
	Total    int
}

// ProfileUpdate holds the self-editable fields. Nil means unchanged. A patch
// for the other role's profile is ignored.
type ProfileUpdate struct {
	FullName *string
	Phone    *string
	Language *string
	Farmer   *domain.FarmerProfilePatch
	Vet      *domain.VetProfilePatch
}

// GetAccount is the admin lookup. A missing id is ErrUserNotFound.
func (s *AccountService) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()

	acc, err := s.Store.Accounts().GetAccountByID(sctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, ErrUserNotFound
		}
		return domain.Account{}, storageErr(err)
	}
	return acc.Sanitized(), nil
}

// ListAccounts returns accounts newest first.
func (s *AccountService) ListAccounts(ctx context.Context, q ListQuery) (AccountPage, error) {
	var role domain.Role
	if q.Role != "" {
		r, err := domain.ParseRole(q.Role)
		if err != nil {
			return AccountPage{}, invalidField("role", "must be one of farmer, vet, admin")
		}
		role = r
	}
	return s.list(ctx, role, q.Page, q.Limit)
}

// ListFarmers is the directory verified vets may browse.
func (s *AccountService) ListFarmers(ctx context.Context, page, limit int) (AccountPage, error) {
	return s.list(ctx, domain.RoleFarmer, page, limit)
}

func (s *AccountService) list(ctx context.Context, role domain.Role, page, limit int) (AccountPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	limit = min(limit, MaxPageLimit)

	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()

	accounts, total, err := s.Store.Accounts().ListAccounts(sctx, domain.AccountFilter{
		Role:   role,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return AccountPage{}, storageErr(err)
	}

	for i := range accounts {
		accounts[i] = accounts[i].Sanitized()
	}

	return AccountPage{
		Accounts: accounts,
		Page:     page,
		Pages:    (total + limit - 1) / limit,
		Total:    total,
	}, nil
}

// UpdateProfile applies a self-service update to the caller's own account.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID string, upd ProfileUpdate) (domain.Account, error) {
	if upd.Language != nil && !domain.IsSupportedLanguage(*upd.Language) {
		return domain.Account{}, invalidField("language", "is not supported")
	}

	var out domain.Account
	err := s.mutate(ctx, accountID, func(acc *domain.Account) error {
		if upd.FullName != nil {
			acc.FullName = strings.TrimSpace(*upd.FullName)
		}
		if upd.Phone != nil {
			acc.Phone = strings.TrimSpace(*upd.Phone)
		}
		if upd.Language != nil {
			acc.Language = *upd.Language
		}

		switch p := acc.Profile.(type) {
		case domain.FarmerProfile:
			if upd.Farmer != nil {
				acc.Profile = p.Apply(*upd.Farmer)
			}
		case domain.VetProfile:
			if upd.Vet != nil {
				acc.Profile = p.Apply(*upd.Vet)
			}
		}
		out = *acc
		return nil
	})
	if errors.Is(err, ErrUserNotFound) {
		return domain.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return domain.Account{}, err
	}
	return out.Sanitized(), nil
}

// SetVetVerification is the administrative approval of a vet.
func (s *AccountService) SetVetVerification(ctx context.Context, accountID string, verified bool) (domain.Account, error) {
	var out domain.Account
	err := s.mutate(ctx, accountID, func(acc *domain.Account) error {
		vp, ok := acc.Profile.(domain.VetProfile)
		if !ok {
			return invalidField("id", "account is not a vet")
		}
		vp.Verified = verified
		acc.Profile = vp
		out = *acc
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}

	slogx.FromContext(ctx).Info("vet verification changed",
		slog.String("account_id", accountID), slog.Bool("verified", verified))
	return out.Sanitized(), nil
}

// mutate loads, changes and writes an account in one transaction.
func (s *AccountService) mutate(ctx context.Context, accountID string, fn func(acc *domain.Account) error) error {
	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()

	var domainErr error
	err := s.Store.WithTx(sctx, func(tx store.Tx) error {
		acc, err := tx.Accounts().GetAccountByID(sctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				domainErr = ErrUserNotFound
				return domainErr
			}
			return err
		}

		if err := fn(&acc); err != nil {
			domainErr = err
			return err
		}

		acc.UpdatedAt = s.now()
		return tx.Accounts().UpdateAccount(sctx, acc)
	})
	if domainErr != nil {
		return domainErr
	}
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// BootstrapAdmin creates an administrator when the email is free. It
// reports whether an account was created.
func (s *AccountService) BootstrapAdmin(ctx context.Context, email, password string) (bool, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return false, invalidField("email", "bootstrap admin needs email and password")
	}

	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()

	_, err := s.Store.Accounts().GetAccountByEmail(sctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, storageErr(err)
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return false, err
	}

	now := s.now()
	acc := domain.Account{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		PasswordHash: hash,
		FullName:     "Administrator",
		Language:     domain.DefaultLanguage,
		Profile:      domain.AdminProfile{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Accounts().CreateAccount(sctx, acc); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return false, nil
		}
		return false, storageErr(err)
	}

	slogx.FromContext(ctx).Info("bootstrap admin created", slog.String("account_id", acc.ID))
	return true, nil
}
