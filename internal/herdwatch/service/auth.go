package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/herdwatch/herdwatch/internal/herdwatch/domain"
	"github.com/herdwatch/herdwatch/internal/herdwatch/metrics"
	"github.com/herdwatch/herdwatch/internal/herdwatch/store"
	"github.com/herdwatch/herdwatch/pkg/cryptox"
	"github.com/herdwatch/herdwatch/pkg/idx"
	"github.com/herdwatch/herdwatch/pkg/jwtx"
	"github.com/herdwatch/herdwatch/pkg/slogx"
)

// AuthService issues, rotates and revokes credentials. AccessCodec and RefreshCodec
// must be codecs built with different secrets.
type AuthService struct {
	Store        store.Store    // accounts
	Sessions     store.Sessions // refresh-token shadows, sqlite or redis
	Hasher       *cryptox.PasswordHasher
	AccessCodec  *jwtx.Codec
	RefreshCodec *jwtx.Codec
	Metrics      *metrics.Metrics

	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	StoreTimeout     time.Duration
	AllowAdminSignup bool

	dummyOnce sync.Once
	dummyHash string
}

// RegisterInput is a self-registration request. Only the profile patch that
// matches Role is used.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
	Role     domain.Role
	Language string
	Farmer   *domain.FarmerProfilePatch
	Vet      *domain.VetProfilePatch
}

// AuthResult is an account together with its freshly issued tokens.
type AuthResult struct {
	Account domain.Account
	Tokens  domain.TokenPair
}

func (s *AuthService) now() time.Time { return s.AccessCodec.Now().UTC() }

func (s *AuthService) accessTTL() time.Duration {
	if s.AccessTTL <= 0 {
		return jwtx.DefaultAccessTokenTTL
	}
	return s.AccessTTL
}

func (s *AuthService) refreshTTL() time.Duration {
	if s.RefreshTTL <= 0 || s.RefreshTTL > jwtx.RefreshTokenTTL {
		return jwtx.RefreshTokenTTL
	}
	return s.RefreshTTL
}

func (s *AuthService) record(event string, err error) {
	if err == nil {
		s.Metrics.AuthEvent(event, metrics.OutcomeSuccess)
		return
	}
	s.Metrics.AuthEvent(event, errCode(err))
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (res AuthResult, err error) {
	defer func() { s.record(metrics.EventRegister, err) }()
	l := slogx.FromContext(ctx)

	acc, err := s.newAccount(in)
	if err != nil {
		return AuthResult{}, err
	}

	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	err = s.Store.Accounts().CreateAccount(sctx, acc)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return AuthResult{}, ErrDuplicateAccount
		}
		return AuthResult{}, storageErr(err)
	}

	tokens, err := s.issue(ctx, acc.ID)
	if err != nil {
		return AuthResult{}, err
	}

	l.Info("account registered", slog.String("account_id", acc.ID), slog.String("role", acc.Role().String()))
	return AuthResult{Account: acc.Sanitized(), Tokens: tokens}, nil
}

func (s *AuthService) newAccount(in RegisterInput) (domain.Account, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" {
		return domain.Account{}, invalidField("email", "is required")
	}
	if in.Password == "" {
		return domain.Account{}, invalidField("password", "is required")
	}
	if !in.Role.Valid() {
		return domain.Account{}, invalidField("role", "must be one of farmer, vet, admin")
	}
	if in.Role == domain.RoleAdmin && !s.AllowAdminSignup {
		return domain.Account{}, ErrForbidden
	}

	lang := in.Language
	if lang == "" {
		lang = domain.DefaultLanguage
	}
	if !domain.IsSupportedLanguage(lang) {
		return domain.Account{}, invalidField("language", "is not supported")
	}

	profile, err := domain.NewProfile(in.Role)
	if err != nil {
		return domain.Account{}, invalidField("role", err.Error())
	}
	switch p := profile.(type) {
	case domain.FarmerProfile:
		if in.Farmer != nil {
			profile = p.Apply(*in.Farmer)
		}
	case domain.VetProfile:
		// Vets always start unverified, whatever the client sent.
		if in.Vet != nil {
			profile = p.Apply(*in.Vet)
		}
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.Account{}, err
	}

	now := s.now()
	return domain.Account{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        strings.TrimSpace(in.Phone),
		Language:     lang,
		Profile:      profile,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Login verifies the password and signs the account in. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (res AuthResult, err error) {
	defer func() { s.record(metrics.EventLogin, err) }()
	l := slogx.FromContext(ctx)

	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	acc, err := s.Store.Accounts().GetAccountByEmail(sctx, domain.NormalizeEmail(email))
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn the same hashing time as a real verification.
			_ = s.Hasher.Verify(password, s.dummy())
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, storageErr(err)
	}

	if err := s.Hasher.Verify(password, acc.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Error("stored password hash unusable", slog.String("account_id", acc.ID), slog.Any("error", err))
		}
		return AuthResult{}, ErrInvalidCredentials
	}

	tokens, err := s.issue(ctx, acc.ID)
	if err != nil {
		return AuthResult{}, err
	}

	l.Info("login succeeded", slog.String("account_id", acc.ID))
	return AuthResult{Account: acc.Sanitized(), Tokens: tokens}, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.Hasher.Hash(cryptox.MustGenerateToken(cryptox.TokenSize128))
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// Refresh rotates a refresh token: the presented one stops working and a new
// pair is returned. Every failure short of storage is ErrInvalidToken.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (tokens domain.TokenPair, err error) {
	defer func() { s.record(metrics.EventRefresh, err) }()
	l := slogx.FromContext(ctx)

	if refreshToken == "" {
		return domain.TokenPair{}, ErrMissingToken
	}

	claims, err := s.RefreshCodec.Verify(refreshToken)
	if err != nil {
		return domain.TokenPair{}, errors.Join(ErrInvalidToken, err)
	}
	if err := claims.ValidateType(jwtx.TypeRefresh); err != nil {
		return domain.TokenPair{}, errors.Join(ErrInvalidToken, err)
	}

	accountID := claims.Subject
	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	_, err = s.Store.Accounts().GetAccountByID(sctx, accountID)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidToken
		}
		return domain.TokenPair{}, storageErr(err)
	}

	now := s.now()
	tokens, next, err := s.mint(accountID, now)
	if err != nil {
		return domain.TokenPair{}, err
	}

	sctx, cancel = withStoreTimeout(ctx, s.StoreTimeout)
	err = s.Sessions.RotateSession(sctx, accountID, cryptox.FingerprintToken(refreshToken), next, now)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Warn("refresh token not in session store", slog.String("account_id", accountID))
			return domain.TokenPair{}, ErrInvalidToken
		}
		return domain.TokenPair{}, storageErr(err)
	}

	return tokens, nil
}

// Logout removes the shadow of the presented refresh token only. Sessions
// on other devices stay valid. A token that belongs to someone else, or to
// nobody, is ignored.
func (s *AuthService) Logout(ctx context.Context, accountID, refreshToken string) (removed bool, err error) {
	defer func() { s.record(metrics.EventLogout, err) }()

	if refreshToken == "" {
		return false, nil
	}

	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()
	removed, err = s.Sessions.RemoveSession(sctx, accountID, cryptox.FingerprintToken(refreshToken))
	if err != nil {
		return false, storageErr(err)
	}
	return removed, nil
}

// LogoutAll revokes every refresh token of the account.
func (s *AuthService) LogoutAll(ctx context.Context, accountID string) (n int64, err error) {
	defer func() { s.record(metrics.EventLogoutAll, err) }()

	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()
	n, err = s.Sessions.RemoveAllSessions(sctx, accountID)
	if err != nil {
		return 0, storageErr(err)
	}
	slogx.FromContext(ctx).Info("all sessions revoked", slog.String("account_id", accountID), slog.Int64("count", n))
	return n, nil
}

// ChangePassword verifies the current password, revokes every session,
// stores the new hash and signs the calling device back in.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, current, next string) (tokens domain.TokenPair, err error) {
	defer func() { s.record(metrics.EventPasswordChange, err) }()

	if next == "" {
		return domain.TokenPair{}, invalidField("newPassword", "is required")
	}

	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	acc, err := s.Store.Accounts().GetAccountByID(sctx, accountID)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrAccountNotFound
		}
		return domain.TokenPair{}, storageErr(err)
	}

	if err := s.Hasher.Verify(current, acc.PasswordHash); err != nil {
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	hash, err := s.Hasher.Hash(next)
	if err != nil {
		return domain.TokenPair{}, err
	}

	// Revoke first so the new hash never goes live next to old sessions.
	sctx, cancel = withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()
	if _, err := s.Sessions.RemoveAllSessions(sctx, accountID); err != nil {
		return domain.TokenPair{}, storageErr(err)
	}
	if err := s.Store.Accounts().UpdatePasswordHash(sctx, accountID, hash, s.now()); err != nil {
		return domain.TokenPair{}, storageErr(err)
	}

	slogx.FromContext(ctx).Info("password changed", slog.String("account_id", accountID))
	return s.issue(ctx, accountID)
}

// issue mints a pair and persists the refresh shadow.
func (s *AuthService) issue(ctx context.Context, accountID string) (domain.TokenPair, error) {
	tokens, sess, err := s.mint(accountID, s.now())
	if err != nil {
		return domain.TokenPair{}, err
	}

	sctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()
	if err := s.Sessions.AddSession(sctx, sess); err != nil {
		return domain.TokenPair{}, storageErr(err)
	}
	return tokens, nil
}

// mint signs an access and a refresh token and builds the matching shadow.
func (s *AuthService) mint(accountID string, now time.Time) (domain.TokenPair, domain.Session, error) {
	access, accessClaims, err := s.AccessCodec.Mint(accountID, jwtx.TypeAccess, s.accessTTL())
	if err != nil {
		return domain.TokenPair{}, domain.Session{}, err
	}
	refresh, refreshClaims, err := s.RefreshCodec.Mint(accountID, jwtx.TypeRefresh, s.refreshTTL())
	if err != nil {
		return domain.TokenPair{}, domain.Session{}, err
	}

	expiresAt := refreshClaims.ExpiresAt.Time
	sess := domain.Session{
		ID:        idx.NewAt(now).String(),
		AccountID: accountID,
		TokenHash: cryptox.FingerprintToken(refresh),
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}

	return domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshToken:     refresh,
		RefreshExpiresAt: expiresAt,
	}, sess, nil
}
