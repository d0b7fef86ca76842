package service

import (
	"context"
	"errors"
	"time"

	"github.com/herdwatch/herdwatch/internal/herdwatch/domain"
	"github.com/herdwatch/herdwatch/internal/herdwatch/metrics"
	"github.com/herdwatch/herdwatch/internal/herdwatch/store"
	"github.com/herdwatch/herdwatch/pkg/jwtx"
)

// RequestGate resolves a bearer access token to an account. It only reads,
// so callers may retry it freely.
type RequestGate struct {
	Access       jwtx.Verifier
	Store        store.Store
	Metrics      *metrics.Metrics
	StoreTimeout time.Duration
}

// Authenticate verifies token and loads its subject. The returned account
// has its password hash stripped.
func (g *RequestGate) Authenticate(ctx context.Context, token string) (domain.Account, error) {
	acc, err := g.authenticate(ctx, token)
	if err != nil {
		g.Metrics.AuthEvent(metrics.EventAuthenticate, errCode(err))
		return domain.Account{}, err
	}
	return acc, nil
}

func (g *RequestGate) authenticate(ctx context.Context, token string) (domain.Account, error) {
	if token == "" {
		return domain.Account{}, ErrMissingCredential
	}

	claims, err := g.Access.Verify(token)
	if err != nil {
		// Expiry is reported on its own so clients know to refresh
		// instead of logging in again. It is only reachable with a valid
		// signature.
		if errors.Is(err, jwtx.ErrExpired) {
			return domain.Account{}, ErrTokenExpired
		}
		return domain.Account{}, errors.Join(ErrInvalidToken, err)
	}
	if err := claims.ValidateType(jwtx.TypeAccess); err != nil {
		return domain.Account{}, errors.Join(ErrInvalidToken, err)
	}

	sctx, cancel := withStoreTimeout(ctx, g.StoreTimeout)
	defer cancel()
	acc, err := g.Store.Accounts().GetAccountByID(sctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, storageErr(err)
	}

	return acc.Sanitized(), nil
}
