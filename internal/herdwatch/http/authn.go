package http

import (
	"context"
	"net/http"

	"github.com/herdwatch/herdwatch/internal/herdwatch/domain"
	"github.com/herdwatch/herdwatch/internal/herdwatch/service"
	"github.com/herdwatch/herdwatch/pkg/httpx"
	"github.com/herdwatch/herdwatch/pkg/slogx"
)

type identityKey struct{}

// AuthnMiddleware resolves the bearer token through the gate and stores the
// account on the request context. It never checks roles.
func AuthnMiddleware(gate *service.RequestGate) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acc, err := gate.Authenticate(r.Context(), httpx.ExtractBearer(r))
			if err != nil {
				writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, &acc)
			ctx = httpx.WithAccountID(ctx, acc.ID)
			ctx = slogx.WithAttrs(ctx, "account_id", acc.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// identity returns the authenticated account, or nil when the request did
// not pass through AuthnMiddleware.
func identity(r *http.Request) *domain.Account {
	acc, _ := r.Context().Value(identityKey{}).(*domain.Account)
	return acc
}
