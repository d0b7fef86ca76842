package httpx

import "context"

type ctxKey string

const ctxKeyAccountID ctxKey = "account_id"

// WithAccountID records the authenticated account id on the context.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, ctxKeyAccountID, accountID)
}

// AccountIDFromContext returns the authenticated account id, or "".
func AccountIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyAccountID).(string); ok {
		return v
	}
	return ""
}
