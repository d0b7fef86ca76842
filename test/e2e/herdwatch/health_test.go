package herdwatch_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/herdwatch/herdwatch/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	client := setupService(t)

	live, err := client.GetLiveness(t.Context())
	assertHealthy(t, live, err)

	ready, err := client.GetReadiness(t.Context())
	assertHealthy(t, ready, err)
	require.Equal(t, "ok", ready.Checks.Database)
}

// TestRateLimitLogin expects the strict limit to trip on repeated logins.
func TestRateLimitLogin(t *testing.T) {
	client := setupServiceWithDefaultRateLimits(t)
	ctx := t.Context()

	var limited bool
	for range 12 {
		_, _, err := client.Login(ctx, "x@x.com", "wrong")
		var apiErr *authsdk.APIError
		require.True(t, errors.As(err, &apiErr))
		if apiErr.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
		require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
	}
	require.True(t, limited, "login should be rate limited")
}
