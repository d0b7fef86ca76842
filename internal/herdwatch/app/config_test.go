package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"JWT_ISSUER", "JWT_EXPIRES_IN", "SESSION_BACKEND", "PORT", "ALLOW_ADMIN_SIGNUP", "STORE_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	require.Equal(t, "herdwatch", cfg.Issuer)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.Equal(t, SessionBackendSQLite, cfg.SessionBackend)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 3*time.Second, cfg.StoreTimeout)
	require.False(t, cfg.AllowAdminSignup)
	require.False(t, cfg.Production())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_EXPIRES_IN", "30")
	t.Setenv("SESSION_BACKEND", "Redis")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("ALLOW_ADMIN_SIGNUP", "true")
	t.Setenv("HOUSEKEEPING_INTERVAL", "10m")
	t.Setenv("ENV", "production")
	t.Setenv("PORT", "not-a-port")

	cfg := LoadConfig()
	require.Equal(t, 30*time.Minute, cfg.AccessTTL)
	require.Equal(t, SessionBackendRedis, cfg.SessionBackend)
	require.Equal(t, 2, cfg.RedisDB)
	require.True(t, cfg.AllowAdminSignup)
	require.Equal(t, 10*time.Minute, cfg.HousekeepingInterval)
	require.True(t, cfg.Production())
	require.Equal(t, 8080, cfg.Port)
}

func TestValidate(t *testing.T) {
	ok := Config{AccessSecret: "a", RefreshSecret: "b", SessionBackend: SessionBackendSQLite}
	require.NoError(t, ok.Validate())

	missing := ok
	missing.RefreshSecret = ""
	require.ErrorIs(t, missing.Validate(), ErrMissingSecret)

	shared := ok
	shared.RefreshSecret = "a"
	require.ErrorIs(t, shared.Validate(), ErrSharedSecret)

	backend := ok
	backend.SessionBackend = "memcached"
	require.ErrorIs(t, backend.Validate(), ErrBackend)
}
