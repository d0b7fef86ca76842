package service

import (
	"sync"
	"testing"
	"time"

	"github.com/herdwatch/herdwatch/internal/herdwatch/domain"
	"github.com/herdwatch/herdwatch/internal/herdwatch/metrics"
	"github.com/herdwatch/herdwatch/internal/herdwatch/store/drivers/sqlite"
	"github.com/herdwatch/herdwatch/pkg/cryptox"
	"github.com/herdwatch/herdwatch/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	store    *sqlite.Store
	clock    *fakeClock
	metrics  *metrics.Metrics
	auth     *AuthService
	gate     *RequestGate
	accounts *AccountService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvDSN(t, ":memory:")
}

func newTestEnvDSN(t *testing.T, dsn string) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}

	access, err := jwtx.NewCodec(jwtx.CodecConfig{Secret: []byte("access-secret"), Issuer: "herdwatch", Now: clock.Now})
	require.NoError(t, err)
	refresh, err := jwtx.NewCodec(jwtx.CodecConfig{Secret: []byte("refresh-secret"), Issuer: "herdwatch", Now: clock.Now})
	require.NoError(t, err)

	hasher := cryptox.NewPasswordHasher("test-pepper")
	m := metrics.New()

	return &testEnv{
		store:   st,
		clock:   clock,
		metrics: m,
		auth: &AuthService{
			Store:        st,
			Sessions:     st.Sessions(),
			Hasher:       hasher,
			AccessCodec:  access,
			RefreshCodec: refresh,
			Metrics:      m,
			AccessTTL:    15 * time.Minute,
			RefreshTTL:   jwtx.RefreshTokenTTL,
			StoreTimeout: time.Second,
		},
		gate: &RequestGate{
			Access:       access,
			Store:        st,
			Metrics:      m,
			StoreTimeout: time.Second,
		},
		accounts: &AccountService{
			Store:        st,
			Hasher:       hasher,
			StoreTimeout: time.Second,
			Now:          clock.Now,
		},
	}
}

func (e *testEnv) register(t *testing.T, email string, role domain.Role) AuthResult {
	t.Helper()

	res, err := e.auth.Register(t.Context(), RegisterInput{
		Email:    email,
		Password: "secret1",
		FullName: "Test Person",
		Phone:    "+919876543210",
		Role:     role,
	})
	require.NoError(t, err)
	return res
}
