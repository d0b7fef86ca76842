package redis_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/herdwatch/herdwatch/internal/herdwatch/domain"
	"github.com/herdwatch/herdwatch/internal/herdwatch/store"
	rstore "github.com/herdwatch/herdwatch/internal/herdwatch/store/drivers/redis"
	"github.com/herdwatch/herdwatch/pkg/cryptox"
	"github.com/herdwatch/herdwatch/pkg/idx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a throwaway redis container and returns a store using a
// unique prefix.
func setupRedis(t *testing.T) *rstore.SessionStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	s, err := rstore.Open(rstore.Options{
		Addr:   fmt.Sprintf("%s:%s", host, port.Port()),
		Prefix: "test-" + idx.New().String(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newSession(accountID string, now time.Time, ttl time.Duration) domain.Session {
	return domain.Session{
		ID:        idx.New().String(),
		AccountID: accountID,
		TokenHash: cryptox.FingerprintToken(cryptox.MustGenerateToken(cryptox.TokenSize256)),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestSessionStore(t *testing.T) {
	s := setupRedis(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	account := idx.New().String()

	require.NoError(t, s.Ping(ctx))

	t.Run("add contains remove", func(t *testing.T) {
		a := newSession(account, now, time.Hour)
		b := newSession(account, now.Add(time.Millisecond), time.Hour)
		require.NoError(t, s.AddSession(ctx, a))
		require.NoError(t, s.AddSession(ctx, b))

		ok, err := s.ContainsSession(ctx, account, a.TokenHash, now)
		require.NoError(t, err)
		require.True(t, ok)

		removed, err := s.RemoveSession(ctx, account, a.TokenHash)
		require.NoError(t, err)
		require.True(t, removed)

		removed, err = s.RemoveSession(ctx, account, a.TokenHash)
		require.NoError(t, err)
		require.False(t, removed)

		live, err := s.ListSessions(ctx, account, now)
		require.NoError(t, err)
		require.Len(t, live, 1)
		require.Equal(t, b, live[0])
	})

	t.Run("expiry is enforced by the stored timestamp", func(t *testing.T) {
		sess := newSession(account, now, time.Hour)
		require.NoError(t, s.AddSession(ctx, sess))

		ok, err := s.ContainsSession(ctx, account, sess.TokenHash, now.Add(2*time.Hour))
		require.NoError(t, err)
		require.False(t, ok)

		err = s.RotateSession(ctx, account, sess.TokenHash, newSession(account, now, time.Hour), now.Add(2*time.Hour))
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("rotation is single use under contention", func(t *testing.T) {
		_, err := s.RemoveAllSessions(ctx, account)
		require.NoError(t, err)

		start := newSession(account, now, time.Hour)
		require.NoError(t, s.AddSession(ctx, start))

		const racers = 8
		var (
			wg   sync.WaitGroup
			errs = make(chan error, racers)
		)
		for range racers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.RotateSession(ctx, account, start.TokenHash, newSession(account, now, time.Hour), now)
			}()
		}
		wg.Wait()
		close(errs)

		var wins int
		for err := range errs {
			if err == nil {
				wins++
				continue
			}
			require.ErrorIs(t, err, store.ErrNotFound)
		}
		require.Equal(t, 1, wins)
	})

	t.Run("remove all and prune", func(t *testing.T) {
		other := idx.New().String()
		require.NoError(t, s.AddSession(ctx, newSession(other, now, time.Hour)))
		require.NoError(t, s.AddSession(ctx, newSession(other, now, time.Hour)))

		n, err := s.RemoveAllSessions(ctx, other)
		require.NoError(t, err)
		require.EqualValues(t, 2, n)

		stale := newSession(account, now, time.Hour)
		require.NoError(t, s.AddSession(ctx, stale))
		pruned, err := s.DeleteExpiredSessions(ctx, now.Add(2*time.Hour))
		require.NoError(t, err)
		require.GreaterOrEqual(t, pruned, int64(1))
	})
}
