package sqlite_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/herdwatch/herdwatch/internal/herdwatch/domain"
	"github.com/herdwatch/herdwatch/internal/herdwatch/store"
	"github.com/herdwatch/herdwatch/internal/herdwatch/store/drivers/sqlite"
	"github.com/herdwatch/herdwatch/pkg/cryptox"
	"github.com/herdwatch/herdwatch/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func seedAccount(t *testing.T, s store.Store, email string, profile domain.Profile, at time.Time) domain.Account {
	t.Helper()

	a := domain.Account{
		ID:           idx.NewAt(at).String(),
		Email:        email,
		PasswordHash: "hash",
		FullName:     "Test Person",
		Phone:        "+919876543210",
		Language:     domain.DefaultLanguage,
		Profile:      profile,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	require.NoError(t, s.Accounts().CreateAccount(context.Background(), a))
	return a
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

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	farmer := seedAccount(t, s, "farmer@x.com", domain.FarmerProfile{
		FarmName:       "Hill Farm",
		FarmLocation:   domain.NewGeoPoint(78.4, 17.3),
		LivestockTypes: []string{"cattle"},
		HerdSize:       12,
	}, now)

	t.Run("duplicate email", func(t *testing.T) {
		dup := farmer
		dup.ID = idx.New().String()
		require.ErrorIs(t, s.Accounts().CreateAccount(ctx, dup), store.ErrAlreadyExists)
	})

	t.Run("lookup by id and email", func(t *testing.T) {
		got, err := s.Accounts().GetAccountByID(ctx, farmer.ID)
		require.NoError(t, err)
		require.Equal(t, farmer, got)

		got, err = s.Accounts().GetAccountByEmail(ctx, "farmer@x.com")
		require.NoError(t, err)
		require.Equal(t, farmer.ID, got.ID)

		_, err = s.Accounts().GetAccountByID(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("update profile", func(t *testing.T) {
		upd := farmer
		upd.FullName = "Renamed"
		upd.Profile = farmer.Profile.(domain.FarmerProfile).Apply(domain.FarmerProfilePatch{Address: ptr("Ward 4")})
		upd.UpdatedAt = now.Add(time.Minute)
		require.NoError(t, s.Accounts().UpdateAccount(ctx, upd))

		got, err := s.Accounts().GetAccountByID(ctx, farmer.ID)
		require.NoError(t, err)
		require.Equal(t, "Renamed", got.FullName)
		require.Equal(t, "Ward 4", got.Profile.(domain.FarmerProfile).Address)
		require.Equal(t, upd.UpdatedAt, got.UpdatedAt)
	})

	t.Run("update cannot switch role", func(t *testing.T) {
		upd := farmer
		upd.Profile = domain.VetProfile{Verified: true}
		require.ErrorIs(t, s.Accounts().UpdateAccount(ctx, upd), store.ErrNotFound)
	})

	t.Run("password hash", func(t *testing.T) {
		require.NoError(t, s.Accounts().UpdatePasswordHash(ctx, farmer.ID, "new-hash", now))
		got, err := s.Accounts().GetAccountByID(ctx, farmer.ID)
		require.NoError(t, err)
		require.Equal(t, "new-hash", got.PasswordHash)

		require.ErrorIs(t, s.Accounts().UpdatePasswordHash(ctx, "missing", "x", now), store.ErrNotFound)
	})
}

func TestListAccounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Now().UTC().Truncate(time.Millisecond)

	f1 := seedAccount(t, s, "f1@x.com", domain.FarmerProfile{}, base)
	v1 := seedAccount(t, s, "v1@x.com", domain.VetProfile{}, base.Add(time.Second))
	f2 := seedAccount(t, s, "f2@x.com", domain.FarmerProfile{}, base.Add(2*time.Second))

	all, total, err := s.Accounts().ListAccounts(ctx, domain.AccountFilter{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Equal(t, []string{f2.ID, v1.ID, f1.ID}, ids(all))

	farmers, total, err := s.Accounts().ListAccounts(ctx, domain.AccountFilter{Role: domain.RoleFarmer, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, []string{f1.ID}, ids(farmers))
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)
	acc := seedAccount(t, s, "a@x.com", domain.FarmerProfile{}, now)

	t.Run("multiple devices coexist and remove is targeted", func(t *testing.T) {
		a := newSession(acc.ID, now, time.Hour)
		b := newSession(acc.ID, now, time.Hour)
		require.NoError(t, s.Sessions().AddSession(ctx, a))
		require.NoError(t, s.Sessions().AddSession(ctx, b))

		removed, err := s.Sessions().RemoveSession(ctx, acc.ID, a.TokenHash)
		require.NoError(t, err)
		require.True(t, removed)

		removed, err = s.Sessions().RemoveSession(ctx, acc.ID, a.TokenHash)
		require.NoError(t, err)
		require.False(t, removed)

		ok, err := s.Sessions().ContainsSession(ctx, acc.ID, b.TokenHash, now)
		require.NoError(t, err)
		require.True(t, ok)

		n, err := s.Sessions().RemoveAllSessions(ctx, acc.ID)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	})

	t.Run("expired session is absent before cleanup", func(t *testing.T) {
		old := newSession(acc.ID, now.Add(-2*time.Hour), time.Hour)
		require.NoError(t, s.Sessions().AddSession(ctx, old))

		ok, err := s.Sessions().ContainsSession(ctx, acc.ID, old.TokenHash, now)
		require.NoError(t, err)
		require.False(t, ok)

		err = s.Sessions().RotateSession(ctx, acc.ID, old.TokenHash, newSession(acc.ID, now, time.Hour), now)
		require.ErrorIs(t, err, store.ErrNotFound)

		n, err := s.Sessions().DeleteExpiredSessions(ctx, now)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	})

	t.Run("rotation is single use", func(t *testing.T) {
		first := newSession(acc.ID, now, time.Hour)
		require.NoError(t, s.Sessions().AddSession(ctx, first))

		second := newSession(acc.ID, now, time.Hour)
		require.NoError(t, s.Sessions().RotateSession(ctx, acc.ID, first.TokenHash, second, now))

		err := s.Sessions().RotateSession(ctx, acc.ID, first.TokenHash, newSession(acc.ID, now, time.Hour), now)
		require.ErrorIs(t, err, store.ErrNotFound)

		live, err := s.Sessions().ListSessions(ctx, acc.ID, now)
		require.NoError(t, err)
		require.Len(t, live, 1)
		require.Equal(t, second.TokenHash, live[0].TokenHash)
	})

	t.Run("concurrent rotations of one token", func(t *testing.T) {
		_, err := s.Sessions().RemoveAllSessions(ctx, acc.ID)
		require.NoError(t, err)

		start := newSession(acc.ID, now, time.Hour)
		require.NoError(t, s.Sessions().AddSession(ctx, start))

		const racers = 8
		var (
			wg   sync.WaitGroup
			errs = make(chan error, racers)
		)
		for range racers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.Sessions().RotateSession(ctx, acc.ID, start.TokenHash, newSession(acc.ID, now, time.Hour), now)
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

		live, err := s.Sessions().ListSessions(ctx, acc.ID, now)
		require.NoError(t, err)
		require.Len(t, live, 1)
	})

	t.Run("deleting the account cascades", func(t *testing.T) {
		require.NoError(t, s.Accounts().DeleteAccount(ctx, acc.ID))
		live, err := s.Sessions().ListSessions(ctx, acc.ID, now)
		require.NoError(t, err)
		require.Empty(t, live)
	})
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()
	acc := seedAccount(t, s, "tx@x.com", domain.AdminProfile{}, now)

	sess := newSession(acc.ID, now, time.Hour)
	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Sessions().AddSession(ctx, sess))
		return store.ErrNotFound
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	ok, err := s.Sessions().ContainsSession(ctx, acc.ID, sess.TokenHash, now)
	require.NoError(t, err)
	require.False(t, ok)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.Tx(ctx)
		return err
	})
	require.Error(t, err)
}

func ids(accounts []domain.Account) []string {
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.ID)
	}
	return out
}

func ptr[T any](v T) *T { return &v }
