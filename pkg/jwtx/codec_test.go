package jwtx_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/herdwatch/herdwatch/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock shared between codecs in a test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCodec(t *testing.T, secret string, clock *fakeClock) *jwtx.Codec {
	t.Helper()
	codec, err := jwtx.NewCodec(jwtx.CodecConfig{
		Secret: []byte(secret),
		Issuer: "herdwatch",
		Now:    clock.Now,
	})
	require.NoError(t, err)
	return codec
}

func TestNewCodec_RequiresSecret(t *testing.T) {
	_, err := jwtx.NewCodec(jwtx.CodecConfig{})
	require.ErrorIs(t, err, jwtx.ErrEmptySecret)
}

func TestCodec_MintAndVerify(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
	codec := newTestCodec(t, "access-secret", clock)

	token, minted, err := codec.Mint("acc-123", jwtx.TypeAccess, 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 3, len(strings.Split(token, ".")), "compact JWS has three segments")

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "acc-123", claims.Subject)
	require.Equal(t, jwtx.TypeAccess, claims.Type)
	require.Equal(t, "herdwatch", claims.Issuer)
	require.Equal(t, minted.ID, claims.ID)
	require.Equal(t, clock.Now().Add(15*time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func TestCodec_MintIsUniqueWithinSameSecond(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
	codec := newTestCodec(t, "refresh-secret", clock)

	a, _, err := codec.Mint("acc-1", jwtx.TypeRefresh, jwtx.RefreshTokenTTL)
	require.NoError(t, err)
	b, _, err := codec.Mint("acc-1", jwtx.TypeRefresh, jwtx.RefreshTokenTTL)
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestCodec_VerifyFailures(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
	access := newTestCodec(t, "access-secret", clock)
	refresh := newTestCodec(t, "refresh-secret", clock)

	token, _, err := access.Mint("acc-1", jwtx.TypeAccess, time.Minute)
	require.NoError(t, err)

	t.Run("empty token", func(t *testing.T) {
		_, err := access.Verify("")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := access.Verify("not-a-token")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := refresh.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(token, ".")
		other, _, err := access.Mint("acc-2", jwtx.TypeAccess, time.Minute)
		require.NoError(t, err)
		forged := parts[0] + "." + strings.Split(other, ".")[1] + "." + parts[2]

		_, err = access.Verify(forged)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("alg none rejected", func(t *testing.T) {
		claims := jwtx.NewClaims("acc-1", jwtx.TypeAccess, "herdwatch", time.Minute, clock.Now())
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = access.Verify(unsigned)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("not yet valid", func(t *testing.T) {
		claims := jwtx.NewClaims("acc-1", jwtx.TypeAccess, "herdwatch", time.Hour, clock.Now().Add(time.Hour))
		early, err := access.Sign(claims)
		require.NoError(t, err)

		_, err = access.Verify(early)
		require.ErrorIs(t, err, jwtx.ErrNotYetValid)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		foreign, err := jwtx.NewCodec(jwtx.CodecConfig{
			Secret: []byte("access-secret"),
			Issuer: "someone-else",
			Now:    clock.Now,
		})
		require.NoError(t, err)
		tok, _, err := foreign.Mint("acc-1", jwtx.TypeAccess, time.Minute)
		require.NoError(t, err)

		_, err = access.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})
}

func TestCodec_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
	codec := newTestCodec(t, "refresh-secret", clock)

	token, _, err := codec.Mint("acc-1", jwtx.TypeRefresh, time.Hour)
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, err = codec.Verify(token)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = codec.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestCodec_SignatureCheckedBeforeExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
	signer := newTestCodec(t, "one-secret", clock)
	verifier := newTestCodec(t, "another-secret", clock)

	token, _, err := signer.Mint("acc-1", jwtx.TypeAccess, time.Minute)
	require.NoError(t, err)

	clock.Advance(time.Hour)

	// Expired AND badly signed reports the signature problem
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	require.NotErrorIs(t, err, jwtx.ErrExpired)
}
