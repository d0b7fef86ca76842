// Package redis is a Session Store backed by redis. Each refresh-token shadow
// is a hash with a native expiry, and a per-account set indexes them.
package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/herdwatch/herdwatch/internal/herdwatch/domain"
	"github.com/herdwatch/herdwatch/internal/herdwatch/store"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key this package writes.
const DefaultPrefix = "herdwatch"

// Options configures the connection.
type Options struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	Prefix      string
}

// SessionStore implements store.Sessions.
type SessionStore struct {
	rdb    *redis.Client
	prefix string
}

var _ store.Sessions = (*SessionStore)(nil)

// Open connects to redis and verifies the connection before returning.
func Open(opts Options) (*SessionStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis: address is empty")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
		PoolSize:    10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connect error: %w", err)
	}

	return New(rdb, opts.Prefix), nil
}

// New wraps an existing client.
func New(rdb *redis.Client, prefix string) *SessionStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SessionStore{rdb: rdb, prefix: prefix}
}

func (s *SessionStore) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *SessionStore) Close() error { return s.rdb.Close() }

// Keys use a {accountID} hash tag so one account's keys share a cluster slot.
func (s *SessionStore) sessionKeyPrefix(accountID string) string {
	return s.prefix + ":session:{" + accountID + "}:"
}

func (s *SessionStore) sessionKey(accountID, tokenHash string) string {
	return s.sessionKeyPrefix(accountID) + tokenHash
}

func (s *SessionStore) indexKey(accountID string) string {
	return s.prefix + ":sessions:{" + accountID + "}"
}

// KEYS: session, index. ARGV: hash, id, issued_ms, expires_ms, ttl_ms.
var addScript = redis.NewScript(`
redis.call('HSET', KEYS[1], 'id', ARGV[2], 'issued_at', ARGV[3], 'expires_at', ARGV[4])
redis.call('PEXPIREAT', KEYS[1], ARGV[4])
redis.call('SADD', KEYS[2], ARGV[1])
if redis.call('PTTL', KEYS[2]) < tonumber(ARGV[5]) then
  redis.call('PEXPIRE', KEYS[2], ARGV[5])
end
return 1
`)

// KEYS: old session, new session, index.
// ARGV: old hash, new hash, id, issued_ms, expires_ms, now_ms, ttl_ms.
var rotateScript = redis.NewScript(`
local exp = redis.call('HGET', KEYS[1], 'expires_at')
if not exp or tonumber(exp) <= tonumber(ARGV[6]) then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[3], ARGV[1])
redis.call('HSET', KEYS[2], 'id', ARGV[3], 'issued_at', ARGV[4], 'expires_at', ARGV[5])
redis.call('PEXPIREAT', KEYS[2], ARGV[5])
redis.call('SADD', KEYS[3], ARGV[2])
if redis.call('PTTL', KEYS[3]) < tonumber(ARGV[7]) then
  redis.call('PEXPIRE', KEYS[3], ARGV[7])
end
return 1
`)

// KEYS: index. ARGV: session key prefix.
var removeAllScript = redis.NewScript(`
local n = 0
for _, h in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  n = n + redis.call('DEL', ARGV[1] .. h)
end
redis.call('DEL', KEYS[1])
return n
`)

func (s *SessionStore) AddSession(ctx context.Context, sess domain.Session) error {
	ttl := time.Until(sess.ExpiresAt)
	return addScript.Run(ctx, s.rdb,
		[]string{s.sessionKey(sess.AccountID, sess.TokenHash), s.indexKey(sess.AccountID)},
		sess.TokenHash, sess.ID, sess.IssuedAt.UnixMilli(), sess.ExpiresAt.UnixMilli(), max(ttl.Milliseconds(), 1),
	).Err()
}

func (s *SessionStore) RemoveSession(ctx context.Context, accountID, tokenHash string) (bool, error) {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, s.sessionKey(accountID, tokenHash))
		p.SRem(ctx, s.indexKey(accountID), tokenHash)
		return nil
	})
	if err != nil {
		return false, err
	}
	return del.Val() > 0, nil
}

func (s *SessionStore) RemoveAllSessions(ctx context.Context, accountID string) (int64, error) {
	return removeAllScript.Run(ctx, s.rdb,
		[]string{s.indexKey(accountID)},
		s.sessionKeyPrefix(accountID),
	).Int64()
}

func (s *SessionStore) ContainsSession(ctx context.Context, accountID, tokenHash string, now time.Time) (bool, error) {
	exp, err := s.rdb.HGet(ctx, s.sessionKey(accountID, tokenHash), "expires_at").Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return exp > now.UnixMilli(), nil
}

func (s *SessionStore) RotateSession(
	ctx context.Context,
	accountID, oldHash string,
	next domain.Session,
	now time.Time,
) error {
	ttl := next.ExpiresAt.Sub(now)
	ok, err := rotateScript.Run(ctx, s.rdb,
		[]string{
			s.sessionKey(accountID, oldHash),
			s.sessionKey(accountID, next.TokenHash),
			s.indexKey(accountID),
		},
		oldHash, next.TokenHash, next.ID,
		next.IssuedAt.UnixMilli(), next.ExpiresAt.UnixMilli(),
		now.UnixMilli(), max(ttl.Milliseconds(), 1),
	).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SessionStore) ListSessions(ctx context.Context, accountID string, now time.Time) ([]domain.Session, error) {
	hashes, err := s.rdb.SMembers(ctx, s.indexKey(accountID)).Result()
	if err != nil {
		return nil, err
	}
	if len(hashes) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(hashes))
	_, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, h := range hashes {
			cmds[i] = p.HGetAll(ctx, s.sessionKey(accountID, h))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []domain.Session
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue // expired, index not pruned yet
		}
		sess, err := parseSession(accountID, hashes[i], fields)
		if err != nil {
			return nil, err
		}
		if sess.Expired(now) {
			continue
		}
		out = append(out, sess)
	}

	slices.SortFunc(out, func(a, b domain.Session) int {
		if c := a.IssuedAt.Compare(b.IssuedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// DeleteExpiredSessions prunes index entries whose session hash has already
// been evicted by redis. The sessions themselves expire natively.
func (s *SessionStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	var (
		pruned int64
		cursor uint64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.prefix+":sessions:*", 100).Result()
		if err != nil {
			return pruned, err
		}
		for _, idxKey := range keys {
			n, err := s.pruneIndex(ctx, idxKey, now)
			if err != nil {
				return pruned, err
			}
			pruned += n
		}
		cursor = next
		if cursor == 0 {
			return pruned, nil
		}
	}
}

func (s *SessionStore) pruneIndex(ctx context.Context, idxKey string, now time.Time) (int64, error) {
	accountID, ok := accountFromIndexKey(s.prefix, idxKey)
	if !ok {
		return 0, nil
	}

	hashes, err := s.rdb.SMembers(ctx, idxKey).Result()
	if err != nil {
		return 0, err
	}

	var stale []any
	for _, h := range hashes {
		exp, err := s.rdb.HGet(ctx, s.sessionKey(accountID, h), "expires_at").Int64()
		switch {
		case errors.Is(err, redis.Nil):
			stale = append(stale, h)
		case err != nil:
			return 0, err
		case exp <= now.UnixMilli():
			if err := s.rdb.Del(ctx, s.sessionKey(accountID, h)).Err(); err != nil {
				return 0, err
			}
			stale = append(stale, h)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	return s.rdb.SRem(ctx, idxKey, stale...).Result()
}

func accountFromIndexKey(prefix, key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, prefix+":sessions:{")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "}")
	return id, ok && id != ""
}

func parseSession(accountID, tokenHash string, fields map[string]string) (domain.Session, error) {
	issued, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return domain.Session{}, fmt.Errorf("redis: bad issued_at: %w", err)
	}
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return domain.Session{}, fmt.Errorf("redis: bad expires_at: %w", err)
	}
	return domain.Session{
		ID:        fields["id"],
		AccountID: accountID,
		TokenHash: tokenHash,
		IssuedAt:  time.UnixMilli(issued).UTC(),
		ExpiresAt: time.UnixMilli(expires).UTC(),
	}, nil
}
