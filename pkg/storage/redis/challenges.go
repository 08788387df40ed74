// Package redis stores pending one-time codes in Redis hashes that expire with the code.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/storage"
	goredis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "otp:"

// saveScript replaces the challenge hash and sets its TTL in one step.
// ARGV: code, created_at ms, expires_at ms, ttl ms.
const saveScript = `
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'code', ARGV[1], 'created_at', ARGV[2], 'expires_at', ARGV[3], 'attempts', 0)
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`

// consumeScript returns a storage.ConsumeResult value.
// ARGV: code, now ms, max attempts.
const consumeScript = `
local code = redis.call('HGET', KEYS[1], 'code')
if not code then
  return 0
end
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_at'))
if expires and tonumber(ARGV[2]) > expires then
  redis.call('DEL', KEYS[1])
  return 0
end
if code == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return 3
end
local attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
local max = tonumber(ARGV[3])
if max > 0 and attempts >= max then
  redis.call('DEL', KEYS[1])
  return 2
end
return 1
`

// scripter is the part of the go-redis client the store uses.
type scripter interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *goredis.Cmd
}

// ChallengeStore implements storage.ChallengeStore on Redis.
type ChallengeStore struct {
	client scripter
	prefix string
}

// Make sure we conform to ChallengeStore
var _ storage.ChallengeStore = (*ChallengeStore)(nil)

// NewChallengeStore creates a store. An empty prefix uses "otp:".
func NewChallengeStore(client scripter, prefix string) *ChallengeStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &ChallengeStore{client: client, prefix: prefix}
}

// NewClient parses a redis:// URL into a client.
func NewClient(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return goredis.NewClient(opts), nil
}

func (s *ChallengeStore) key(phone string) string {
	return s.prefix + phone
}

// SaveChallenge stores the challenge, replacing any pending one for the same phone.
func (s *ChallengeStore) SaveChallenge(ctx context.Context, challenge *models.Challenge) error {
	ttl := challenge.ExpiresAt.Sub(challenge.CreatedAt)
	if ttl <= 0 {
		return fmt.Errorf("challenge for %s has no remaining ttl", challenge.Phone)
	}

	err := s.client.Eval(ctx, saveScript, []string{s.key(challenge.Phone)},
		challenge.Code,
		challenge.CreatedAt.UnixMilli(),
		challenge.ExpiresAt.UnixMilli(),
		ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to save challenge to Redis: %w", err)
	}
	return nil
}

// ConsumeChallenge compares code with the pending challenge inside one Lua script.
func (s *ChallengeStore) ConsumeChallenge(ctx context.Context, phone, code string, now time.Time, maxAttempts int) (storage.ConsumeResult, error) {
	res, err := s.client.Eval(ctx, consumeScript, []string{s.key(phone)},
		code,
		now.UnixMilli(),
		maxAttempts,
	).Int64()
	if err != nil {
		return storage.ChallengeMissing, fmt.Errorf("failed to consume challenge in Redis: %w", err)
	}

	switch r := storage.ConsumeResult(res); r {
	case storage.ChallengeMissing, storage.ChallengeMismatch, storage.ChallengeExhausted, storage.ChallengeMatched:
		return r, nil
	}
	return storage.ChallengeMissing, fmt.Errorf("unexpected consume result %d from Redis", res)
}
