package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript increments KEYS[1] only while it is below ARGV[1].
// The TTL (ARGV[2], milliseconds) is set when the counter is created.
var consumeScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if current >= limit then
  return {current, 0}
end
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {n, 1}
`)

// RedisLedger stores counters as Redis strings.
type RedisLedger struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisLedgerOption configures a RedisLedger.
type RedisLedgerOption func(*RedisLedger)

// WithKeyPrefix namespaces counter keys. The default prefix is "paygate".
func WithKeyPrefix(prefix string) RedisLedgerOption {
	return func(l *RedisLedger) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// WithTTL sets the expiry of a day's counter. The default is 48h.
func WithTTL(ttl time.Duration) RedisLedgerOption {
	return func(l *RedisLedger) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// NewRedisLedger creates a ledger backed by client.
func NewRedisLedger(client redis.UniversalClient, opts ...RedisLedgerOption) *RedisLedger {
	if client == nil {
		panic("quota: redis client is required")
	}
	l := &RedisLedger{client: client, prefix: "paygate", ttl: 48 * time.Hour}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLedger) redisKey(k Key) string {
	return l.prefix + ":quota:" + k.String()
}

func (l *RedisLedger) Consume(ctx context.Context, key Key, limit int64) (int64, bool, error) {
	if err := key.Validate(); err != nil {
		return 0, false, err
	}
	if limit <= 0 {
		return 0, false, nil
	}

	res, err := consumeScript.Run(ctx, l.client, []string{l.redisKey(key)}, limit, l.ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("redis consume: %w", err)
	}
	if len(res) != 2 {
		return 0, false, ErrUnexpectedResult
	}
	return res[0], res[1] == 1, nil
}

func (l *RedisLedger) Count(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	n, err := l.client.Get(ctx, l.redisKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis count: %w", err)
	}
	return n, nil
}

func (l *RedisLedger) Reset(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := l.client.Del(ctx, l.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis reset: %w", err)
	}
	return nil
}
