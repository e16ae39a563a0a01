package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Policy bounds how often one agent may be admitted.
type Policy struct {
	RPM   int
	Burst int
}

func (p Policy) perSecond() float64 {
	r := float64(p.RPM) / 60.0
	if r <= 0 {
		return 1
	}
	return r
}

func (p Policy) burst() int {
	if p.Burst <= 0 {
		return 1
	}
	return p.Burst
}

// Store holds token buckets keyed by agent.
type Store interface {
	// Allow consumes cost tokens from agent's bucket and reports whether it
	// had them.
	Allow(ctx context.Context, agent string, policy Policy, cost int) (bool, error)
}

// InMemoryStore keeps buckets in process memory.
type InMemoryStore struct {
	mu      sync.Mutex
	clock   func() time.Time
	buckets map[string]*rate.Limiter
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{clock: time.Now, buckets: make(map[string]*rate.Limiter)}
}

// WithClock overrides the clock for testing.
func (s *InMemoryStore) WithClock(clock func() time.Time) *InMemoryStore {
	s.clock = clock
	return s
}

func (s *InMemoryStore) Allow(_ context.Context, agent string, policy Policy, cost int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[agent]
	if !ok {
		b = rate.NewLimiter(rate.Limit(policy.perSecond()), policy.burst())
		s.buckets[agent] = b
	}
	return b.AllowN(s.clock(), cost), nil
}

// redisTokenBucketScript refills and consumes atomically.
// KEYS[1] = bucket key
// ARGV[1] = refill rate (tokens per second)
// ARGV[2] = capacity
// ARGV[3] = cost
// ARGV[4] = now (unix seconds, microsecond precision)
var redisTokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    last_refill = now
end

local allowed = 0
if tokens >= cost then
    tokens = tokens - cost
    allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, math.ceil(capacity / rate) + 60)

return allowed
`)

// RedisStore shares buckets between processes through Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	clock  func() time.Time
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "tearframe:admission:", clock: time.Now}
}

// DialRedisStore connects to addr.
func DialRedisStore(addr, password string, db int) *RedisStore {
	return NewRedisStore(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) Allow(ctx context.Context, agent string, policy Policy, cost int) (bool, error) {
	now := float64(s.clock().UnixMicro()) / 1e6
	allowed, err := redisTokenBucketScript.Run(ctx, s.client,
		[]string{s.prefix + agent},
		policy.perSecond(), policy.burst(), cost, now,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("redis limiter: %w", err)
	}
	return allowed == 1, nil
}
