package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is the single authoritative count of searches issued on one day.
// Reserve must check and increment atomically so concurrent workers cannot
// overshoot the ceiling.
type Counter interface {
	// Seed raises the day's count to at least n.
	Seed(ctx context.Context, day string, n int) error
	// Reserve increments the day's count if it is below ceiling (0 = unlimited).
	// It returns the count after the attempt and whether the slot was granted.
	Reserve(ctx context.Context, day string, ceiling int) (int, bool, error)
	// Release gives back a slot taken by Reserve.
	Release(ctx context.Context, day string) error
	// Used returns the day's count.
	Used(ctx context.Context, day string) (int, error)
}

// MemoryCounter keeps the count in process memory.
type MemoryCounter struct {
	mu   sync.Mutex
	days map[string]int
}

// NewMemoryCounter returns an empty in-process counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{days: make(map[string]int)}
}

func (c *MemoryCounter) Seed(_ context.Context, day string, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > c.days[day] {
		c.days[day] = n
	}
	return nil
}

func (c *MemoryCounter) Reserve(_ context.Context, day string, ceiling int) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	used := c.days[day]
	if ceiling > 0 && used >= ceiling {
		return used, false, nil
	}
	c.days[day] = used + 1
	return used + 1, true, nil
}

func (c *MemoryCounter) Release(_ context.Context, day string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.days[day] > 0 {
		c.days[day]--
	}
	return nil
}

func (c *MemoryCounter) Used(_ context.Context, day string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.days[day], nil
}

// ErrEmptyAddress is returned when Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// connectionTimeout is the timeout for verifying Redis connection.
const connectionTimeout = 5 * time.Second

// dayTTL keeps a day's key around long enough to outlive the day itself.
const dayTTL = 48 * time.Hour

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisClient creates a Redis client and verifies the connection.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

var (
	seedScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local n = tonumber(ARGV[1])
if n > cur then
	redis.call('SET', KEYS[1], n)
	cur = n
end
redis.call('EXPIRE', KEYS[1], ARGV[2])
return cur`)

	reserveScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local ceiling = tonumber(ARGV[1])
if ceiling > 0 and cur >= ceiling then
	return {cur, 0}
end
cur = redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return {cur, 1}`)

	releaseScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
if cur > 0 then
	return redis.call('DECR', KEYS[1])
end
return 0`)
)

// RedisCounter shares the count between processes through one key per day.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

// NewRedisCounter wraps client. Keys are prefix:YYYY-MM-DD.
func NewRedisCounter(client *redis.Client, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "leadsmith:quota"
	}
	return &RedisCounter{client: client, prefix: prefix}
}

func (c *RedisCounter) key(day string) string { return c.prefix + ":" + day }

func (c *RedisCounter) Seed(ctx context.Context, day string, n int) error {
	ttl := int(dayTTL / time.Second)
	if err := seedScript.Run(ctx, c.client, []string{c.key(day)}, n, ttl).Err(); err != nil {
		return fmt.Errorf("seed quota counter: %w", err)
	}
	return nil
}

func (c *RedisCounter) Reserve(ctx context.Context, day string, ceiling int) (int, bool, error) {
	ttl := int(dayTTL / time.Second)
	vals, err := reserveScript.Run(ctx, c.client, []string{c.key(day)}, ceiling, ttl).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("reserve quota slot: %w", err)
	}
	if len(vals) != 2 {
		return 0, false, fmt.Errorf("reserve quota slot: unexpected reply %v", vals)
	}
	return int(vals[0]), vals[1] == 1, nil
}

func (c *RedisCounter) Release(ctx context.Context, day string) error {
	if err := releaseScript.Run(ctx, c.client, []string{c.key(day)}).Err(); err != nil {
		return fmt.Errorf("release quota slot: %w", err)
	}
	return nil
}

func (c *RedisCounter) Used(ctx context.Context, day string) (int, error) {
	n, err := c.client.Get(ctx, c.key(day)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read quota counter: %w", err)
	}
	return n, nil
}
