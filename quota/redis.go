package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// ErrEmptyAddress is returned when no Redis address is configured.
var ErrEmptyAddress = errors.New("redis address is required")

const (
	connectionTimeout = 5 * time.Second
	// keys outlive their day so late increments near midnight still expire
	keyTTL = 48 * time.Hour
)

// reserveScript increments KEYS[1] unless it already reached ARGV[1] and
// returns the new total, or -1 when full.
var reserveScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n >= tonumber(ARGV[1]) then
	return -1
end
n = redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return n
`)

// releaseScript decrements KEYS[1] without going below zero.
var releaseScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n > 0 then
	return redis.call('DECR', KEYS[1])
end
return 0
`)

// Redis is a Counter shared by every caption service replica.
type Redis struct {
	client *redis.Client
	limit  int
	now    func() time.Time
}

// NewRedisClient connects and pings.
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

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, limit int) *Redis {
	return &Redis{client: client, limit: limit, now: time.Now}
}

func (r *Redis) key(user string) string {
	return "quota:" + user + ":" + dayKey(r.now())
}

func (r *Redis) Used(ctx context.Context, user string) (int, error) {
	n, err := r.client.Get(ctx, r.key(user)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return n, nil
}

func (r *Redis) Increment(ctx context.Context, user string) (int, error) {
	key := r.key(user)
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return int(incr.Val()), nil
}

func (r *Redis) Reserve(ctx context.Context, user string) (int, bool, error) {
	n, err := reserveScript.Run(ctx, r.client, []string{r.key(user)}, r.limit, int(keyTTL.Seconds())).Int()
	if err != nil {
		return 0, false, fmt.Errorf("redis reserve: %w", err)
	}
	if n < 0 {
		return r.limit, false, nil
	}
	return n, true, nil
}

func (r *Redis) Release(ctx context.Context, user string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key(user)}).Err(); err != nil {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}

func (r *Redis) Limit() int {
	return r.limit
}
