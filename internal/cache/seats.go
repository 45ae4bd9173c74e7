// Package cache holds the Redis-backed seats-left display cache.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/config"
	"github.com/redis/go-redis/v9"
)

// Both keys of an event share a hash tag so they live in one cluster slot.
func valueKey(eventID string) string      { return "seats:{" + eventID + "}:left" }
func generationKey(eventID string) string { return "seats:{" + eventID + "}:gen" }

// setIfCurrent stores ARGV[2] with a PX of ARGV[3] only while the event's
// generation still equals ARGV[1]. A missing generation counts as 0.
var setIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// SeatsCache stores the seats-left figure shown on event pages. It is never
// consulted when admitting a booking.
type SeatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg config.Redis) (*SeatsCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewWithClient(rdb, cfg.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *SeatsCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &SeatsCache{client: client, ttl: ttl}
}

// Get returns the cached figure, whether it was present, and the event's
// current generation.
func (c *SeatsCache) Get(ctx context.Context, eventID string) (int, int64, bool, error) {
	vals, err := c.client.MGet(ctx, valueKey(eventID), generationKey(eventID)).Result()
	if err != nil {
		return 0, 0, false, fmt.Errorf("cache get: %w", err)
	}

	gen, err := parseInt(vals[1])
	if err != nil {
		return 0, 0, false, fmt.Errorf("cache generation: %w", err)
	}
	if vals[0] == nil {
		return 0, gen, false, nil
	}
	left, err := parseInt(vals[0])
	if err != nil {
		// Corrupt entry; treat as a miss and let the next fill overwrite it.
		return 0, gen, false, nil
	}
	return int(left), gen, true, nil
}

// SetIfCurrent stores the figure with the configured TTL unless the event
// was invalidated after generation was read.
func (c *SeatsCache) SetIfCurrent(ctx context.Context, eventID string, seatsLeft int, generation int64) error {
	keys := []string{valueKey(eventID), generationKey(eventID)}
	err := setIfCurrent.Run(ctx, c.client, keys, generation, seatsLeft, c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate bumps the event's generation and drops the cached figure in
// one transaction.
func (c *SeatsCache) Invalidate(ctx context.Context, eventID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(eventID))
		pipe.Del(ctx, valueKey(eventID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *SeatsCache) Close() error {
	return c.client.Close()
}

func parseInt(v any) (int64, error) {
	switch s := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.ParseInt(s, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected value %T", v)
	}
}
