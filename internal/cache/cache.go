package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/neexbeast/trailweather/internal/journey"
)

// DefaultTTL applies when NewCache is given a non-positive TTL.
const DefaultTTL = 24 * time.Hour

// ErrUnavailable means the breaker is open and Redis was not contacted.
var ErrUnavailable = errors.New("cache unavailable")

// Cache keeps generated days in one Redis hash per journey, keyed by day.
// Days are immutable once written, so entries never need invalidating
// except when the journey ends. The hash is keyed by journey ID, which
// means a new journey for the same group can never read an old one's days.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker
}

// NewCache constructs a Cache. Calls go through a circuit breaker so a
// struggling Redis degrades reads to the database instead of slowing them.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
	})
	return &Cache{client: client, ttl: ttl, breaker: cb}
}

// key returns the Redis key for the given journey.
func key(journeyID uuid.UUID) string {
	return "journey:" + journeyID.String() + ":weather"
}

func field(day int) string {
	return strconv.Itoa(day)
}

func (c *Cache) execute(fn func() (any, error)) (any, error) {
	v, err := c.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, err
}

// Get retrieves one day from cache.
// Returns nil, nil on a cache miss (not an error).
func (c *Cache) Get(ctx context.Context, journeyID uuid.UUID, day int) (*journey.DailyWeather, error) {
	v, err := c.execute(func() (any, error) {
		val, err := c.client.HGet(ctx, key(journeyID), field(day)).Result()
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return val, err
	})
	if err != nil {
		return nil, fmt.Errorf("cache get for journey %s day %d: %w", journeyID, day, err)
	}

	val, _ := v.(string)
	if val == "" {
		return nil, nil
	}

	var rec journey.DailyWeather
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling cached day %d for journey %s: %w", day, journeyID, err)
	}

	return &rec, nil
}

// GetRange retrieves days from through to. The result is aligned with the
// range; days that are not cached are nil.
func (c *Cache) GetRange(ctx context.Context, journeyID uuid.UUID, from, to int) ([]*journey.DailyWeather, error) {
	if to < from {
		return nil, nil
	}

	fields := make([]string, 0, to-from+1)
	for day := from; day <= to; day++ {
		fields = append(fields, field(day))
	}

	v, err := c.execute(func() (any, error) {
		return c.client.HMGet(ctx, key(journeyID), fields...).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("cache get for journey %s days %d-%d: %w", journeyID, from, to, err)
	}

	vals, _ := v.([]any)
	out := make([]*journey.DailyWeather, len(fields))
	for i, raw := range vals {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var rec journey.DailyWeather
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("unmarshaling cached day %d for journey %s: %w", from+i, journeyID, err)
		}
		out[i] = &rec
	}

	return out, nil
}

// Set stores days in the journey's hash and refreshes its TTL.
func (c *Cache) Set(ctx context.Context, journeyID uuid.UUID, recs ...journey.DailyWeather) error {
	if len(recs) == 0 {
		return nil
	}

	values := make([]any, 0, 2*len(recs))
	for _, rec := range recs {
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling day %d for journey %s: %w", rec.Day, journeyID, err)
		}
		values = append(values, field(rec.Day), b)
	}

	_, err := c.execute(func() (any, error) {
		pipe := c.client.TxPipeline()
		pipe.HSet(ctx, key(journeyID), values...)
		pipe.Expire(ctx, key(journeyID), c.ttl)
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("cache set for journey %s: %w", journeyID, err)
	}

	return nil
}

// Drop removes every cached day of the journey.
func (c *Cache) Drop(ctx context.Context, journeyID uuid.UUID) error {
	_, err := c.execute(func() (any, error) {
		return nil, c.client.Del(ctx, key(journeyID)).Err()
	})
	if err != nil {
		return fmt.Errorf("cache delete for journey %s: %w", journeyID, err)
	}
	return nil
}

// Ping verifies Redis is reachable. It bypasses the breaker so health
// checks report the real state.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
