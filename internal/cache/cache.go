// Package cache provides a Redis read-through cache for event reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/config"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	listKey     = "events:list"
	eventPrefix = "events:item:"
	genListKey  = "events:gen:list"
	genPrefix   = "events:gen:"
)

var (
	// ErrMiss is returned when a key is not cached.
	ErrMiss = errors.New("cache miss")
	// ErrStale is returned when a write is skipped because the entry was
	// invalidated after the caller read its generation.
	ErrStale = errors.New("cache entry invalidated since read")
)

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// EventCache stores JSON snapshots of the event list and single events.
//
// Every entry has a generation counter that Invalidate increments. Readers
// take the generation before loading from the store and pass it to the
// setter, which only writes while the generation is unchanged. A load that
// raced with an invalidation therefore never repopulates the cache.
type EventCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEventCache constructs an EventCache with the given entry TTL.
func NewEventCache(client *redis.Client, ttl time.Duration) *EventCache {
	return &EventCache{client: client, ttl: ttl}
}

// Events returns the cached event list or ErrMiss.
func (c *EventCache) Events(ctx context.Context) ([]model.Event, error) {
	var events []model.Event
	if err := c.get(ctx, listKey, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// ListGeneration returns the current generation of the event list.
func (c *EventCache) ListGeneration(ctx context.Context) (int64, error) {
	return c.generation(ctx, genListKey)
}

// SetEvents caches the event list if it is still at generation gen.
func (c *EventCache) SetEvents(ctx context.Context, events []model.Event, gen int64) error {
	return c.setIfCurrent(ctx, genListKey, gen, listKey, events)
}

// Event returns a cached event or ErrMiss.
func (c *EventCache) Event(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	if err := c.get(ctx, eventPrefix+id, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// EventGeneration returns the current generation of a single event.
func (c *EventCache) EventGeneration(ctx context.Context, id string) (int64, error) {
	return c.generation(ctx, genPrefix+id)
}

// SetEvent caches a single event if it is still at generation gen.
func (c *EventCache) SetEvent(ctx context.Context, e *model.Event, gen int64) error {
	return c.setIfCurrent(ctx, genPrefix+e.ID, gen, eventPrefix+e.ID, e)
}

// Invalidate drops the list and the given events and bumps their
// generations in one transaction.
func (c *EventCache) Invalidate(ctx context.Context, ids ...string) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, listKey)
	for _, id := range ids {
		keys = append(keys, eventPrefix+id)
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genListKey)
		for _, id := range ids {
			pipe.Incr(ctx, genPrefix+id)
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate events: %w", err)
	}
	return nil
}

func (c *EventCache) generation(ctx context.Context, genKey string) (int64, error) {
	if c.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	gen, err := c.client.Get(ctx, genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get %s from redis: %w", genKey, err)
	}
	return gen, nil
}

func (c *EventCache) get(ctx context.Context, key string, dst any) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// setIfCurrent writes key under WATCH on genKey, so the write is dropped if
// the generation moved from gen or an invalidation lands mid-transaction.
func (c *EventCache) setIfCurrent(ctx context.Context, genKey string, gen int64, key string, v any) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale), errors.Is(err, redis.TxFailedErr):
		return ErrStale
	default:
		return fmt.Errorf("failed to set %s in redis: %w", key, err)
	}
}
