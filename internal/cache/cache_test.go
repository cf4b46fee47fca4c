package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/config"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, Ping(ctx, client))

	c := NewEventCache(client, time.Minute)
	start := time.Date(2026, 11, 1, 18, 0, 0, 0, time.UTC)
	ev := model.Event{ID: "e1", Title: "Launch", DateTime: start, TotalSeats: 10, AvailableSeats: 7}

	t.Run("MissBeforeSet", func(t *testing.T) {
		_, err := c.Events(ctx)
		assert.ErrorIs(t, err, ErrMiss)
		_, err = c.Event(ctx, "e1")
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, c.SetEvents(ctx, []model.Event{ev}, 0))
		require.NoError(t, c.SetEvent(ctx, &ev, 0))

		events, err := c.Events(ctx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, 7, events[0].AvailableSeats)
		assert.True(t, start.Equal(events[0].DateTime))

		got, err := c.Event(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, "Launch", got.Title)
	})

	t.Run("Invalidate", func(t *testing.T) {
		require.NoError(t, c.Invalidate(ctx, "e1"))
		_, err := c.Events(ctx)
		assert.ErrorIs(t, err, ErrMiss)
		_, err = c.Event(ctx, "e1")
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("InvalidateBumpsGenerations", func(t *testing.T) {
		listGen, err := c.ListGeneration(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), listGen)
		eventGen, err := c.EventGeneration(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), eventGen)
		other, err := c.EventGeneration(ctx, "e2")
		require.NoError(t, err)
		assert.Equal(t, int64(0), other)
	})

	t.Run("WriteAfterInvalidateIsDropped", func(t *testing.T) {
		listGen, err := c.ListGeneration(ctx)
		require.NoError(t, err)
		eventGen, err := c.EventGeneration(ctx, "e1")
		require.NoError(t, err)

		// A reservation commits between the store read and the cache write.
		require.NoError(t, c.Invalidate(ctx, "e1"))

		assert.ErrorIs(t, c.SetEvents(ctx, []model.Event{ev}, listGen), ErrStale)
		assert.ErrorIs(t, c.SetEvent(ctx, &ev, eventGen), ErrStale)
		assert.False(t, s.Exists(listKey))
		assert.False(t, s.Exists(eventPrefix+"e1"))

		listGen, err = c.ListGeneration(ctx)
		require.NoError(t, err)
		require.NoError(t, c.SetEvents(ctx, []model.Event{ev}, listGen))
		assert.True(t, s.Exists(listKey))
	})

	t.Run("Expiry", func(t *testing.T) {
		listGen, err := c.ListGeneration(ctx)
		require.NoError(t, err)
		require.NoError(t, c.SetEvents(ctx, []model.Event{ev}, listGen))
		s.FastForward(time.Minute + time.Second)
		_, err = c.Events(ctx)
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("CorruptEntry", func(t *testing.T) {
		require.NoError(t, s.Set(listKey, "{not json"))
		_, err := c.Events(ctx)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrMiss)
	})

	t.Run("NilClient", func(t *testing.T) {
		nc := NewEventCache(nil, time.Minute)
		_, err := nc.Events(ctx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "redis client is nil")
		assert.Error(t, nc.Invalidate(ctx))
		_, err = nc.ListGeneration(ctx)
		assert.Error(t, err)
		assert.Error(t, nc.SetEvent(ctx, &ev, 0))
	})
}
