package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestPool connects to TEST_DATABASE_URL or skips the test.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres integration test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool))
	return pool
}

func TestPostgresReserveAndCancel(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	events := NewEventRepository(pool)
	bookings := NewBookingRepository(pool)

	ev := newEvent(uuid.NewString(), 50)
	require.NoError(t, events.CreateEvent(ctx, ev))
	user := uuid.NewString()

	b, err := bookings.Reserve(ctx, newBooking(uuid.NewString(), user, ev.ID, 3, time.Now().UTC()))
	require.NoError(t, err)
	require.NotNil(t, b.Event)
	assert.Equal(t, 47, b.Event.AvailableSeats)

	_, err = bookings.Reserve(ctx, newBooking(uuid.NewString(), user, ev.ID, 1, time.Now().UTC()))
	assert.ErrorIs(t, err, ErrAlreadyBooked)

	out, err := bookings.CancelBooking(ctx, b.ID, user, time.Now().UTC(), allow)
	require.NoError(t, err)
	assert.Equal(t, 3, out.SeatsReturned)

	_, err = bookings.CancelBooking(ctx, b.ID, user, time.Now().UTC(), allow)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	got, err := events.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.AvailableSeats)

	_, err = bookings.Reserve(ctx, newBooking(uuid.NewString(), user, ev.ID, 1, time.Now().UTC()))
	assert.ErrorIs(t, err, ErrCancelledBooking)
}

func TestPostgresConcurrentLastSeat(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	events := NewEventRepository(pool)
	bookings := NewBookingRepository(pool)

	ev := newEvent(uuid.NewString(), 1)
	require.NoError(t, events.CreateEvent(ctx, ev))

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := bookings.Reserve(ctx, newBooking(uuid.NewString(), uuid.NewString(), ev.ID, 1, time.Now().UTC()))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		assert.ErrorIs(t, err, ErrInsufficientSeats)
	}
	assert.Equal(t, 1, success)

	got, err := events.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableSeats)
}

func TestPostgresConcurrentSameUser(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	events := NewEventRepository(pool)
	bookings := NewBookingRepository(pool)

	ev := newEvent(uuid.NewString(), 100)
	require.NoError(t, events.CreateEvent(ctx, ev))
	user := uuid.NewString()

	const workers = 10
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := bookings.Reserve(ctx, newBooking(uuid.NewString(), user, ev.ID, 2, time.Now().UTC()))
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyBooked)
	}
	assert.Equal(t, 1, success)

	got, err := events.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 98, got.AvailableSeats)

	mine, err := bookings.ListBookingsByUser(ctx, user, true)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestPostgresUniqueIndexRejectsSecondConfirmedBooking(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	events := NewEventRepository(pool)
	bookings := NewBookingRepository(pool)

	ev := newEvent(uuid.NewString(), 10)
	require.NoError(t, events.CreateEvent(ctx, ev))
	user := uuid.NewString()

	_, err := bookings.Reserve(ctx, newBooking(uuid.NewString(), user, ev.ID, 1, time.Now().UTC()))
	require.NoError(t, err)

	// Bypass the pre-checks: the index alone must reject the duplicate.
	_, err = pool.Exec(ctx,
		`INSERT INTO bookings (id, user_id, event_id, attendee_name, attendee_email, attendee_phone,
		                       number_of_tickets, status, booking_date)
		 VALUES ($1, $2, $3, 'Ada', 'ada@example.com', '555', 1, 'confirmed', now())`,
		uuid.NewString(), user, ev.ID,
	)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
}
