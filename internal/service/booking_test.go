package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin = auth.Identity{UserID: "admin-1", Role: model.RoleAdmin}
	alice = auth.Identity{UserID: "alice", Role: model.RoleUser}
	bob   = auth.Identity{UserID: "bob", Role: model.RoleUser}
)

type fixture struct {
	store    *repository.MemoryStore
	events   *EventService
	bookings *BookingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	store := repository.NewMemoryStore()
	return &fixture{
		store:    store,
		events:   NewEventService(store, nil, &logger),
		bookings: NewBookingService(store, store, nil, &logger),
	}
}

func (f *fixture) createEvent(t *testing.T, owner auth.Identity, seats int) *model.Event {
	t.Helper()
	ev, err := f.events.CreateEvent(context.Background(), owner, model.CreateEventRequest{
		Title:       "GopherCon",
		Description: "Go conference",
		DateTime:    time.Now().Add(72 * time.Hour),
		Location:    "Berlin",
		TotalSeats:  seats,
	})
	require.NoError(t, err)
	return ev
}

func (f *fixture) seats(t *testing.T, eventID string) int {
	t.Helper()
	ev, err := f.store.GetEvent(context.Background(), eventID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ev.AvailableSeats, 0)
	assert.LessOrEqual(t, ev.AvailableSeats, ev.TotalSeats)
	return ev.AvailableSeats
}

func tickets(n int) *int { return &n }

func bookReq(n int) model.BookRequest {
	return model.BookRequest{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "555-0100", NumberOfTickets: tickets(n)}
}

func assertKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, KindOf(err), "error: %v", err)
}

func TestBookingLifecycleExample(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, admin, 50)
	assert.Equal(t, 50, f.seats(t, ev.ID))

	b, err := f.bookings.Reserve(ctx, alice, ev.ID, bookReq(3))
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, b.Status)
	assert.Equal(t, 3, b.NumberOfTickets)
	require.NotNil(t, b.Event)
	assert.Equal(t, 47, b.Event.AvailableSeats)
	assert.Equal(t, 47, f.seats(t, ev.ID))

	res, err := f.bookings.Cancel(ctx, alice, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Booking cancelled successfully", res.Message)
	assert.Equal(t, b.ID, res.BookingID)
	assert.Equal(t, ev.ID, res.EventID)
	assert.Equal(t, 3, res.SeatsReturned)
	assert.Equal(t, 50, f.seats(t, ev.ID))

	stored, err := f.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, stored.Status)
	assert.Equal(t, alice.UserID, stored.CancelledBy)
	require.NotNil(t, stored.CancelledAt)

	_, err = f.bookings.Reserve(ctx, alice, ev.ID, bookReq(1))
	assertKind(t, err, KindConflict)
	assert.ErrorIs(t, err, repository.ErrCancelledBooking)
	assert.Equal(t, 50, f.seats(t, ev.ID))
}

func TestReserveValidation(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvent(t, admin, 10)
	ctx := context.Background()

	tests := []struct {
		name string
		req  model.BookRequest
	}{
		{name: "missing name", req: model.BookRequest{Email: "a@b.io", Phone: "1"}},
		{name: "missing email", req: model.BookRequest{Name: "A", Phone: "1"}},
		{name: "missing phone", req: model.BookRequest{Name: "A", Email: "a@b.io"}},
		{name: "blank name", req: model.BookRequest{Name: "   ", Email: "a@b.io", Phone: "1"}},
		{name: "invalid email", req: model.BookRequest{Name: "A", Email: "not-an-email", Phone: "1"}},
		{name: "zero tickets", req: model.BookRequest{Name: "A", Email: "a@b.io", Phone: "1", NumberOfTickets: tickets(0)}},
		{name: "negative tickets", req: model.BookRequest{Name: "A", Email: "a@b.io", Phone: "1", NumberOfTickets: tickets(-2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.bookings.Reserve(ctx, alice, ev.ID, tt.req)
			assertKind(t, err, KindValidation)
		})
	}
	assert.Equal(t, 10, f.seats(t, ev.ID))
}

func TestReserveDefaultsToOneTicket(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvent(t, admin, 10)

	b, err := f.bookings.Reserve(context.Background(), alice, ev.ID,
		model.BookRequest{Name: "Ada", Email: "ADA@Example.com", Phone: "555"})
	require.NoError(t, err)
	assert.Equal(t, 1, b.NumberOfTickets)
	assert.Equal(t, "ada@example.com", b.AttendeeEmail)
	assert.Equal(t, 9, f.seats(t, ev.ID))
}

func TestReserveUnknownEvent(t *testing.T) {
	f := newFixture(t)
	_, err := f.bookings.Reserve(context.Background(), alice, "missing", bookReq(1))
	assertKind(t, err, KindNotFound)
}

func TestReserveUnauthenticated(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvent(t, admin, 10)
	_, err := f.bookings.Reserve(context.Background(), auth.Identity{}, ev.ID, bookReq(1))
	assertKind(t, err, KindUnauthenticated)
}

func TestReserveOverCapacityLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, admin, 5)

	_, err := f.bookings.Reserve(ctx, alice, ev.ID, bookReq(6))
	assertKind(t, err, KindCapacity)
	assert.Contains(t, err.Error(), "only 5 seats available")
	assert.Equal(t, 5, f.seats(t, ev.ID))

	mine, err := f.bookings.ListMine(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, mine)

	// The failed attempt does not block a later valid one.
	_, err = f.bookings.Reserve(ctx, alice, ev.ID, bookReq(5))
	require.NoError(t, err)
	assert.Equal(t, 0, f.seats(t, ev.ID))
}

func TestReserveTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, admin, 10)

	_, err := f.bookings.Reserve(ctx, alice, ev.ID, bookReq(2))
	require.NoError(t, err)

	_, err = f.bookings.Reserve(ctx, alice, ev.ID, bookReq(1))
	assertKind(t, err, KindConflict)
	assert.ErrorIs(t, err, repository.ErrAlreadyBooked)
	assert.Equal(t, 8, f.seats(t, ev.ID))
}

func TestConcurrentReserveLastSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, admin, 1)

	const numGoroutines = 20
	var wg sync.WaitGroup
	results := make(chan model.BookingResult, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := auth.Identity{UserID: fmt.Sprintf("user-%d", i), Role: model.RoleUser}
			b, err := f.bookings.Reserve(ctx, id, ev.ID, bookReq(1))
			results <- model.BookingResult{UserID: id.UserID, Booking: b, Error: err}
		}(i)
	}
	wg.Wait()
	close(results)

	success := 0
	for r := range results {
		if r.Error == nil {
			success++
			continue
		}
		kind := KindOf(r.Error)
		assert.True(t, kind == KindCapacity || kind == KindConflict, "unexpected error: %v", r.Error)
	}
	assert.Equal(t, 1, success, "only one booking should take the last seat")
	assert.Equal(t, 0, f.seats(t, ev.ID))
}

func TestConcurrentReserveSameUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, admin, 100)

	const numGoroutines = 10
	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.bookings.Reserve(ctx, alice, ev.ID, bookReq(2))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		assert.Equal(t, KindConflict, KindOf(err))
	}
	assert.Equal(t, 1, success)
	assert.Equal(t, 98, f.seats(t, ev.ID))
}

func TestCancelTwiceRestoresOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, admin, 10)

	b, err := f.bookings.Reserve(ctx, alice, ev.ID, bookReq(4))
	require.NoError(t, err)
	assert.Equal(t, 6, f.seats(t, ev.ID))

	_, err = f.bookings.Cancel(ctx, alice, b.ID)
	require.NoError(t, err)

	_, err = f.bookings.Cancel(ctx, alice, b.ID)
	assertKind(t, err, KindConflict)
	assert.ErrorIs(t, err, repository.ErrAlreadyCancelled)
	assert.Equal(t, 10, f.seats(t, ev.ID))
}

func TestConcurrentCancelRestoresOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, admin, 10)

	b, err := f.bookings.Reserve(ctx, alice, ev.ID, bookReq(4))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.bookings.Cancel(ctx, alice, b.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
		}
	}
	assert.Equal(t, 1, success)
	assert.Equal(t, 10, f.seats(t, ev.ID))
}

func TestCancelAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, admin, 10)

	b, err := f.bookings.Reserve(ctx, alice, ev.ID, bookReq(2))
	require.NoError(t, err)

	_, err = f.bookings.Cancel(ctx, bob, b.ID)
	assertKind(t, err, KindForbidden)
	assert.Equal(t, 8, f.seats(t, ev.ID))

	_, err = f.bookings.Cancel(ctx, bob, "missing")
	assertKind(t, err, KindNotFound)

	res, err := f.bookings.Cancel(ctx, admin, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SeatsReturned)

	stored, err := f.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, admin.UserID, stored.CancelledBy)
}

func TestCancelAfterEventDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, admin, 10)

	b, err := f.bookings.Reserve(ctx, alice, ev.ID, bookReq(2))
	require.NoError(t, err)
	require.NoError(t, f.events.DeleteEvent(ctx, admin, ev.ID))

	res, err := f.bookings.Cancel(ctx, alice, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.SeatsReturned)
	assert.Equal(t, ev.ID, res.EventID)
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.createEvent(t, admin, 10)
	second := f.createEvent(t, admin, 10)
	third := f.createEvent(t, admin, 10)

	clock := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	f.bookings.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	b1, err := f.bookings.Reserve(ctx, alice, first.ID, bookReq(1))
	require.NoError(t, err)
	b2, err := f.bookings.Reserve(ctx, alice, second.ID, bookReq(1))
	require.NoError(t, err)
	b3, err := f.bookings.Reserve(ctx, alice, third.ID, bookReq(1))
	require.NoError(t, err)
	_, err = f.bookings.Reserve(ctx, bob, first.ID, bookReq(1))
	require.NoError(t, err)
	_, err = f.bookings.Cancel(ctx, alice, b2.ID)
	require.NoError(t, err)

	mine, err := f.bookings.ListMine(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, b3.ID, mine[0].ID)
	assert.Equal(t, b1.ID, mine[1].ID)
	require.NotNil(t, mine[0].Event)
	assert.Equal(t, third.ID, mine[0].Event.ID)

	empty, err := f.bookings.ListMine(ctx, auth.Identity{UserID: "nobody", Role: model.RoleUser})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestGetBookingAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, admin, 10)
	b, err := f.bookings.Reserve(ctx, alice, ev.ID, bookReq(1))
	require.NoError(t, err)

	got, err := f.bookings.GetBooking(ctx, alice, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = f.bookings.GetBooking(ctx, admin, b.ID)
	require.NoError(t, err)

	_, err = f.bookings.GetBooking(ctx, bob, b.ID)
	assertKind(t, err, KindForbidden)

	_, err = f.bookings.GetBooking(ctx, alice, "missing")
	assertKind(t, err, KindNotFound)
}

func TestListAllAndForEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := auth.Identity{UserID: "organizer", Role: model.RoleAdmin}
	ev := f.createEvent(t, owner, 10)

	b, err := f.bookings.Reserve(ctx, alice, ev.ID, bookReq(1))
	require.NoError(t, err)
	_, err = f.bookings.Reserve(ctx, bob, ev.ID, bookReq(1))
	require.NoError(t, err)
	_, err = f.bookings.Cancel(ctx, alice, b.ID)
	require.NoError(t, err)

	all, err := f.bookings.ListAll(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.bookings.ListAll(ctx, alice)
	assertKind(t, err, KindForbidden)

	forEvent, err := f.bookings.ListForEvent(ctx, owner, ev.ID)
	require.NoError(t, err)
	assert.Len(t, forEvent, 2)

	_, err = f.bookings.ListForEvent(ctx, bob, ev.ID)
	assertKind(t, err, KindForbidden)

	_, err = f.bookings.ListForEvent(ctx, admin, "missing")
	assertKind(t, err, KindNotFound)
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, isValidEmail("ada@example.com"))
	assert.False(t, isValidEmail("ada@example"))
	assert.False(t, isValidEmail("@example.com"))
	assert.False(t, isValidEmail("a@b@c.com"))
	assert.False(t, isValidEmail("ada@example."))
}
