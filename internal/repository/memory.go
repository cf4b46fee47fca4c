package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// MemoryStore keeps events and bookings in process memory. A single mutex
// guards both maps, so every two-record operation is atomic.
type MemoryStore struct {
	mu       sync.Mutex
	events   map[string]*model.Event
	bookings map[string]*memBooking
	seq      int64
}

type memBooking struct {
	booking model.Booking
	seq     int64
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:   make(map[string]*model.Event),
		bookings: make(map[string]*memBooking),
	}
}

// CreateEvent stores a copy of e.
func (m *MemoryStore) CreateEvent(ctx context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	m.events[e.ID] = &cp
	return nil
}

// ListEvents returns all events ordered by start time ascending.
func (m *MemoryStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]model.Event, 0, len(m.events))
	for _, e := range m.events {
		events = append(events, *e)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].DateTime.Equal(events[j].DateTime) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].DateTime.Before(events[j].DateTime)
	})
	return events, nil
}

// GetEvent returns a copy of the event or ErrNotFound.
func (m *MemoryStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// UpdateEvent applies apply to a copy of the event and stores it when apply
// succeeds.
func (m *MemoryStore) UpdateEvent(ctx context.Context, id string, apply func(*model.Event) error) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	if err := apply(&cp); err != nil {
		return nil, err
	}
	stored := cp
	m.events[id] = &stored
	return &cp, nil
}

// DeleteEvent removes the event when check allows it.
func (m *MemoryStore) DeleteEvent(ctx context.Context, id string, check func(*model.Event) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[id]
	if !ok {
		return ErrNotFound
	}
	cp := *e
	if err := check(&cp); err != nil {
		return err
	}
	delete(m.events, id)
	return nil
}

// Reserve creates a confirmed booking and takes its seats atomically.
func (m *MemoryStore) Reserve(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[b.EventID]
	if !ok {
		return nil, ErrNotFound
	}
	if e.AvailableSeats < b.NumberOfTickets {
		return nil, &SeatsError{Available: e.AvailableSeats, Requested: b.NumberOfTickets}
	}

	var hasCancelled bool
	for _, mb := range m.bookings {
		if mb.booking.UserID != b.UserID || mb.booking.EventID != b.EventID {
			continue
		}
		switch mb.booking.Status {
		case model.StatusConfirmed:
			return nil, ErrAlreadyBooked
		case model.StatusCancelled:
			hasCancelled = true
		}
	}
	if hasCancelled {
		return nil, ErrCancelledBooking
	}

	e.AvailableSeats -= b.NumberOfTickets
	m.seq++
	m.bookings[b.ID] = &memBooking{booking: *b, seq: m.seq}

	out := *b
	out.Event = e.Summary()
	return &out, nil
}

// CancelBooking moves the booking to cancelled when authorize allows it,
// returning confirmed seats to the event if it still exists.
func (m *MemoryStore) CancelBooking(ctx context.Context, id, cancelledBy string, at time.Time, authorize func(*model.Booking) error) (*CancelOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := authorize(m.populate(mb.booking)); err != nil {
		return nil, err
	}
	if mb.booking.Status == model.StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	outcome := &CancelOutcome{}
	if mb.booking.Status == model.StatusConfirmed {
		if e, ok := m.events[mb.booking.EventID]; ok {
			outcome.SeatsReturned = restoredSeats(e.AvailableSeats, e.TotalSeats, mb.booking.NumberOfTickets)
			e.AvailableSeats += outcome.SeatsReturned
		} else {
			outcome.EventMissing = true
		}
	}

	mb.booking.Status = model.StatusCancelled
	cancelledAt := at
	mb.booking.CancelledAt = &cancelledAt
	mb.booking.CancelledBy = cancelledBy

	outcome.Booking = m.populate(mb.booking)
	return outcome, nil
}

// GetBooking returns the booking with its event populated, or ErrNotFound.
func (m *MemoryStore) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.populate(mb.booking), nil
}

// ListBookingsByUser returns a user's bookings, newest first.
func (m *MemoryStore) ListBookingsByUser(ctx context.Context, userID string, includeCancelled bool) ([]model.Booking, error) {
	return m.list(func(b *model.Booking) bool {
		return b.UserID == userID && (includeCancelled || b.Status != model.StatusCancelled)
	}, true), nil
}

// ListBookingsByEvent returns all bookings for an event in booking order.
func (m *MemoryStore) ListBookingsByEvent(ctx context.Context, eventID string) ([]model.Booking, error) {
	return m.list(func(b *model.Booking) bool { return b.EventID == eventID }, false), nil
}

// ListAllBookings returns every booking, newest first.
func (m *MemoryStore) ListAllBookings(ctx context.Context) ([]model.Booking, error) {
	return m.list(func(*model.Booking) bool { return true }, true), nil
}

func (m *MemoryStore) list(keep func(*model.Booking) bool, newestFirst bool) []model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]*memBooking, 0)
	for _, mb := range m.bookings {
		if keep(&mb.booking) {
			matched = append(matched, mb)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.booking.BookingDate.Equal(b.booking.BookingDate) {
			if newestFirst {
				return a.booking.BookingDate.After(b.booking.BookingDate)
			}
			return a.booking.BookingDate.Before(b.booking.BookingDate)
		}
		if newestFirst {
			return a.seq > b.seq
		}
		return a.seq < b.seq
	})

	out := make([]model.Booking, 0, len(matched))
	for _, mb := range matched {
		out = append(out, *m.populate(mb.booking))
	}
	return out
}

// populate copies b and attaches the current event summary. Callers hold mu.
func (m *MemoryStore) populate(b model.Booking) *model.Booking {
	b.Event = nil
	if e, ok := m.events[b.EventID]; ok {
		b.Event = e.Summary()
	}
	if b.CancelledAt != nil {
		at := *b.CancelledAt
		b.CancelledAt = &at
	}
	return &b
}
