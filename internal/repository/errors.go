// Package repository implements persistence for events and bookings. The
// Postgres implementation uses pgx directly (no ORM); the in-memory
// implementation serves tests and database-less local runs.
package repository

import (
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrInsufficientSeats is returned when an event cannot cover the requested tickets.
var ErrInsufficientSeats = errors.New("not enough seats available")

// ErrAlreadyBooked is returned when the user already holds a confirmed booking
// for the event.
var ErrAlreadyBooked = errors.New("already booked")

// ErrCancelledBooking is returned when the user previously cancelled a booking
// for the event; such a pair can never be booked again.
var ErrCancelledBooking = errors.New("cancelled booking exists")

// ErrAlreadyCancelled is returned when cancelling a booking twice.
var ErrAlreadyCancelled = errors.New("already cancelled")

// SeatsError reports how many seats were left when a reservation failed.
// It matches ErrInsufficientSeats under errors.Is.
type SeatsError struct {
	Available int
	Requested int
}

func (e *SeatsError) Error() string {
	return fmt.Sprintf("requested %d seats, only %d available", e.Requested, e.Available)
}

func (e *SeatsError) Is(target error) bool {
	return target == ErrInsufficientSeats
}

// CancelOutcome describes the effect of a successful cancellation.
type CancelOutcome struct {
	Booking       *model.Booking
	SeatsReturned int
	// EventMissing is set when the booking's event no longer exists and
	// seat restoration was skipped.
	EventMissing bool
}

// restoredSeats returns how many seats a cancellation of tickets gives back
// without pushing available above total.
func restoredSeats(available, total, tickets int) int {
	next := available + tickets
	if next > total {
		next = total
	}
	if next < available {
		return 0
	}
	return next - available
}
