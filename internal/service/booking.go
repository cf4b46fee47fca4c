package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/metrics"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingService runs the booking lifecycle for a (user, event) pair:
// none → confirmed → cancelled. Cancelled is terminal; the pair can never be
// booked again.
type BookingService struct {
	bookings BookingStore
	events   EventStore
	cache    EventCache
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewBookingService constructs a BookingService. cache may be nil.
func NewBookingService(bookings BookingStore, events EventStore, cache EventCache, logger *zerolog.Logger) *BookingService {
	return &BookingService{bookings: bookings, events: events, cache: cache, logger: logger, now: time.Now}
}

// Reserve validates the attendee details and delegates the atomic
// seat-decrement-plus-insert to the store.
func (s *BookingService) Reserve(ctx context.Context, id auth.Identity, eventID string, req model.BookRequest) (*model.Booking, error) {
	if id.UserID == "" {
		return nil, errUnauthenticated
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(strings.ToLower(req.Email))
	phone := strings.TrimSpace(req.Phone)
	if name == "" || email == "" || phone == "" {
		return nil, s.reserveFailed(validationf("please provide name, email, and phone number"))
	}
	if !isValidEmail(email) {
		return nil, s.reserveFailed(validationf("please add a valid email"))
	}
	tickets := 1
	if req.NumberOfTickets != nil {
		tickets = *req.NumberOfTickets
	}
	if tickets < 1 {
		return nil, s.reserveFailed(validationf("number of tickets must be at least 1"))
	}
	if eventID == "" {
		return nil, s.reserveFailed(validationf("event id is required"))
	}

	booking := &model.Booking{
		ID:              uuid.NewString(),
		UserID:          id.UserID,
		EventID:         eventID,
		AttendeeName:    name,
		AttendeeEmail:   email,
		AttendeePhone:   phone,
		NumberOfTickets: tickets,
		Status:          model.StatusConfirmed,
		BookingDate:     s.now().UTC(),
	}

	created, err := s.bookings.Reserve(ctx, booking)
	if err != nil {
		var (
			seats *repository.SeatsError
			se    *Error
		)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			se = notFound(fmt.Sprintf("event not found with id of %s", eventID), err)
		case errors.As(err, &seats):
			se = capacity(fmt.Sprintf("only %d seats available", seats.Available), err)
		case errors.Is(err, repository.ErrAlreadyBooked):
			se = conflict("you have already booked this event", err)
		case errors.Is(err, repository.ErrCancelledBooking):
			se = conflict("you have already cancelled your booking for this event and cannot book it again", err)
		default:
			se = internal("reserve seats", err)
		}
		return nil, s.reserveFailed(se)
	}

	metrics.ObserveBooking("reserve", "success")
	metrics.AddSeatsReserved(created.NumberOfTickets)
	s.logger.Info().
		Str("booking_id", created.ID).
		Str("event_id", eventID).
		Str("user_id", id.UserID).
		Int("tickets", created.NumberOfTickets).
		Msg("booking confirmed")
	invalidate(ctx, s.cache, s.logger, eventID)
	return created, nil
}

func (s *BookingService) reserveFailed(err *Error) *Error {
	metrics.ObserveBooking("reserve", err.Kind.String())
	if err.Kind == KindInternal {
		s.logger.Error().Err(err.Err).Msg("reserve failed")
	}
	return err
}

// Cancel moves a booking to cancelled and returns its seats. Only the
// booking's owner or an admin may cancel it.
func (s *BookingService) Cancel(ctx context.Context, id auth.Identity, bookingID string) (*model.CancelResult, error) {
	if id.UserID == "" {
		return nil, errUnauthenticated
	}

	outcome, err := s.bookings.CancelBooking(ctx, bookingID, id.UserID, s.now().UTC(), func(b *model.Booking) error {
		if !auth.CapabilitiesFor(id, b.UserID).Any(auth.CapOwner, auth.CapAdmin) {
			return forbidden("you are not authorized to cancel this booking")
		}
		return nil
	})
	if err != nil {
		var se *Error
		switch {
		case errors.As(err, &se):
		case errors.Is(err, repository.ErrNotFound):
			se = notFound(fmt.Sprintf("booking not found with id of %s", bookingID), err)
		case errors.Is(err, repository.ErrAlreadyCancelled):
			se = conflict("this booking has already been cancelled", err)
		default:
			se = internal("cancel booking", err)
			s.logger.Error().Err(err).Str("booking_id", bookingID).Msg("cancel failed")
		}
		metrics.ObserveBooking("cancel", se.Kind.String())
		return nil, se
	}

	b := outcome.Booking
	if outcome.EventMissing {
		s.logger.Warn().
			Str("booking_id", b.ID).
			Str("event_id", b.EventID).
			Msg("associated event not found; seats not returned")
	}

	metrics.ObserveBooking("cancel", "success")
	metrics.AddSeatsReturned(outcome.SeatsReturned)
	s.logger.Info().
		Str("booking_id", b.ID).
		Str("event_id", b.EventID).
		Str("by", id.UserID).
		Int("seats_returned", outcome.SeatsReturned).
		Msg("booking cancelled")
	invalidate(ctx, s.cache, s.logger, b.EventID)

	return &model.CancelResult{
		Message:       "Booking cancelled successfully",
		BookingID:     b.ID,
		EventID:       b.EventID,
		SeatsReturned: outcome.SeatsReturned,
	}, nil
}

// GetBooking returns a booking visible to its owner or an admin.
func (s *BookingService) GetBooking(ctx context.Context, id auth.Identity, bookingID string) (*model.Booking, error) {
	if id.UserID == "" {
		return nil, errUnauthenticated
	}

	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(fmt.Sprintf("booking not found with id of %s", bookingID), err)
		}
		return nil, internal("get booking", err)
	}
	if !auth.CapabilitiesFor(id, b.UserID).Any(auth.CapOwner, auth.CapAdmin) {
		return nil, forbidden(fmt.Sprintf("user %s is not authorized to view this booking", id.UserID))
	}
	return b, nil
}

// ListMine returns the requester's non-cancelled bookings, newest first.
func (s *BookingService) ListMine(ctx context.Context, id auth.Identity) ([]model.Booking, error) {
	if id.UserID == "" {
		return nil, errUnauthenticated
	}
	bookings, err := s.bookings.ListBookingsByUser(ctx, id.UserID, false)
	if err != nil {
		return nil, internal("list bookings", err)
	}
	return nonNil(bookings), nil
}

// ListAll returns every booking including cancelled ones. Admin only.
func (s *BookingService) ListAll(ctx context.Context, id auth.Identity) ([]model.Booking, error) {
	if id.UserID == "" {
		return nil, errUnauthenticated
	}
	if !id.IsAdmin() {
		return nil, forbidden("not authorized to access this route")
	}
	bookings, err := s.bookings.ListAllBookings(ctx)
	if err != nil {
		return nil, internal("list all bookings", err)
	}
	return nonNil(bookings), nil
}

// ListForEvent returns all bookings of an event for its owner or an admin.
func (s *BookingService) ListForEvent(ctx context.Context, id auth.Identity, eventID string) ([]model.Booking, error) {
	if id.UserID == "" {
		return nil, errUnauthenticated
	}

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(fmt.Sprintf("event not found with id of %s", eventID), err)
		}
		return nil, internal("get event", err)
	}
	if !auth.CapabilitiesFor(id, event.UserID).Any(auth.CapOwner, auth.CapAdmin) {
		return nil, forbidden(fmt.Sprintf("user %s is not authorized to view bookings for this event", id.UserID))
	}

	bookings, err := s.bookings.ListBookingsByEvent(ctx, eventID)
	if err != nil {
		return nil, internal("list event bookings", err)
	}
	return nonNil(bookings), nil
}

// nonNil returns an empty slice rather than null for better client compatibility.
func nonNil(bookings []model.Booking) []model.Booking {
	if bookings == nil {
		return []model.Booking{}
	}
	return bookings
}

// isValidEmail does a basic structural check (no external deps).
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	domain := parts[1]
	return len(parts[0]) > 0 &&
		strings.Contains(domain, ".") &&
		!strings.HasPrefix(domain, ".") &&
		!strings.HasSuffix(domain, ".")
}
