// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/cache"
	"github.com/Shivanand-hulikatti/event-booking/internal/metrics"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	maxTitleLength = 100
	maxTotalSeats  = 100_000
)

// EventStore persists events.
type EventStore interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	ListEvents(ctx context.Context) ([]model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	UpdateEvent(ctx context.Context, id string, apply func(*model.Event) error) (*model.Event, error)
	DeleteEvent(ctx context.Context, id string, check func(*model.Event) error) error
}

// BookingStore persists bookings and performs the two-record reserve and
// cancel transactions.
type BookingStore interface {
	Reserve(ctx context.Context, b *model.Booking) (*model.Booking, error)
	CancelBooking(ctx context.Context, id, cancelledBy string, at time.Time, authorize func(*model.Booking) error) (*repository.CancelOutcome, error)
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	ListBookingsByUser(ctx context.Context, userID string, includeCancelled bool) ([]model.Booking, error)
	ListBookingsByEvent(ctx context.Context, eventID string) ([]model.Booking, error)
	ListAllBookings(ctx context.Context) ([]model.Booking, error)
}

// EventCache is an optional read-through cache for event reads. Setters
// take the generation read before the store load and skip the write when an
// invalidation happened in between.
type EventCache interface {
	Events(ctx context.Context) ([]model.Event, error)
	ListGeneration(ctx context.Context) (int64, error)
	SetEvents(ctx context.Context, events []model.Event, gen int64) error
	Event(ctx context.Context, id string) (*model.Event, error)
	EventGeneration(ctx context.Context, id string) (int64, error)
	SetEvent(ctx context.Context, e *model.Event, gen int64) error
	Invalidate(ctx context.Context, ids ...string) error
}

// EventService orchestrates event-related business operations.
type EventService struct {
	events EventStore
	cache  EventCache
	logger *zerolog.Logger
	now    func() time.Time
}

// NewEventService constructs an EventService. cache may be nil.
func NewEventService(events EventStore, cache EventCache, logger *zerolog.Logger) *EventService {
	return &EventService{events: events, cache: cache, logger: logger, now: time.Now}
}

// CreateEvent validates the request and persists a new event owned by the
// requester. Only admins may create events.
func (s *EventService) CreateEvent(ctx context.Context, id auth.Identity, req model.CreateEventRequest) (*model.Event, error) {
	if id.UserID == "" {
		return nil, errUnauthenticated
	}
	if !id.IsAdmin() {
		return nil, forbidden("only admins can create events")
	}

	event := &model.Event{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		DateTime:    req.DateTime.UTC(),
		Location:    strings.TrimSpace(req.Location),
		TotalSeats:  req.TotalSeats,
		Image:       strings.TrimSpace(req.Image),
		UserID:      id.UserID,
		CreatedAt:   s.now().UTC(),
	}
	event.AvailableSeats = event.TotalSeats
	if req.AvailableSeats != nil {
		event.AvailableSeats = *req.AvailableSeats
	}
	if event.Image == "" {
		event.Image = model.DefaultImage
	}
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	if err := s.events.CreateEvent(ctx, event); err != nil {
		return nil, internal("create event", err)
	}

	s.logger.Info().
		Str("event_id", event.ID).
		Str("owner", event.UserID).
		Int("total_seats", event.TotalSeats).
		Msg("event created")
	invalidate(ctx, s.cache, s.logger)
	return event, nil
}

// ListEvents returns all events ordered by start time.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	var (
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		events, err := s.cache.Events(ctx)
		if err == nil {
			metrics.ObserveCache("hit")
			return events, nil
		}
		s.observeCacheMiss(err, "events list")
		gen, cacheable = s.generation(s.cache.ListGeneration(ctx))
	}

	events, err := s.events.ListEvents(ctx)
	if err != nil {
		return nil, internal("list events", err)
	}
	if events == nil {
		events = []model.Event{}
	}

	if cacheable {
		s.refreshed(s.cache.SetEvents(ctx, events, gen), "events list")
	}
	return events, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, eventID string) (*model.Event, error) {
	if eventID == "" {
		return nil, validationf("event id is required")
	}

	var (
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		event, err := s.cache.Event(ctx, eventID)
		if err == nil {
			metrics.ObserveCache("hit")
			return event, nil
		}
		s.observeCacheMiss(err, "event")
		gen, cacheable = s.generation(s.cache.EventGeneration(ctx, eventID))
	}

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(fmt.Sprintf("event not found with id of %s", eventID), err)
		}
		return nil, internal("get event", err)
	}

	if cacheable {
		s.refreshed(s.cache.SetEvent(ctx, event, gen), "event "+eventID)
	}
	return event, nil
}

// UpdateEvent applies a partial update. Only the event's owner or an admin
// may update it. Changing totalSeats without an explicit availableSeats
// shifts availableSeats by the same amount so booked seats stay booked.
func (s *EventService) UpdateEvent(ctx context.Context, id auth.Identity, eventID string, req model.UpdateEventRequest) (*model.Event, error) {
	if id.UserID == "" {
		return nil, errUnauthenticated
	}

	updated, err := s.events.UpdateEvent(ctx, eventID, func(e *model.Event) error {
		if !auth.CapabilitiesFor(id, e.UserID).Any(auth.CapOwner, auth.CapAdmin) {
			return forbidden(fmt.Sprintf("user %s is not authorized to update this event", id.UserID))
		}
		applyPatch(e, req)
		return validateEvent(e)
	})
	if err != nil {
		return nil, s.eventError(err, eventID, "update event")
	}

	s.logger.Info().
		Str("event_id", eventID).
		Str("by", id.UserID).
		Int("total_seats", updated.TotalSeats).
		Int("available_seats", updated.AvailableSeats).
		Msg("event updated")
	invalidate(ctx, s.cache, s.logger, eventID)
	return updated, nil
}

// DeleteEvent removes an event. Only the event's owner or an admin may
// delete it. Existing bookings are kept.
func (s *EventService) DeleteEvent(ctx context.Context, id auth.Identity, eventID string) error {
	if id.UserID == "" {
		return errUnauthenticated
	}

	err := s.events.DeleteEvent(ctx, eventID, func(e *model.Event) error {
		if !auth.CapabilitiesFor(id, e.UserID).Any(auth.CapOwner, auth.CapAdmin) {
			return forbidden(fmt.Sprintf("user %s is not authorized to delete this event", id.UserID))
		}
		return nil
	})
	if err != nil {
		return s.eventError(err, eventID, "delete event")
	}

	s.logger.Info().Str("event_id", eventID).Str("by", id.UserID).Msg("event deleted")
	invalidate(ctx, s.cache, s.logger, eventID)
	return nil
}

func (s *EventService) eventError(err error, eventID, op string) error {
	var se *Error
	switch {
	case errors.As(err, &se):
		return se
	case errors.Is(err, repository.ErrNotFound):
		return notFound(fmt.Sprintf("event not found with id of %s", eventID), err)
	default:
		return internal(op, err)
	}
}

func (s *EventService) observeCacheMiss(err error, what string) {
	if errors.Is(err, cache.ErrMiss) {
		metrics.ObserveCache("miss")
		return
	}
	metrics.ObserveCache("error")
	s.logger.Warn().Err(err).Msgf("%s cache read failed", what)
}

// generation reports whether a cache refill may be attempted at gen.
func (s *EventService) generation(gen int64, err error) (int64, bool) {
	if err != nil {
		s.logger.Warn().Err(err).Msg("event cache generation read failed")
		return 0, false
	}
	return gen, true
}

func (s *EventService) refreshed(err error, what string) {
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrStale):
		s.logger.Debug().Msgf("%s changed during load; cache not refilled", what)
	default:
		s.logger.Warn().Err(err).Msgf("%s cache refresh failed", what)
	}
}

func applyPatch(e *model.Event, req model.UpdateEventRequest) {
	if req.Title != nil {
		e.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		e.Description = strings.TrimSpace(*req.Description)
	}
	if req.DateTime != nil {
		e.DateTime = req.DateTime.UTC()
	}
	if req.Location != nil {
		e.Location = strings.TrimSpace(*req.Location)
	}
	if req.Image != nil {
		e.Image = strings.TrimSpace(*req.Image)
		if e.Image == "" {
			e.Image = model.DefaultImage
		}
	}
	if req.TotalSeats != nil {
		booked := e.BookedSeats()
		e.TotalSeats = *req.TotalSeats
		if req.AvailableSeats == nil {
			e.AvailableSeats = e.TotalSeats - booked
		}
	}
	if req.AvailableSeats != nil {
		e.AvailableSeats = *req.AvailableSeats
	}
}

func validateEvent(e *model.Event) error {
	switch {
	case e.Title == "":
		return validationf("please add a title")
	case len([]rune(e.Title)) > maxTitleLength:
		return validationf("title cannot be more than %d characters", maxTitleLength)
	case e.Description == "":
		return validationf("please add a description")
	case e.DateTime.IsZero():
		return validationf("please add a date and time")
	case e.Location == "":
		return validationf("please add a location")
	case e.TotalSeats < 1:
		return validationf("total seats must be at least 1")
	case e.TotalSeats > maxTotalSeats:
		return validationf("total seats cannot exceed 100,000")
	case e.AvailableSeats < 0:
		return validationf("available seats cannot be negative")
	case e.AvailableSeats > e.TotalSeats:
		return validationf("available seats cannot be greater than total seats")
	}
	return nil
}

// invalidate drops cached event reads. Failures are logged and never fail
// the caller.
func invalidate(ctx context.Context, c EventCache, logger *zerolog.Logger, ids ...string) {
	if c == nil {
		return
	}
	if err := c.Invalidate(ctx, ids...); err != nil {
		logger.Warn().Err(err).Strs("event_ids", ids).Msg("event cache invalidation failed")
	}
}
