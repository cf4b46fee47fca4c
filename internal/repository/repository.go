package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE raised by the partial unique index on
// confirmed bookings.
const uniqueViolation = "23505"

const eventColumns = `id, title, description, date_time, location, total_seats, available_seats, image, user_id, created_at`

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.DateTime, &e.Location,
		&e.TotalSeats, &e.AvailableSeats, &e.Image, &e.UserID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateEvent inserts a fully populated event.
func (r *EventRepository) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Title, e.Description, e.DateTime, e.Location,
		e.TotalSeats, e.AvailableSeats, e.Image, e.UserID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns all events ordered by start time ascending.
func (r *EventRepository) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 ORDER BY date_time ASC, created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// GetEvent returns a single event or ErrNotFound.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// UpdateEvent locks the event row, lets apply mutate it, and writes the
// result back in the same transaction. An error from apply aborts the update
// and is returned unchanged.
func (r *EventRepository) UpdateEvent(ctx context.Context, id string, apply func(*model.Event) error) (*model.Event, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}

	if err := apply(e); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE events
		 SET title = $2, description = $3, date_time = $4, location = $5,
		     total_seats = $6, available_seats = $7, image = $8
		 WHERE id = $1`,
		e.ID, e.Title, e.Description, e.DateTime, e.Location,
		e.TotalSeats, e.AvailableSeats, e.Image,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return e, nil
}

// DeleteEvent locks the event row, runs check against it, and deletes it.
// Bookings referencing the event are kept.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string, check func(*model.Event) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock event row: %w", err)
	}

	if err := check(e); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// BookingRepository handles persistence for bookings.
type BookingRepository struct {
	db *pgxpool.Pool
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: db}
}

// bookingSelect joins the event so reads come back populated. The event side
// is nullable because events may be deleted while bookings remain.
const bookingSelect = `
	SELECT b.id, b.user_id, b.event_id, b.attendee_name, b.attendee_email, b.attendee_phone,
	       b.number_of_tickets, b.status, b.booking_date, b.cancelled_at, b.cancelled_by,
	       e.id, e.title, e.description, e.date_time, e.location, e.available_seats, e.image
	FROM bookings b
	LEFT JOIN events e ON e.id = b.event_id`

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b           model.Booking
		cancelledBy *string
		evID        *string
		evTitle     *string
		evDesc      *string
		evLocation  *string
		evImage     *string
		evAvailable *int
		evDateTime  *time.Time
	)
	err := row.Scan(&b.ID, &b.UserID, &b.EventID, &b.AttendeeName, &b.AttendeeEmail, &b.AttendeePhone,
		&b.NumberOfTickets, &b.Status, &b.BookingDate, &b.CancelledAt, &cancelledBy,
		&evID, &evTitle, &evDesc, &evDateTime, &evLocation, &evAvailable, &evImage)
	if err != nil {
		return nil, err
	}
	if cancelledBy != nil {
		b.CancelledBy = *cancelledBy
	}
	if evID != nil {
		b.Event = &model.EventSummary{
			ID:             *evID,
			Title:          *evTitle,
			Description:    *evDesc,
			DateTime:       *evDateTime,
			Location:       *evLocation,
			AvailableSeats: *evAvailable,
			Image:          *evImage,
		}
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// Reserve creates a confirmed booking and takes its seats in one transaction.
//
// The seat counter is decremented with a conditional UPDATE
// (available_seats >= tickets) so concurrent reservations cannot oversell:
// under READ COMMITTED a blocked UPDATE re-evaluates its WHERE clause against
// the committed row. The pre-checks only choose an error message; the partial
// unique index on confirmed (user_id, event_id) is what rejects a racing
// duplicate, surfacing as SQLSTATE 23505.
func (r *BookingRepository) Reserve(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// ── Step 1: the event must exist and currently cover the request. ──────
	var available int
	err = tx.QueryRow(ctx,
		`SELECT available_seats FROM events WHERE id = $1`, b.EventID,
	).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read event seats: %w", err)
	}
	if available < b.NumberOfTickets {
		return nil, &SeatsError{Available: available, Requested: b.NumberOfTickets}
	}

	// ── Step 2: one booking lifecycle per (user, event). ───────────────────
	var hasConfirmed, hasCancelled bool
	err = tx.QueryRow(ctx,
		`SELECT
		     EXISTS (SELECT 1 FROM bookings WHERE user_id = $1 AND event_id = $2 AND status = 'confirmed'),
		     EXISTS (SELECT 1 FROM bookings WHERE user_id = $1 AND event_id = $2 AND status = 'cancelled')`,
		b.UserID, b.EventID,
	).Scan(&hasConfirmed, &hasCancelled)
	if err != nil {
		return nil, fmt.Errorf("check existing bookings: %w", err)
	}
	if hasConfirmed {
		return nil, ErrAlreadyBooked
	}
	if hasCancelled {
		return nil, ErrCancelledBooking
	}

	// ── Step 3: compare-and-decrement the seat counter. ────────────────────
	var ev model.EventSummary
	err = tx.QueryRow(ctx,
		`UPDATE events
		 SET available_seats = available_seats - $2
		 WHERE id = $1 AND available_seats >= $2
		 RETURNING id, title, description, date_time, location, available_seats, image`,
		b.EventID, b.NumberOfTickets,
	).Scan(&ev.ID, &ev.Title, &ev.Description, &ev.DateTime, &ev.Location, &ev.AvailableSeats, &ev.Image)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("decrement available_seats: %w", err)
		}
		// Lost the race: report what is left, or that the event vanished.
		err = tx.QueryRow(ctx, `SELECT available_seats FROM events WHERE id = $1`, b.EventID).Scan(&available)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("read event seats: %w", err)
		}
		return nil, &SeatsError{Available: available, Requested: b.NumberOfTickets}
	}

	// ── Step 4: create the booking record. ─────────────────────────────────
	_, err = tx.Exec(ctx,
		`INSERT INTO bookings (id, user_id, event_id, attendee_name, attendee_email, attendee_phone,
		                       number_of_tickets, status, booking_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.UserID, b.EventID, b.AttendeeName, b.AttendeeEmail, b.AttendeePhone,
		b.NumberOfTickets, b.Status, b.BookingDate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyBooked
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	// ── Step 5: commit; only now do other transactions see either write. ───
	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyBooked
		}
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	out := *b
	out.Event = &ev
	return &out, nil
}

// CancelBooking locks the booking, runs authorize against it, and moves it to
// cancelled, returning confirmed seats to the event when it still exists.
// The status check happens under the row lock, so seats are returned once
// even when two cancellations race.
func (r *BookingRepository) CancelBooking(ctx context.Context, id, cancelledBy string, at time.Time, authorize func(*model.Booking) error) (*CancelOutcome, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := scanBooking(tx.QueryRow(ctx, bookingSelect+` WHERE b.id = $1 FOR UPDATE OF b`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock booking row: %w", err)
	}

	if err := authorize(b); err != nil {
		return nil, err
	}
	if b.Status == model.StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	outcome := &CancelOutcome{}
	if b.Status == model.StatusConfirmed {
		var available, total int
		err = tx.QueryRow(ctx,
			`SELECT available_seats, total_seats FROM events WHERE id = $1 FOR UPDATE`, b.EventID,
		).Scan(&available, &total)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			outcome.EventMissing = true
		case err != nil:
			return nil, fmt.Errorf("lock event row: %w", err)
		default:
			outcome.SeatsReturned = restoredSeats(available, total, b.NumberOfTickets)
			_, err = tx.Exec(ctx,
				`UPDATE events SET available_seats = available_seats + $2 WHERE id = $1`,
				b.EventID, outcome.SeatsReturned,
			)
			if err != nil {
				return nil, fmt.Errorf("restore available_seats: %w", err)
			}
			if b.Event != nil {
				b.Event.AvailableSeats = available + outcome.SeatsReturned
			}
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE bookings
		 SET status = 'cancelled', cancelled_at = $2, cancelled_by = $3
		 WHERE id = $1`,
		id, at, cancelledBy,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	b.Status = model.StatusCancelled
	b.CancelledAt = &at
	b.CancelledBy = cancelledBy
	outcome.Booking = b
	return outcome, nil
}

// GetBooking returns a single booking with its event populated, or ErrNotFound.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, bookingSelect+` WHERE b.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// ListBookingsByUser returns a user's bookings, newest first. Cancelled
// bookings are included only when includeCancelled is set.
func (r *BookingRepository) ListBookingsByUser(ctx context.Context, userID string, includeCancelled bool) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx,
		bookingSelect+`
		 WHERE b.user_id = $1 AND ($2 OR b.status <> 'cancelled')
		 ORDER BY b.booking_date DESC`,
		userID, includeCancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("list user bookings: %w", err)
	}
	return collectBookings(rows)
}

// ListBookingsByEvent returns all bookings for an event in booking order.
func (r *BookingRepository) ListBookingsByEvent(ctx context.Context, eventID string) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx,
		bookingSelect+`
		 WHERE b.event_id = $1
		 ORDER BY b.booking_date ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list event bookings: %w", err)
	}
	return collectBookings(rows)
}

// ListAllBookings returns every booking, newest first.
func (r *BookingRepository) ListAllBookings(ctx context.Context) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx, bookingSelect+` ORDER BY b.booking_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return collectBookings(rows)
}
