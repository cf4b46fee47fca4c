// Package model defines the core domain types for the event booking system.
package model

import "time"

// Booking statuses.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusPending   = "pending"
)

// Roles carried in access tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultImage is stored when an event is created without an image.
const DefaultImage = "no-photo.jpg"

// Event represents a bookable event owned by a user.
type Event struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	DateTime       time.Time `json:"dateTime"`
	Location       string    `json:"location"`
	TotalSeats     int       `json:"totalSeats"`
	AvailableSeats int       `json:"availableSeats"`
	Image          string    `json:"image"`
	UserID         string    `json:"user"`
	CreatedAt      time.Time `json:"createdAt"`
}

// BookedSeats returns the number of seats currently held by bookings.
func (e *Event) BookedSeats() int {
	return e.TotalSeats - e.AvailableSeats
}

// EventSummary is the subset of an event embedded in booking responses.
type EventSummary struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	DateTime       time.Time `json:"dateTime"`
	Location       string    `json:"location"`
	AvailableSeats int       `json:"availableSeats"`
	Image          string    `json:"image"`
}

// Summary projects an event into the shape embedded in bookings.
func (e *Event) Summary() *EventSummary {
	return &EventSummary{
		ID:             e.ID,
		Title:          e.Title,
		Description:    e.Description,
		DateTime:       e.DateTime,
		Location:       e.Location,
		AvailableSeats: e.AvailableSeats,
		Image:          e.Image,
	}
}

// Booking links a user to an event. Bookings are never deleted; cancellation
// is a terminal status.
type Booking struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user"`
	EventID         string        `json:"eventId"`
	Event           *EventSummary `json:"event,omitempty"`
	AttendeeName    string        `json:"attendeeName"`
	AttendeeEmail   string        `json:"attendeeEmail"`
	AttendeePhone   string        `json:"attendeePhone"`
	NumberOfTickets int           `json:"numberOfTickets"`
	Status          string        `json:"status"`
	BookingDate     time.Time     `json:"bookingDate"`
	CancelledAt     *time.Time    `json:"cancelledAt,omitempty"`
	CancelledBy     string        `json:"cancelledBy,omitempty"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	DateTime       time.Time `json:"dateTime"`
	Location       string    `json:"location"`
	TotalSeats     int       `json:"totalSeats"`
	AvailableSeats *int      `json:"availableSeats,omitempty"`
	Image          string    `json:"image,omitempty"`
}

// UpdateEventRequest is a partial update; nil fields are left unchanged.
type UpdateEventRequest struct {
	Title          *string    `json:"title,omitempty"`
	Description    *string    `json:"description,omitempty"`
	DateTime       *time.Time `json:"dateTime,omitempty"`
	Location       *string    `json:"location,omitempty"`
	TotalSeats     *int       `json:"totalSeats,omitempty"`
	AvailableSeats *int       `json:"availableSeats,omitempty"`
	Image          *string    `json:"image,omitempty"`
}

// BookRequest is the payload for booking tickets. NumberOfTickets defaults
// to 1 when omitted.
type BookRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	NumberOfTickets *int   `json:"numberOfTickets,omitempty"`
}

// CancelResult summarises a successful cancellation.
type CancelResult struct {
	Message       string `json:"message"`
	BookingID     string `json:"bookingId"`
	EventID       string `json:"eventId"`
	// SeatsReturned is the number of seats actually given back to the event.
	// It is 0 when the event no longer exists and can be below the booking's
	// numberOfTickets when restoring all of them would exceed totalSeats.
	SeatsReturned int `json:"seatsReturned"`
}

// Response is the standard JSON success envelope.
type Response struct {
	Success bool   `json:"success"`
	Count   *int   `json:"count,omitempty"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// BookingResult summarises the outcome of a single booking attempt.
// Used in the concurrent test harness.
type BookingResult struct {
	UserID  string
	Booking *Booking
	Error   error
}
