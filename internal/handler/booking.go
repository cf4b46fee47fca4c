package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/event-booking/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// BookingHandler serves the /bookings routes.
type BookingHandler struct {
	bookings *service.BookingService
	logger   *zerolog.Logger
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(bookings *service.BookingService, logger *zerolog.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

// ListMine handles GET /bookings
// Returns the caller's active bookings, newest first.
func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.ListMine(r.Context(), identity(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeList(w, bookings, len(bookings))
}

// ListAll handles GET /bookings/all
func (h *BookingHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.ListAll(r.Context(), identity(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeList(w, bookings, len(bookings))
}

// Get handles GET /bookings/{id}
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookings.GetBooking(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, booking)
}

// Cancel handles DELETE /bookings/{id}
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	result, err := h.bookings.Cancel(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, result)
}
