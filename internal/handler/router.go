package handler

import (
	"context"
	"net/http"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/config"
	"github.com/Shivanand-hulikatti/event-booking/internal/metrics"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RouterConfig carries everything NewRouter wires together.
type RouterConfig struct {
	Events    *service.EventService
	Bookings  *service.BookingService
	Tokens    *auth.Tokens
	Logger    *zerolog.Logger
	HTTP      config.HTTPConfig
	RateLimit config.RateLimitConfig
	// Ping reports storage health for /health. Nil means always healthy.
	Ping func(ctx context.Context) error
}

// NewRouter builds the chi router with the global middleware stack, the
// /api/v1 routes, /health and /metrics.
func NewRouter(cfg RouterConfig) http.Handler {
	events := NewEventHandler(cfg.Events, cfg.Bookings, cfg.Logger)
	bookings := NewBookingHandler(cfg.Bookings, cfg.Logger)
	requireAuth := RequireAuth(cfg.Tokens)

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(cfg.Logger))      // structured access log
	r.Use(CORS(cfg.HTTP.CORSOrigins))

	r.Get("/health", HealthCheck(cfg.Ping))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(cfg.RateLimit))

		r.Route("/events", func(r chi.Router) {
			r.Get("/", events.ListEvents)
			r.Get("/{id}", events.GetEvent)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", events.CreateEvent)
				r.Put("/{id}", events.UpdateEvent)
				r.Delete("/{id}", events.DeleteEvent)
				r.Post("/{id}/book", events.Book)
				r.Get("/{id}/bookings", events.ListEventBookings)
			})
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", bookings.ListMine)
			r.Get("/all", bookings.ListAll)
			r.Get("/{id}", bookings.Get)
			r.Delete("/{id}", bookings.Cancel)
		})
	})

	if cfg.HTTP.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.HTTP.StaticDir)))
	}

	return r
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
