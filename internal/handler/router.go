package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig carries everything NewRouter mounts. Metrics may be nil.
type RouterConfig struct {
	Events   *EventHandler
	Bookings *BookingHandler
	Reviews  *ReviewHandler
	Auth     *AuthHandler
	Verifier IdentityVerifier
	Metrics  http.Handler
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger)
	r.Use(CORS)

	r.Get("/health", HealthCheck)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Post("/auth/admin/token", cfg.Auth.AdminToken)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.Verifier))

		r.Route("/events", func(r chi.Router) {
			r.Get("/", cfg.Events.ListEvents)
			r.With(RequireAdmin).Post("/", cfg.Events.CreateEvent)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.Events.GetEvent)
				r.Get("/reviews", cfg.Reviews.ListReviews)
				r.With(RequireIdentity).Post("/reviews", cfg.Reviews.SubmitReview)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireIdentity)

			r.Post("/bookings", cfg.Bookings.CreateBooking)
			r.Post("/bookings/{id}/cancel", cfg.Bookings.CancelBooking)
			r.Get("/users/{email}/bookings", cfg.Bookings.ListUserBookings)
		})
	})

	return r
}
