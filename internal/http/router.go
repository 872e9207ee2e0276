package http

import (
	"github.com/filmhaus/movie-ticket-booking/internal/idempotency"
	"github.com/filmhaus/movie-ticket-booking/internal/observability"
	"github.com/filmhaus/movie-ticket-booking/internal/rateLimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(RateLimitMiddleware(rl))
	r.Use(IdempotencyMiddleware(idemp))

	r.Post("/v1/screenings/{id}/reservations", h.ReserveSeats)
	r.Post("/v1/screenings/{id}/confirm", h.ConfirmBooking)
	r.Post("/v1/tickets/{id}/cancel", h.CancelTicket)
	r.Get("/v1/screenings/{id}/seats", h.ListAvailableSeats)
	r.Get("/v1/users/{id}/tickets", h.ListUserTickets)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
