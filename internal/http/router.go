package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/floorplan-seating/internal/idempotency"
	"github.com/robertarktes/floorplan-seating/internal/observability"
	"github.com/robertarktes/floorplan-seating/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl rateLimit.Limiter, ratePerMinute int, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(TracingMiddleware)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(rl, ratePerMinute))

		r.Route("/v1/events/{eventID}", func(r chi.Router) {
			r.Post("/floor-plans", h.SaveFloorPlan)
			r.Get("/floor-plans", h.ListFloorPlans)
			r.Put("/seat-counts", h.PutSeatCounts)
			r.Put("/ticket-pricing", h.PutTicketPricing)

			r.Post("/seats/generate", h.GenerateSeats)
			r.Get("/seats/availability", h.GetAvailability)
			r.Delete("/seats/reserve", h.ReleaseSeats)
			r.With(IdempotencyMiddleware(idemp)).Post("/seats/reserve", h.ReserveSeats)
			r.With(IdempotencyMiddleware(idemp)).Post("/seats/confirm", h.ConfirmSeats)
		})

		r.Post("/v1/seats/{seatID}/expire", h.ExpireSeat)
		r.Post("/v1/admin/seats/{seatID}/revert", h.RevertSeat)
	})

	return r
}
