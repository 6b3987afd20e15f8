package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// DefaultRateLimit is the per-IP request allowance per minute.
const DefaultRateLimit = 60

// NewRouter builds and returns the Chi router with all routes configured.
// The health endpoint is unauthenticated; all journey routes require bearer auth.
// Rate limiting is applied globally per IP; a non-positive limit uses DefaultRateLimit.
func NewRouter(handlers *Handlers, token string, rateLimit int, db, redis Pinger, log *slog.Logger) *chi.Mux {
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimit
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(httprate.LimitByIP(rateLimit, time.Minute))

	r.Get("/api/v1/health", HealthHandlerFunc(db, redis, log))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(token))
		r.Route("/api/v1/journeys/{group}", func(r chi.Router) {
			r.Post("/", handlers.StartJourney)
			r.Get("/", handlers.GetJourney)
			r.Delete("/", handlers.EndJourney)
			r.Put("/stage", handlers.ConfigureStage)
			r.Post("/stages", handlers.AdvanceStage)
			r.Post("/days", handlers.AdvanceDay)
			r.Get("/days", handlers.ListDays)
			r.Get("/days/{day}", handlers.GetDay)
		})
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
