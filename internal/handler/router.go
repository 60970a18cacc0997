package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventhub/internal/auth"
	"github.com/Shivanand-hulikatti/eventhub/internal/metrics"
)

// RouterOptions configures NewRouter. An empty WebDir disables static files.
type RouterOptions struct {
	JWT    auth.JWT
	WebDir string
	Log    *zap.Logger
}

// NewRouter builds the chi router with the global middleware stack.
func NewRouter(h *EventHandler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(opts.Log))        // structured access log
	r.Use(CORS)
	r.Use(metrics.Middleware)

	r.Get("/health", HealthCheck)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/search", h.Suggest)
	r.Get("/search/full", h.SearchEvents)

	authn := auth.Middleware(opts.JWT, Unauthenticated)
	r.Route("/events", func(r chi.Router) {
		r.Get("/send_file/{filename}", h.SendBanner)

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Get("/", h.ListEvents)
			r.Post("/", h.CreateEvent)
			r.Get("/{id}", h.GetEvent)
			r.Post("/{id}/register", h.ToggleRegistration)
			r.Post("/{id}/rating", h.SubmitRating)
			r.Get("/{id}/attendees", h.ListAttendees)
		})
	})
	r.With(authn).Get("/organizer/events", h.OrganizerEvents)

	if opts.WebDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.WebDir)))
	}
	return r
}
