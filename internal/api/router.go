package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	relay "github.com/AZ-204-Projects/event-relay"
	"github.com/AZ-204-Projects/event-relay/internal/api/middleware"
	"github.com/AZ-204-Projects/event-relay/internal/config"
	"github.com/AZ-204-Projects/event-relay/internal/handlers"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, queue *relay.Queue, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)
	// The transport cap sits above the queue's payload limit so oversize
	// events are rejected by the queue's own check with a JSON error.
	r.Use(middleware.MaxBodySize(int64(cfg.MaxPayloadBytes) + 1024))

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS - producers and consumers call from anywhere
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(queue)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	// Ingress
	r.Post("/events", h.PostEvent)

	// Consumer surface
	r.Route("/queue", func(r chi.Router) {
		r.Post("/dequeue", h.Dequeue)
		r.Delete("/messages/{id}", h.Acknowledge)
		r.Get("/peek", h.Peek)
		r.Get("/dead-letters", h.DeadLetters)
	})

	return r
}
