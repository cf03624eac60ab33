// Package api exposes the journey service over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/rshade/ecojourney/internal/journey"
	"github.com/rshade/ecojourney/internal/metrics"
)

const requestTimeout = 30 * time.Second

// Options configures a Server.
type Options struct {
	// RequestsPerSecond is the per-client token refill rate. Zero disables
	// rate limiting.
	RequestsPerSecond float64
	Burst             int
	CORSOrigins       []string
	Logger            zerolog.Logger
	Metrics           *metrics.Metrics
	Version           string
}

// Server is the ecojourney HTTP API.
type Server struct {
	svc     *journey.Service
	opts    Options
	limiter *clientLimiter
}

// NewServer returns a Server over svc.
func NewServer(svc *journey.Service, opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(false)
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{svc: svc, opts: opts}
	if opts.RequestsPerSecond > 0 {
		s.limiter = newClientLimiter(opts.RequestsPerSecond, opts.Burst, time.Now)
	}
	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.opts.Metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}

		r.Get("/tiers", s.handleTiers)
		r.Get("/tiers/{tierID}", s.handleTier)
		r.Get("/equivalencies", s.handleEquivalencies)
		r.Post("/flights/estimate", s.handleEstimateFlight)
		r.Post("/saf/{certificateID}/verification", s.handleVerifySAF)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/flights", s.handleCalculateFlight)
			r.Post("/saf", s.handleContributeSAF)
			r.Post("/offsets", s.handlePurchaseOffset)
			r.Post("/actions", s.handleRecordAction)
			r.Get("/points", s.handlePoints)
			r.Get("/journey", s.handleJourney)
			r.Get("/activities", s.handleActivities)
			r.Post("/nudges/next", s.handleNextNudge)
			r.Get("/nudges/preview", s.handlePreviewNudge)
			r.Get("/nudges/history", s.handleNudgeHistory)
			r.Post("/nudges/{nudgeID}/dismiss", s.handleDismissNudge)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]string{"status": "ok"}
	if s.opts.Version != "" {
		body["version"] = s.opts.Version
	}
	writeJSON(w, http.StatusOK, body)
}
