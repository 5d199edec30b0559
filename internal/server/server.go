package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/BioHazard786/duobooth/internal/relay"
)

// Options configures a Server.
type Options struct {
	Relay *relay.Service

	// Hub serves /ws wake-ups. Without it the route is not mounted and
	// clients fall back to plain polling.
	Hub *relay.Hub

	// Gatherer backs /metrics. Without it the route is not mounted.
	Gatherer prometheus.Gatherer

	// RateLimit and RateBurst bound requests per client IP. A zero
	// RateLimit disables limiting.
	RateLimit rate.Limit
	RateBurst int

	// AllowedOrigins lists origins accepted for CORS and WebSocket upgrades.
	// Empty or "*" allows any.
	AllowedOrigins []string

	Logger *slog.Logger
}

// Server is the relay's HTTP surface.
type Server struct {
	relay    *relay.Service
	hub      *relay.Hub
	gatherer prometheus.Gatherer
	limiter  *ipLimiter
	origins  originPolicy
	log      *slog.Logger
}

func New(opts Options) *Server {
	if opts.Relay == nil {
		opts.Relay = relay.NewService(relay.Config{Hub: opts.Hub})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		relay:    opts.Relay,
		hub:      opts.Hub,
		gatherer: opts.Gatherer,
		origins:  newOriginPolicy(opts.AllowedOrigins),
		log:      opts.Logger,
	}
	if opts.RateLimit > 0 {
		s.limiter = newIPLimiter(opts.RateLimit, opts.RateBurst)
	}
	return s
}

// Handler mounts every route on a chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.enableCors)

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimiter)

		r.Route("/api", func(r chi.Router) {
			r.Post("/rooms", s.handleAction)
			r.Get("/rooms", s.handlePoll)
			r.Get("/stats", s.handleStats)
		})
		if s.hub != nil {
			r.Get("/ws", s.handleWS)
		}
	})

	return r
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: time.Minute,
	}

	if s.limiter != nil {
		go s.limiter.cleanup(ctx, time.Minute)
	}

	shutdown := make(chan error, 1)
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdown <- srv.Shutdown(sctx)
	}()

	s.log.Info("server has started", "addr", addr)

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdown; err != nil {
		return err
	}

	s.log.Info("server has stopped", "addr", addr)
	return nil
}
