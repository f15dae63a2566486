// Package api exposes header and value reconciliation over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/sells-group/reconcile-cli/internal/reconcile"
	"github.com/sells-group/reconcile-cli/internal/store"
)

// Options configures the HTTP surface.
type Options struct {
	CORSOrigins []string
	RatePerSec  float64
	RateBurst   int
	Timeout     time.Duration
}

// Server serves the reconciliation API.
type Server struct {
	engine  *reconcile.Engine
	store   store.Store
	limiter *orgLimiter
	opts    Options
}

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// NewServer creates a Server. The store backs the raw pattern listing and
// the health check; everything else goes through the engine.
func NewServer(engine *reconcile.Engine, st store.Store, opts Options) *Server {
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 20
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 40
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Server{
		engine:  engine,
		store:   st,
		limiter: newOrgLimiter(rate.Limit(opts.RatePerSec), opts.RateBurst),
		opts:    opts,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.Timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1/orgs/{orgID}/entities/{entity}", func(r chi.Router) {
		r.Use(s.limiter.middleware)
		r.Post("/headers:resolve", s.handleResolveHeaders)
		r.Post("/fields/{field}/values:resolve", s.handleResolveValues)
		r.Get("/values", s.handleAllValues)
		r.Post("/learn", s.handleLearn)
		r.Get("/patterns", s.handlePatterns)
	})
	return r
}
