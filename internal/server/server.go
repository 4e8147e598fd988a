package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/sells-group/pricing-engine/internal/config"
	"github.com/sells-group/pricing-engine/internal/experiment"
	"github.com/sells-group/pricing-engine/internal/monitoring"
	"github.com/sells-group/pricing-engine/internal/optimize"
	"github.com/sells-group/pricing-engine/internal/pricing"
	"github.com/sells-group/pricing-engine/internal/store"
)

// Server exposes the pricing engine over HTTP.
type Server struct {
	engine      *pricing.Engine
	experiments *experiment.Manager
	optimizer   *optimize.Optimizer
	store       store.Store
	collector   *monitoring.Collector
	cfg         config.ServerConfig
	systemLoad  float64
	limiter     *rate.Limiter
}

// New creates a Server. defaultLoad is the system load assumed for
// requests that do not report their own. The rate limiter is shared
// across all routes.
func New(engine *pricing.Engine, mgr *experiment.Manager, opt *optimize.Optimizer, st store.Store, collector *monitoring.Collector, cfg config.ServerConfig, defaultLoad float64) *Server {
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 50
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = perSecond * 2
	}
	return &Server{
		engine:      engine,
		experiments: mgr,
		optimizer:   opt,
		store:       st,
		collector:   collector,
		cfg:         cfg,
		systemLoad:  defaultLoad,
		limiter:     rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	r.Use(s.rateLimit)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/models", s.handleCreateModel)

		r.Put("/market-data", s.handleUpsertMarketData)
		r.Put("/clients/{clientID}/profile", s.handleUpsertProfile)

		r.Post("/quotes", s.handleCalculatePrice)
		r.Get("/quotes", s.handleListQuotes)
		r.Get("/quotes/{quoteID}", s.handleGetQuote)
		r.Post("/quotes/{quoteID}/accept", s.handleQuoteDecision("accept"))
		r.Post("/quotes/{quoteID}/reject", s.handleQuoteDecision("reject"))

		r.Post("/optimize/{strategy}", s.handleOptimize)

		r.Post("/experiments", s.handleDesignExperiment)
		r.Get("/experiments", s.handleListExperiments)
		r.Get("/experiments/{experimentID}", s.handleGetExperiment)
		r.Post("/experiments/{experimentID}/start", s.handleStartExperiment)
		r.Post("/experiments/{experimentID}/stop", s.handleStopExperiment)
		r.Post("/experiments/{experimentID}/assignments", s.handleAssign)
		r.Post("/experiments/{experimentID}/events", s.handleRecordEvent)
		r.Get("/experiments/{experimentID}/analysis", s.handleAnalyze)
		r.Get("/experiments/{experimentID}/recommendation", s.handleRecommend)
	})

	return r
}

// rateLimit sheds load once the shared token bucket is empty.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
