package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"pfinance/internal/cache"
	"pfinance/internal/core"
	"pfinance/internal/log"
	"pfinance/internal/middleware/ratelimit"
	"pfinance/internal/middleware/security"
	"pfinance/internal/middleware/trace"
	"pfinance/internal/services"
	"pfinance/internal/sources"
)

const (
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readyTimeout      = 3 * time.Second
)

type (
	// ChartRenderer serves the chart endpoints.
	ChartRenderer interface {
		CategoryChart(ctx context.Context, year, month int, typ core.TransactionType) (services.PieChart, error)
		AccountChart(ctx context.Context) (services.PieChart, error)
		TotalsChart(ctx context.Context, year int) (services.SetChart, error)
		Dashboard(ctx context.Context, year, month int) (services.Dashboard, error)
	}

	// Ledger serves the write endpoints.
	Ledger interface {
		Record(ctx context.Context, t core.Transaction) (string, error)
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
	}

	cacheStatser interface {
		CacheStats() map[string]cache.Stats
	}
)

// Options wires the server to its collaborators. Taxonomy and Ready are
// optional.
type Options struct {
	Charts   ChartRenderer
	Ledger   Ledger
	Taxonomy sources.TaxonomyReader
	// Ready reports backend readiness for /readyz.
	Ready func(ctx context.Context) error

	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	charts   ChartRenderer
	ledger   Ledger
	taxonomy sources.TaxonomyReader
	ready    func(ctx context.Context) error

	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		charts:   opts.Charts,
		ledger:   opts.Ledger,
		taxonomy: opts.Taxonomy,
		ready:    opts.Ready,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, logger),
		now:      time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/v1/chart/categories", s.handleCategoryChart)
	mux.HandleFunc("GET /api/v1/chart/accounts", s.handleAccountChart)
	mux.HandleFunc("GET /api/v1/chart/totals", s.handleTotalsChart)
	mux.HandleFunc("GET /api/v1/chart/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/v1/categories", s.handleCategories)
	mux.HandleFunc("POST /api/v1/transactions", s.handleCreateTransaction)
	mux.HandleFunc("POST /api/v1/accounts", s.handleCreateAccount)

	limited := s.limiter.Middleware(detector.ExtractClientIP, s.onRateLimited, http.MethodPost)(mux)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(limited)
	screened := detector.Middleware(logger)(headers)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(screened),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

// Shutdown gracefully shuts down the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			ServiceUnavailableError("backend not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

type metricsResponse struct {
	Requests  trace.Metrics             `json:"requests"`
	RateLimit ratelimit.Metrics         `json:"rate_limit"`
	Security  security.DetectionMetrics `json:"security"`
	Cache     map[string]cache.Stats    `json:"cache,omitempty"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	resp := metricsResponse{
		Requests:  s.tracer.GetMetrics(),
		RateLimit: s.limiter.GetMetrics(),
		Security:  s.detector.GetMetrics(),
	}
	if cs, ok := s.charts.(cacheStatser); ok {
		resp.Cache = cs.CacheStats()
	}
	NewJSONResponse().Body(resp).Write(w)
}
