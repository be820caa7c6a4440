package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"qltc/internal/core"
	applog "qltc/internal/log"
	"qltc/internal/middleware/ratelimit"
	"qltc/internal/middleware/security"
	"qltc/internal/middleware/trace"
	"qltc/internal/services"
	appweb "qltc/web"
)

type (
	// TransactionService is the id-addressed view of the transaction table.
	TransactionService interface {
		List(ctx context.Context) ([]core.Transaction, error)
		Create(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		Update(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		Delete(ctx context.Context, id string) error
		CheckSchema(ctx context.Context) error
	}

	// Authenticator checks login credentials.
	Authenticator interface {
		Authenticate(ctx context.Context, username, password string) (core.User, error)
	}
)

var (
	_ TransactionService = (*services.TransactionStore)(nil)
	_ Authenticator      = (*services.Authenticator)(nil)
)

// Options configures NewServer. Zero values pick the defaults.
type Options struct {
	Addr               string
	RateLimitPerMinute int
	Logger             *applog.Logger
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

type Server struct {
	http.Server
	templates *template.Template
	txs       TransactionService
	auth      Authenticator
	logger    *applog.Logger

	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime       time.Time
	created      int64
	updated      int64
	deleted      int64
	logins       int64
	failedLogins int64
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(opts Options, txs TransactionService, auth Authenticator) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}

	mux := http.NewServeMux()
	s := &Server{
		txs:              txs,
		auth:             auth,
		logger:           opts.Logger.WithComponent(applog.ComponentHTTP),
		securityDetector: security.NewDetector(),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(opts.Logger, s.securityDetector.ExtractClientIP)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err)
	} else {
		s.templates = t
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	// JSON API
	mux.HandleFunc("/transactions", s.handleTransactions)
	mux.HandleFunc("/api/qltc/transactions", s.handleListTransactions)
	mux.HandleFunc("/transactions/update", s.handleUpdateTransaction)
	mux.HandleFunc("/transactions/delete", s.handleDeleteTransaction)
	mux.HandleFunc("/login", s.handleLogin)

	// Dashboard
	mux.HandleFunc("/summary/chart.png", s.handleSummaryChart)
	mux.HandleFunc("/summary/categories.png", s.handleCategoryChart)
	mux.HandleFunc("/ui/transactions", s.handleDashboardSubmit)
	mux.HandleFunc("/ui/transactions/delete", s.handleDashboardDelete)

	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP,
		func(w http.ResponseWriter, r *http.Request) {
			s.logger.WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			TooManyRequestsError().Write(w)
		}, http.MethodPost)

	var handler http.Handler = mux
	handler = limited(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = applog.Middleware(opts.Logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
