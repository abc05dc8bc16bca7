// Package http serves the Telegram web mini-app and its JSON API.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"budgetbot/internal/core"
	blog "budgetbot/internal/log"
	"budgetbot/internal/middleware/ratelimit"
	"budgetbot/internal/middleware/security"
	"budgetbot/internal/middleware/trace"
	"budgetbot/internal/report"
	"budgetbot/internal/services"
	appweb "budgetbot/web"
)

// Household is the command surface the API drives.
type Household interface {
	Categories(ctx context.Context, caller int64) ([]core.Category, error)
	RecordExpense(ctx context.Context, caller int64, in services.Expense) (core.RecordResult, error)
	MonthSummary(ctx context.Context, caller int64) (core.MonthSummary, error)
	Balance(ctx context.Context, caller int64) ([]core.PersonBalance, error)
	UndoLast(ctx context.Context, caller int64) (core.UndoResult, error)
	Recent(ctx context.Context, caller int64) ([]core.Transaction, error)
	UpdateLimit(ctx context.Context, caller int64, target, name string, value int64) error
	Contributions(ctx context.Context, caller int64) ([]core.ContributionView, error)
	Settings(ctx context.Context, caller int64) (core.Settings, error)
	Household() (a, b string)
	Allowed(caller int64) bool
}

// ReadinessCheck reports whether the backing store can be reached.
type ReadinessCheck func(ctx context.Context) error

// Options configures NewServer.
type Options struct {
	Addr               string
	RateLimitPerMinute int
	RequestTimeout     time.Duration
	TrustedProxies     []string
	Ready              ReadinessCheck
}

type Server struct {
	http.Server
	templates *template.Template
	svc       Household
	render    *report.Renderer
	validate  *validator.Validate
	ready     ReadinessCheck
	timeout   time.Duration
	logger    *slog.Logger
	started   time.Time

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(svc Household, render *report.Renderer, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = blog.Component(logger, blog.ComponentHTTP)
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}

	s := &Server{
		svc:      svc,
		render:   render,
		validate: validator.New(),
		ready:    opts.Ready,
		timeout:  opts.RequestTimeout,
		logger:   logger,
		started:  time.Now(),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: security.NewDetector(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", blog.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ClientIP)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", blog.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", blog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /getCategories", s.api("categories", s.getCategories))
	mux.HandleFunc("POST /addExpense", s.api("record_expense", s.addExpense))
	mux.HandleFunc("POST /summary", s.api("month_summary", s.summary))
	mux.HandleFunc("POST /balance", s.api("balance", s.balance))
	mux.HandleFunc("POST /undo", s.api("undo_last", s.undo))
	mux.HandleFunc("POST /last5", s.api("recent", s.recent))
	mux.HandleFunc("POST /contributions", s.api("contributions", s.contributions))
	mux.HandleFunc("POST /getSettings", s.api("settings", s.settings))
	mux.HandleFunc("POST /updateLimit", s.api("update_limit", s.updateLimit))

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ClientIP, s.writeRateLimited)(h)
	h = s.flagSuspicious(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// flagSuspicious logs probing requests; they still go through routing and
// usually end in a 404.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.IsSuspicious(r) {
			blog.FromContext(r.Context()).Warn("Suspicious request",
				blog.FieldClientIP, s.detector.ClientIP(r),
				blog.FieldMethod, r.Method,
				blog.FieldPath, r.URL.Path,
				blog.FieldUserAgent, r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeRateLimited(w http.ResponseWriter, r *http.Request) {
	blog.FromContext(r.Context()).Warn("Rate limit exceeded",
		blog.FieldComponent, blog.ComponentRateLimit,
		blog.FieldClientIP, s.detector.ClientIP(r),
		blog.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "Забагато запитів, спробуйте пізніше"})
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", blog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	a, b := s.svc.Household()
	data := struct {
		PersonA string
		PersonB string
	}{
		PersonA: a,
		PersonB: b,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Index template execution failed", blog.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
