package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"subtrack/internal/auth"
	"subtrack/internal/log"
	"subtrack/internal/middleware/ratelimit"
	"subtrack/internal/middleware/security"
	"subtrack/internal/ports"
	"subtrack/internal/schedule"
	"subtrack/internal/services"
	appweb "subtrack/web"
)

// Deps are the collaborators a Server needs. Realtime and Store may be nil.
type Deps struct {
	Subscriptions *services.SubscriptionService
	Categories    *services.CategoryService
	Calendar      *services.CalendarService
	Verifier      *auth.Verifier
	Realtime      http.Handler
	Store         ports.Pinger
	HorizonMonths int
	RateLimit     ratelimit.Config
	Logger        *log.Logger
}

// Server serves the dashboard pages, the JSON API and the websocket feed.
type Server struct {
	http.Server

	subs       *services.SubscriptionService
	categories *services.CategoryService
	calendar   *services.CalendarService
	verifier   *auth.Verifier
	realtime   http.Handler
	store      ports.Pinger
	horizon    int

	templates *template.Template
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *log.Logger
	started   time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, d Deps) (*Server, error) {
	if d.Subscriptions == nil || d.Categories == nil || d.Calendar == nil {
		return nil, errors.New("http: services are required")
	}
	if d.Verifier == nil {
		return nil, errors.New("http: token verifier is required")
	}
	if d.Logger == nil {
		d.Logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}
	if d.HorizonMonths <= 0 {
		d.HorizonMonths = schedule.DefaultHorizonMonths
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		subs:       d.Subscriptions,
		categories: d.Categories,
		calendar:   d.Calendar,
		verifier:   d.Verifier,
		realtime:   d.Realtime,
		store:      d.Store,
		horizon:    d.HorizonMonths,
		templates:  t,
		limiter:    ratelimit.NewLimiter(d.RateLimit),
		detector:   security.NewDetector(),
		logger:     d.Logger,
		started:    time.Now(),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// Set before any Route call so subrouters inherit them
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError().Write(w)
	})

	r.Use(middleware.RequestID)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestLogger(s.detector.ExtractClientIP))
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.verifier.Middleware)
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited,
			http.MethodPost, http.MethodPut, http.MethodDelete))

		r.Get("/", s.handleDashboard)
		r.Get("/calendar", s.handleCalendar)
		if s.realtime != nil {
			r.Get("/ws", s.realtime.ServeHTTP)
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/subscriptions", func(r chi.Router) {
				r.Get("/", s.handleListSubscriptions)
				r.Post("/", s.handleCreateSubscription)
				r.Get("/{id}", s.handleGetSubscription)
				r.Put("/{id}", s.handleUpdateSubscription)
				r.Delete("/{id}", s.handleDeleteSubscription)
			})
			r.Route("/categories", func(r chi.Router) {
				r.Get("/", s.handleListCategories)
				r.Post("/", s.handleCreateCategory)
				r.Put("/{id}", s.handleRenameCategory)
				r.Delete("/{id}", s.handleDeleteCategory)
			})
			r.Get("/summary", s.handleSummary)
			r.Get("/occurrences", s.handleOccurrences)
			r.Get("/calendar.ics", s.handleICS)
			r.Get("/calendar.pdf", s.handlePDF)
		})
	})

	return r
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).Warn("Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
