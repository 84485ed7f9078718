package http

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/mind-engage/mindengage-headlessquiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-headlessquiz/internal/engine"
	"github.com/mind-engage/mindengage-headlessquiz/internal/logger"
	"github.com/mind-engage/mindengage-headlessquiz/internal/quiz"
	"github.com/mind-engage/mindengage-headlessquiz/internal/rbac"
	syncx "github.com/mind-engage/mindengage-headlessquiz/internal/sync"
)

type RouterConfig struct {
	DB          *sql.DB
	Store       *engine.Store
	API         *quiz.API
	Auth        *auth.AuthService
	Events      *syncx.EventRepo
	CORSOrigins []string
	DefaultLang string
	Timeout     time.Duration
}

func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Events == nil {
		cfg.Events = syncx.NewEventRepo("")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logger.AccessLog, middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept-Language"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/token", auth.TokenHandler(cfg.Auth, cfg.Store))

	// JWT → current role from users table → RBAC
	r.Route("/api", func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(cfg.Auth))
		pr.Use(auth.AttachRoleFromDB(cfg.DB, false))

		pr.With(rbac.RequireAny(rbac.PermView, rbac.PermViewAny)).
			Get("/headlessquiz", HeadlessQuizHandler(cfg.API, cfg.DefaultLang))

		pr.With(rbac.RequireAny(rbac.PermView, rbac.PermViewAny)).
			Get("/attempts", ListAttemptsHandler(cfg.Store))
		pr.With(rbac.RequireAny(rbac.PermView, rbac.PermViewAny)).
			Get("/attempts/{attemptID}", GetAttemptHandler(cfg.Store))
		pr.With(rbac.Require(rbac.PermSave)).
			Post("/attempts/{attemptID}/responses", SaveResponsesHandler(cfg.Store))
		pr.With(rbac.Require(rbac.PermSubmit)).
			Post("/attempts/{attemptID}/finish", FinishAttemptHandler(cfg.Store))

		pr.With(rbac.Require(rbac.PermEvents)).
			Get("/events", EventsHandler(cfg.Events, cfg.DB))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", readyHandler(cfg.DB))
	return r
}

func readyHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
