package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/govreposcrape/govsearch/internal/api"
	"github.com/govreposcrape/govsearch/internal/api/handlers"
	"github.com/govreposcrape/govsearch/internal/api/middleware"
	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/events"
)

const (
	DefaultProtocolVersion       = "2"
	DefaultMCPMaxBodyBytes int64 = 1 << 20
)

type RouterConfig struct {
	SearchHandler   *handlers.SearchHandler
	HealthHandler   *handlers.HealthHandler
	MCPHandler      http.Handler
	Logger          *slog.Logger
	Events          events.Emitter
	ProtocolVersion string
	MCPMaxBodyBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.ProtocolVersion == "" {
		cfg.ProtocolVersion = DefaultProtocolVersion
	}
	if cfg.MCPMaxBodyBytes == 0 {
		cfg.MCPMaxBodyBytes = DefaultMCPMaxBodyBytes
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.ProtocolVersion(cfg.ProtocolVersion, cfg.Events))
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.CORS)
	r.Use(middleware.Recover(cfg.Logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusNotFound, domain.ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	health := func(w http.ResponseWriter, r *http.Request) {
		api.JSON(w, http.StatusOK, handlers.HealthResponse{Status: "ok"})
	}
	if cfg.HealthHandler != nil {
		health = cfg.HealthHandler.Health
	}
	r.Get("/health", health)
	r.Get("/mcp/health", health)

	r.Post("/search", cfg.SearchHandler.Search)
	r.Post("/mcp/search", cfg.SearchHandler.Search)

	if cfg.MCPHandler != nil {
		r.With(middleware.MaxBodyBytes(cfg.MCPMaxBodyBytes)).Handle("/mcp", cfg.MCPHandler)
	}

	return r
}
