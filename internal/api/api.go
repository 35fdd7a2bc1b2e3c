package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/savant-model-analyzer/server/internal/agent/graph"
	"github.com/savant-model-analyzer/server/internal/analyzer/session"
	"github.com/savant-model-analyzer/server/internal/core"
	"github.com/savant-model-analyzer/server/internal/storage"
)

// Sessions is the part of the analyzer session the API drives.
type Sessions interface {
	Create(ctx context.Context, reader storage.ObjectReader, sessionID string) (string, error)
	Manifest(ctx context.Context, id string) (*session.Manifest, error)
	Delete(ctx context.Context, id string) error
}

type Config struct {
	APIKey      string
	Environment core.Environment
}

type Handler struct {
	sessions Sessions
	resolver *storage.Resolver
	agent    graph.Runner
}

func NewHandler(sessions Sessions, resolver *storage.Resolver, agent graph.Runner) *Handler {
	return &Handler{sessions: sessions, resolver: resolver, agent: agent}
}

// NewRouter mounts every route behind the common middleware chain.
func NewRouter(cfg Config, h *Handler) *gin.Engine {
	if cfg.Environment.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(RequestID(), Recovery(), AccessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1", APIKey(cfg.APIKey))
	{
		sessions := v1.Group("/session")
		sessions.POST("/session_id", h.CreateSession)
		sessions.GET("/:id", h.GetSession)
		sessions.DELETE("/:id", h.DeleteSession)

		v1.POST("/modelquery/agent/query", h.Query)
	}

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "route not found")
	})
	return r
}
