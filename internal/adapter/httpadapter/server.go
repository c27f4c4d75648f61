// Package httpadapter serves view builds over HTTP with gin.
package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/vetviz-cli/internal/geo"
	"github.com/KaramelBytes/vetviz-cli/internal/observability"
	"github.com/KaramelBytes/vetviz-cli/internal/table"
	"github.com/KaramelBytes/vetviz-cli/internal/views"
)

// Deps are the shared, read-only collaborators of every request.
type Deps struct {
	Defaults views.Options
	Table    table.Options // date layouts and default year for posted rows
	Geocoder geo.Geocoder  // optional
	Metrics  *observability.Metrics
	// MaxRows caps posted rows; 0 means unlimited.
	MaxRows int
}

// Server exposes /v1/views, /healthz and /metrics.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	deps       Deps
	logger     *slog.Logger
}

// NewServer wires the routes. Callers set gin's mode before calling.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics()
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine: engine,
		deps:   deps,
		logger: logger,
	}

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	v1 := engine.Group("/v1")
	{
		v1.POST("/views", s.handleViews)
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
