package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qgenlab/qgen/internal/metrics"
	"github.com/qgenlab/qgen/internal/model"
)

// GenerateFunc runs one pipeline and returns the document it saved.
type GenerateFunc func(ctx context.Context, mode string, p model.GenerationParams) (any, model.RunSummary, error)

// Server is the HTTP surface: JSON recovery, generation, health and metrics.
type Server struct {
	router   *gin.Engine
	addr     string
	generate GenerateFunc
	metrics  *metrics.Metrics
	logger   *slog.Logger
	timeout  time.Duration
}

// New wires the routes. generate and m may be nil; the matching routes are
// then not registered.
func New(addr string, generate GenerateFunc, m *metrics.Metrics, timeout time.Duration, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		router:   router,
		addr:     addr,
		generate: generate,
		metrics:  m,
		logger:   logger,
		timeout:  timeout,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ----------------------------------------------------------------------
// Routes
// ----------------------------------------------------------------------

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.health)
	s.router.POST("/v1/recover", s.recoverJSON)
	if s.generate != nil {
		s.router.POST("/v1/generate", s.generateQuestions)
	}
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	}
}

// GET /healthz
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
