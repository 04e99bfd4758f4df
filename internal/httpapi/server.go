package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arbitragex/engine/internal/coordinator"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Config tunes the HTTP listener.
type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxHeaderBytes int
	WebhookSecret  string
}

// Server is the exposed HTTP surface: a thin gin layer over the
// coordinator. It owns no business state of its own.
type Server struct {
	cfg           Config
	coord         *coordinator.Coordinator
	webhookSecret string
	httpServer    *http.Server
	logger        *zap.Logger
}

// New builds the gin engine and registers every route spec.md §6 names,
// with the middleware ordering Recovery -> RequestID -> Logger -> CORS.
func New(cfg Config, coord *coordinator.Coordinator, registry *prometheus.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware())
	engine.Use(loggerMiddleware(logger))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Request-ID", "X-ArbitrageX-Signature"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{cfg: cfg, coord: coord, webhookSecret: cfg.WebhookSecret, logger: logger}

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	engine.GET("/opportunities/:id", s.handleGetOpportunity)
	engine.POST("/workflows", s.handleStartWorkflow)
	engine.POST("/workflows/:id/stop", s.handleStopWorkflow)
	engine.GET("/workflows/:id", s.handleGetWorkflow)
	engine.POST("/webhooks", s.handleWebhook)

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:        engine,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
	return s
}

// Run starts the listener; it blocks until the server stops or errors.
func (s *Server) Run() error {
	s.logger.Info("http surface listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
