// Package http exposes the validation workflow and the rule engine over a
// JSON API. Handlers translate requests into application service calls.
package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/validation-workflow/internal/application/service"
	"github.com/garyjia/validation-workflow/internal/config"
	"github.com/garyjia/validation-workflow/internal/metrics"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Services are the application services served by the API
type Services struct {
	Thresholds service.ThresholdService
	Resolver   service.ThresholdResolver
	Validation service.ValidationService
	Statistics service.StatisticsService
	Rules      service.RuleEngine
}

// HealthFunc reports component health for GET /health
type HealthFunc func(ctx context.Context) (healthy bool, details interface{})

// Option configures the server
type Option func(*Server)

// WithMetrics records request metrics and serves the registry on path
func WithMetrics(recorder *metrics.Recorder, path string) Option {
	return func(s *Server) {
		s.metrics = recorder
		s.metricsPath = path
	}
}

// WithHealthCheck plugs a component health probe into GET /health
func WithHealthCheck(fn HealthFunc) Option {
	return func(s *Server) {
		s.health = fn
	}
}

// Server is the HTTP server adapter
type Server struct {
	config      config.ServerConfig
	httpServer  *http.Server
	router      *gin.Engine
	services    Services
	metrics     *metrics.Recorder
	metricsPath string
	health      HealthFunc
	logger      Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(cfg config.ServerConfig, services Services, logger Logger, opts ...Option) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	server := &Server{
		config:   cfg,
		router:   gin.New(),
		services: services,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(corsMiddleware())
	if s.metrics != nil {
		s.router.Use(s.metricsMiddleware())
	}
}

// loggingMiddleware writes one access log line per request
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		s.logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"workspace_id", c.GetHeader(HeaderWorkspaceID),
		)
	}
}

// corsMiddleware adds CORS headers, including the caller context headers
func corsMiddleware() gin.HandlerFunc {
	allowHeaders := strings.Join([]string{
		"Content-Type", "Authorization",
		HeaderWorkspaceID, HeaderUserID, HeaderUserName, HeaderValidatorLevel,
	}, ", ")

	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", allowHeaders)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// metricsMiddleware labels by route template, unmatched paths share one label
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.metrics, s.logger)

	s.router.GET("/health", s.healthCheck)
	if s.metrics != nil {
		s.router.GET(s.metricsPath, gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api/v1", requireWorkspace())
	{
		thresholds := api.Group("/thresholds")
		thresholds.POST("", h.CreateThreshold)
		thresholds.GET("", h.ListThresholds)
		thresholds.GET("/validate", h.ValidateThresholds)
		thresholds.GET("/usage", h.ThresholdUsage)
		thresholds.GET("/resolve", h.ResolveThreshold)
		thresholds.GET("/entity/:entityType", h.ListThresholdsByEntityType)
		thresholds.GET("/:id", h.GetThreshold)
		thresholds.PATCH("/:id", h.UpdateThreshold)
		thresholds.DELETE("/:id", h.DeleteThreshold)

		validations := api.Group("/validations")
		validations.POST("", h.CreateValidationRequest)
		validations.GET("/pending", h.PendingValidations)
		validations.GET("/history/:entityType/:entityId", h.ValidationHistory)
		validations.GET("/stats", h.WorkflowStats)
		validations.GET("/stats/validators/:validatorId", h.ValidatorStats)
		validations.GET("/:id", h.GetValidationRequest)
		validations.POST("/:id/decision", h.ProcessValidation)

		rules := api.Group("/rules")
		rules.POST("", h.CreateRule)
		rules.GET("", h.ListRules)
		rules.POST("/execute", h.ExecuteRules)
		rules.GET("/:id", h.GetRule)
		rules.PUT("/:id", h.UpdateRule)
		rules.DELETE("/:id", h.DeleteRule)
		rules.POST("/:id/toggle", h.ToggleRule)
		rules.POST("/:id/duplicate", h.DuplicateRule)
		rules.GET("/:id/executions", h.RuleExecutions)

		api.GET("/rule-templates", h.ListRuleTemplates)
		api.POST("/rule-templates/:id/rules", h.CreateRuleFromTemplate)
	}
}

// healthCheck handles GET /health
func (s *Server) healthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if s.health != nil {
		healthy, details := s.health(c.Request.Context())
		response.Components = details
		if !healthy {
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop drains in-flight requests within the configured shutdown timeout
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return s.config.Address()
}
