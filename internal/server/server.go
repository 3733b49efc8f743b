package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"channel-integration-engine/internal/config"
	"channel-integration-engine/internal/health"
	"channel-integration-engine/internal/middlewares"
	"channel-integration-engine/internal/ratestate"
	"channel-integration-engine/internal/server/routes"
)

// Server represents the HTTP server with all dependencies
type Server struct {
	router     *gin.Engine
	logger     *slog.Logger
	config     *config.Config
	db         *gorm.DB
	httpServer *http.Server
}

// New creates a new server instance with all dependencies
func New(cfg *config.Config, logger *slog.Logger, db *gorm.DB, rateStates *ratestate.Store, reporter *health.Reporter) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.Environment == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	server := &Server{
		config: cfg,
		logger: logger,
		db:     db,
		router: router,
		httpServer: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	server.setupMiddleware()
	server.setupRoutes(rateStates, reporter)

	return server
}

// setupMiddleware configures global middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		s.logger.Error("panic recovered", "error", recovered)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_server_error",
			"message": "An unexpected error occurred",
		})
	}))

	if s.config.EnableCORS {
		s.router.Use(middlewares.CustomCORS())
	}

	// Structured request logger
	s.router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}

		statusCode := c.Writer.Status()
		switch {
		case statusCode >= 500:
			s.logger.Error("HTTP request", "method", c.Request.Method, "path", path, "status", statusCode, "latency", latency, "ip", c.ClientIP())
		case statusCode >= 400:
			s.logger.Warn("HTTP request", "method", c.Request.Method, "path", path, "status", statusCode, "latency", latency, "ip", c.ClientIP())
		default:
			if s.config.Environment != "production" || (path != "/health/integration" && path != "/") {
				s.logger.Info("HTTP request", "method", c.Request.Method, "path", path, "status", statusCode, "latency", latency, "ip", c.ClientIP())
			}
		}
	})

	// Security headers
	s.router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("X-API-Version", "1.0.0")
		c.Header("X-Service", "channel-integration-engine")
		c.Next()
	})

	s.logger.Info("middleware configured")
}

// setupRoutes initializes all application routes
func (s *Server) setupRoutes(rateStates *ratestate.Store, reporter *health.Reporter) {
	routes.Setup(s.router, s.db, s.config, rateStates, reporter)

	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "channel-integration-engine",
			"version":     "1.0.0",
			"environment": s.config.Environment,
			"status":      "operational",
			"endpoints": gin.H{
				"health":           "GET /health/integration",
				"webhook_bookings": "POST /webhooks/channex/bookings",
				"webhook_health":   "POST /webhooks/channex/health",
				"admin": gin.H{
					"unmatched_events": "GET /admin/unmatched-events",
					"resolve_event":    "POST /admin/unmatched-events/:id/resolve",
					"audits":           "GET /admin/audits",
					"rate_state":       "GET /admin/rate-state/:property_id",
				},
			},
		})
	})

	s.logger.Info("routes configured")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr, "environment", s.config.Environment)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("failed to start server", "error", err)
		return err
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}

// GetHTTPServer returns the underlying http.Server for graceful shutdown
func (s *Server) GetHTTPServer() *http.Server {
	return s.httpServer
}

// GetDB returns the database connection (useful for testing)
func (s *Server) GetDB() *gorm.DB {
	return s.db
}

// GetRouter returns the Gin router (useful for testing)
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// GetConfig returns the server configuration
func (s *Server) GetConfig() *config.Config {
	return s.config
}
