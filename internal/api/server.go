package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/tphakala/agrisense/internal/api/middleware"
	v2 "github.com/tphakala/agrisense/internal/api/v2"
	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/engine"
	"github.com/tphakala/agrisense/internal/logger"
	"github.com/tphakala/agrisense/internal/observability"
	"github.com/tphakala/agrisense/internal/weather"
)

// Server is the main HTTP server for agrisense.
// It manages the Echo framework instance, middleware, and all HTTP routes.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	log      logger.Logger

	// Dependencies
	engine  *engine.Engine
	weather *weather.Service
	metrics *observability.Metrics

	apiController *v2.Controller

	startTime time.Time
	errCh     chan error
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithEngine sets the inference engine served by the API.
func WithEngine(e *engine.Engine) ServerOption {
	return func(s *Server) {
		s.engine = e
	}
}

// WithWeather sets the weather service.
func WithWeather(svc *weather.Service) ServerOption {
	return func(s *Server) {
		s.weather = svc
	}
}

// WithMetrics sets the observability metrics for the server.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		settings:  settings,
		log:       GetLogger(),
		startTime: time.Now(),
		errCh:     make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		return nil, fmt.Errorf("server requires an engine")
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.String("body_limit", config.BodyLimit),
		logger.Bool("debug", config.Debug))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())

	// Trace id before logging so request logs carry it
	s.echo.Use(mw.NewTraceID())
	s.echo.Use(mw.NewRequestLogger(s.log))

	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP))
	}

	securityConfig := mw.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = s.config.AllowedOrigins
	if len(securityConfig.AllowedOrigins) > 0 {
		s.echo.Use(mw.NewCORS(securityConfig))
	}

	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders(securityConfig))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() error {
	s.echo.GET("/health", s.healthCheck)

	opts := []v2.Option{v2.WithWeather(s.weather)}
	if s.metrics != nil {
		opts = append(opts, v2.WithMetrics(s.metrics))
	}
	apiController, err := v2.New(s.echo, s.engine, s.settings, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize API v2: %w", err)
	}
	s.apiController = apiController
	return nil
}

// healthCheck reports liveness only; capability health lives under /api/v2/health.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "alive",
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Start begins serving HTTP requests in a background goroutine and returns
// immediately. Use Shutdown to stop the server.
func (s *Server) Start() {
	go func() {
		if err := s.startBlocking(); err != nil {
			s.log.Error("server error", logger.Error(err))
			s.errCh <- err
		}
	}()
	s.log.Info("HTTP server starting", logger.String("address", s.config.Address()))
}

// startBlocking begins serving HTTP requests and blocks until the server is shut down.
func (s *Server) startBlocking() error {
	err := s.echo.Start(s.config.Address())
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartWithGracefulShutdown starts the server and shuts it down gracefully
// on SIGINT/SIGTERM, on ctx cancellation, or when the listener fails.
func (s *Server) StartWithGracefulShutdown(ctx context.Context) error {
	s.Start()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		s.log.Info("shutdown signal received, initiating graceful shutdown")
	case err := <-s.errCh:
		_ = s.Shutdown()
		return err
	}
	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	if s.apiController != nil {
		s.apiController.Shutdown()
	}

	s.log.Info("server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Config returns the effective server configuration.
func (s *Server) Config() *Config {
	return s.config
}
