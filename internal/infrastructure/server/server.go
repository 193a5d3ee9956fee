package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/blurguard/internal/api/http"
	"github.com/GriffinCanCode/blurguard/internal/api/middleware"
	"github.com/GriffinCanCode/blurguard/internal/api/ws"
	"github.com/GriffinCanCode/blurguard/internal/browser"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/config"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/logging"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/blurguard/internal/scanner"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	host    *browser.Host
	tracer  *tracing.Tracer
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	logger = logger.OrNop()
	logger.Info("Initializing BlurGuard server",
		zap.String("port", cfg.Server.Port),
		zap.Float64("threshold", cfg.Analyzer.Threshold),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("blurguard", logger)

	sc, host, err := Build(cfg, logger, metrics)
	if err != nil {
		tracer.Close()
		return nil, err
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	cors := middleware.DefaultCORSConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		cors.AllowOrigins = cfg.Server.CORSOrigins
	}
	router.Use(middleware.CORS(cors))

	handlers := apihttp.NewHandlers(sc, host.Client(), cfg.Server.ScanTimeout, logger)
	wsHandler := ws.NewHandler(sc, cfg.Server.ScanTimeout, logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/v1")
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Float64("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		v1.Use(middleware.RateLimit(rl))
	}
	v1.POST("/scan", middleware.BodyLimit(middleware.DefaultMaxBodyBytes), handlers.Scan)
	v1.GET("/scan/stream", wsHandler.HandleScan)

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		host:    host,
		tracer:  tracer,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Build wires the scan pipeline from configuration. The CLI uses it without
// the HTTP layer.
func Build(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics) (*scanner.Scanner, *browser.Host, error) {
	host, err := browser.NewHost(NewClient(cfg, logger), HostOptions(cfg), logger, metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create page host: %w", err)
	}
	return scanner.New(host, Exclusions(cfg), logger, metrics), host, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's metrics
func (s *Server) Metrics() *monitoring.Metrics {
	return s.metrics
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	s.http = &http.Server{Addr: addr, Handler: s.router}
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for running scans and releases
// the script runtimes
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down HTTP server: %w", err))
		}
	}
	if err := s.host.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close page host: %w", err))
	}
	s.tracer.Close()
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
