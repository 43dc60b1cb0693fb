// Package server exposes report analysis and outbreak trends over HTTP.
//
// Routes:
//
//	GET  /health               liveness
//	GET  /metrics              Prometheus exposition
//	GET  /api/disease-trends   aggregated outbreak counts, optional ?limit=n
//	POST /api/analyze-report   multipart field "file" with a report image
//	POST /api/analyze-text     JSON {"text": "..."}
//
// Errors are returned as {"error": "..."} with a matching status code.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"curestat/internal/logger"
)

// Config holds the HTTP server settings.
type Config struct {
	Address         string
	Port            int
	AllowOrigins    []string
	RateLimit       RateLimitConfig
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Address:         "127.0.0.1",
		Port:            5001,
		AllowOrigins:    []string{"*"},
		RateLimit:       DefaultRateLimitConfig(),
		ShutdownTimeout: 10 * time.Second,
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// Server is the HTTP front end.
type Server struct {
	config   Config
	echo     *echo.Echo
	reports  ReportAnalyzer
	trends   TrendSource
	snapshot TrendSnapshot
	limiter  *RateLimiter
	log      zerolog.Logger
}

// New builds the server and registers its routes. snapshot may be nil.
func New(cfg Config, reports ReportAnalyzer, trendSource TrendSource, snapshot TrendSnapshot) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = DefaultConfig().AllowOrigins
	}

	s := &Server{
		config:   cfg,
		echo:     echo.New(),
		reports:  reports,
		trends:   trendSource,
		snapshot: snapshot,
		limiter:  NewRateLimiter(cfg.RateLimit),
		log:      logger.WithComponent("server"),
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler

	e.Use(Recovery(s.log))
	e.Use(RequestID())
	e.Use(Metrics())
	e.Use(Logger(s.log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.AllowOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderContentType, RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
	}))

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api", s.limiter.Middleware())
	api.GET("/disease-trends", s.handleDiseaseTrends)
	// Multipart overhead on top of the 20MB image limit.
	api.POST("/analyze-report", s.handleAnalyzeReport, echomw.BodyLimit("21M"))
	api.POST("/analyze-text", s.handleAnalyzeText, echomw.BodyLimit("1M"))

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.config.Addr()).Msg("Starting server")
		if err := s.echo.Start(s.config.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sweep := time.NewTicker(30 * time.Minute)
	defer sweep.Stop()

	for {
		select {
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-sweep.C:
			s.limiter.Sweep()
		case <-ctx.Done():
			s.log.Info().Msg("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
			defer cancel()
			if err := s.echo.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			s.log.Info().Msg("Server stopped")
			return nil
		}
	}
}
