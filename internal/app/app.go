// Package app assembles the service: configuration, logging, telemetry,
// services, router and HTTP server lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"trafficlens/internal/config"
	"trafficlens/internal/exporter"
	"trafficlens/internal/infrastructure"
	custommw "trafficlens/internal/middleware"
	"trafficlens/internal/services"
	handlers "trafficlens/internal/transport/http"
)

// Application is the composed service.
type Application struct {
	Config   *config.Config
	Router   *chi.Mux
	Server   *http.Server
	Logger   *slog.Logger
	OTel     *infrastructure.OTelProviders
	Analysis *services.AnalysisService
	Sessions *services.SessionStore
}

// NewApplication builds the application with its dependencies.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.Info("application starting",
		slog.String("service", infrastructure.ServiceName),
		slog.String("version", infrastructure.ServiceVersion))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	analysis, err := services.NewAnalysisService(logger, otelProviders.Tracer, otelProviders.Meter, cfg.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("create analysis service: %w", err)
	}

	app := &Application{
		Config:   cfg,
		Logger:   logger,
		OTel:     otelProviders,
		Analysis: analysis,
		Sessions: services.NewSessionStore(cfg.Pipeline.SessionTTL),
	}
	app.setupRouter()
	app.createServer()
	return app, nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(custommw.StructuredLogger(a.Logger))
	r.Use(custommw.Recoverer(a.Logger))
	if a.Config.Security.RateLimit.Enabled {
		r.Use(custommw.RateLimit(a.Config.Security.RateLimit.RPS, a.Config.Security.RateLimit.Burst))
	}

	analysisHandler := handlers.NewAnalysisHandler(
		a.Analysis,
		a.Sessions,
		exporter.NewCSVWriter(a.Logger),
		a.Logger,
		a.Config.Pipeline.MaxUploadBytes,
	)
	healthHandler := handlers.NewHealthHandler()

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Mount("/", analysisHandler.Routes())
	})
	if a.OTel.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTel.PrometheusHTTP)
	}

	a.Router = r
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Run starts the HTTP server and blocks until shutdown.
func (a *Application) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sweepDone := make(chan struct{})
	go a.sweepSessions(sweepDone)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		close(sweepDone)
		return fmt.Errorf("http server: %w", err)
	case s := <-sig:
		a.Logger.Info("shutdown signal received", slog.String("signal", s.String()))
	}
	close(sweepDone)

	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := a.OTel.Shutdown(ctx); err != nil {
		a.Logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		a.Logger.Warn("log file close failed", slog.String("error", err.Error()))
	}

	a.Logger.Info("shutdown complete")
	return nil
}

// sweepSessions drops idle sessions periodically until done is closed.
func (a *Application) sweepSessions(done <-chan struct{}) {
	ttl := a.Config.Pipeline.SessionTTL
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if n := a.Sessions.Sweep(); n > 0 {
				a.Logger.Debug("expired sessions swept", slog.Int("count", n))
			}
		}
	}
}
