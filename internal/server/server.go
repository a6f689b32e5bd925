package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/workmgmt/tasklens/internal/metrics"
	"github.com/workmgmt/tasklens/internal/repository"
)

// New assembles the API server: task routes, health check and the
// Prometheus metrics endpoint on one Echo instance.
func New(
	log *slog.Logger,
	tasks repository.TaskManager,
	db DBPinger,
	reg *prometheus.Registry,
	mtr *metrics.Metrics,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	Register(e, tasks, log, mtr)

	healthChecker := NewHealthChecker(log, db)
	e.GET("/healthz", echo.WrapHandler(healthChecker))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return e
}

// Start runs the given Echo instance on the specified port and blocks until
// the context is cancelled or the server fails. It logs the server's status
// and any errors encountered, and shuts down gracefully on cancellation.
func Start(ctx context.Context, log *slog.Logger, e *echo.Echo, port int) {
	log.InfoContext(ctx, "Starting API server", "port", port)

	readTimeout := 5
	writeTimeout := 30
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      e,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}

	var err error
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(readTimeout)*time.Second)
		defer cancel()
		log.InfoContext(ctx, "API server shutting down.")
		if err = server.Shutdown(shutdownCtx); err != nil {
			log.ErrorContext(ctx, "API server failed to shutdown", "error", err)
			return
		}
	case err = <-serverErr:
		log.ErrorContext(ctx, "API server failed", "error", err)
	}
}
