package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"mtreta/internal/config"
	"mtreta/internal/directory"
	"mtreta/internal/domain"
	"mtreta/internal/handler"
	"mtreta/internal/hub"
	"mtreta/internal/middleware"
	"mtreta/internal/session"
	"mtreta/pkg/mtrapi"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP and WebSocket server",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(c.Context, cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	dir, err := directory.Load(cfg.DirectoryFile)
	if err != nil {
		return err
	}
	lineCount, stationCount := dir.Count()

	logger.Info("starting mtreta server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"poll_interval", cfg.PollInterval,
		"refresh_policy", cfg.RefreshPolicy,
		"valid_filter", cfg.ValidFilter,
		"lines", lineCount,
		"stations", stationCount,
	)

	apiClient := mtrapi.New(cfg.MTRAPIBaseURL, cfg.UpstreamTimeout)
	wsHub := hub.NewHub(logger)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerWindow, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger)

	sessionCfg := session.Config{
		PollInterval:  cfg.PollInterval,
		ClockInterval: cfg.ClockInterval,
		Location:      cfg.Location,
		Reconciler:    cfg.ReconcilerOptions(),
	}

	directoryHandler := handler.NewDirectoryHandler(dir)
	arrivalsHandler := handler.NewArrivalsHandler(dir, apiClient, cfg.ReconcilerOptions(), logger)
	wsHandler := handler.NewWSHandler(wsHub, dir, apiClient, sessionCfg, logger)
	healthHandler := handler.NewHealthHandler(apiClient, wsHub, limiter)

	gzip, err := handler.NewGzipMiddleware()
	if err != nil {
		return err
	}

	mux := http.NewServeMux()

	mux.Handle("GET /v1/lines", gzip(http.HandlerFunc(directoryHandler.ListLines)))
	mux.HandleFunc("GET /v1/lines/{line}", directoryHandler.GetLine)
	mux.Handle("GET /v1/arrivals", limiter.Middleware(http.HandlerFunc(arrivalsHandler.GetArrivals)))
	mux.HandleFunc("/v1/ws", wsHandler.ServeWS)

	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.CORSMiddleware(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	go wsHub.Run(ctx)
	go limiter.Run(ctx)

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	wsHub.Broadcast(hub.Message{Type: "notification", Payload: domain.Notification{
		Severity: domain.SeverityInfo,
		Title:    "Server restarting",
		Message:  "Live arrivals will resume shortly.",
	}})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	cancel()

	logger.Info("shutdown complete")
	return nil
}
