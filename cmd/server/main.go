// Command server runs the contest standings HTTP service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ahrav/go-standings/internal/config"
	"github.com/ahrav/go-standings/internal/directory"
	"github.com/ahrav/go-standings/internal/profile"
	"github.com/ahrav/go-standings/internal/server"
	"github.com/ahrav/go-standings/internal/standings"
	"github.com/ahrav/go-standings/internal/upstream"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	httpClient := &http.Client{Timeout: cfg.FetchTimeout}

	fetcher, err := upstream.New(upstream.Config{
		BaseURL:           cfg.ContestAPIURL,
		HTTPClient:        httpClient,
		Timeout:           cfg.FetchTimeout,
		CacheCapacity:     cfg.FetchCacheCapacity,
		RequestsPerSecond: cfg.FetchRPS,
		Burst:             cfg.FetchBurst,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	aggregator := standings.NewService(
		standings.NewResolver(fetcher), cfg.ResultCacheCapacity, logger)

	profiles := profile.New(profile.Config{
		GraphQLURL:    cfg.ProfileAPIURL,
		HTTPClient:    httpClient,
		Timeout:       cfg.FetchTimeout,
		CacheCapacity: cfg.ProfileCacheCapacity,
		Workers:       cfg.ProfileWorkers,
		Logger:        logger,
	})

	dir, err := directory.New(directory.Config{
		BaseURL:    cfg.DirectoryURL,
		HTTPClient: httpClient,
		Timeout:    cfg.FetchTimeout,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	api := server.New(server.Deps{
		Aggregator:     aggregator,
		Directory:      dir,
		Profiles:       profiles,
		ClearFetch:     fetcher.ClearCache,
		ClearResult:    aggregator.ClearResults,
		ClearProfile:   profiles.ClearCache,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
