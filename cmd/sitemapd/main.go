// Command sitemapd serves the site's sitemap documents over HTTP, rendering
// country partitions on request from the resolved gazetteer.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/wetbulb-sitemap/internal/adapter/http"
	"github.com/couchcryptid/wetbulb-sitemap/internal/config"
	"github.com/couchcryptid/wetbulb-sitemap/internal/gazetteer"
	"github.com/couchcryptid/wetbulb-sitemap/internal/observability"
	"github.com/couchcryptid/wetbulb-sitemap/internal/pipeline"
	"github.com/couchcryptid/wetbulb-sitemap/internal/sitemap"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	loader := gazetteer.NewLoader(cfg.GazetteerPath, logger)
	docs, err := pipeline.NewDocuments(
		loader,
		sitemap.NewLinks(cfg.SiteBaseURL, cfg.PathOrder),
		cfg.PageSize,
		cfg.IndexTTL,
		clockwork.NewRealClock(),
		logger,
		metrics,
	)
	if err != nil {
		logger.Error("failed to create document server", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, docs, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Aggregate the gazetteer ahead of the first request. A failure leaves
	// the service unready; requests retry the load.
	go func() {
		if err := docs.Warm(ctx); err != nil {
			logger.Error("gazetteer warm-up failed", "path", cfg.GazetteerPath, "error", err)
			return
		}
		logger.Info("sitemap documents ready", "base_url", cfg.SiteBaseURL, "page_size", cfg.PageSize)
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
