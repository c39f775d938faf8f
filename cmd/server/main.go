package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/ogero/allocine-weekly/internal"
	"github.com/ogero/allocine-weekly/internal/cache"
	"github.com/ogero/allocine-weekly/internal/common"
	"github.com/ogero/allocine-weekly/internal/config"
	"github.com/ogero/allocine-weekly/internal/posters"
	"github.com/ogero/allocine-weekly/internal/scheduler"
	"github.com/ogero/allocine-weekly/pkg/allocine"
	slogchi "github.com/samber/slog-chi"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := run(); err != nil {
		common.Log.Error("Failed to run", "err", err)
		os.Exit(1)
	}
}

func run() error {

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to config.Load: %w", err)
	}

	loggerShutdown, err := common.InitLogger(cfg.ServiceName, cfg.ServiceVersion, cfg.ServiceEnvironment, cfg.OtelExporterEndpoint)
	if err != nil {
		return fmt.Errorf("failed to common.InitLogger: %w", err)
	}

	instrumentationShutdown, err := common.InitInstrumentation(cfg.ServiceName, cfg.ServiceVersion, cfg.ServiceEnvironment, cfg.OtelExporterEndpoint)
	if err != nil {
		return fmt.Errorf("failed to common.InitInstrumentation: %w", err)
	}

	store, err := cache.Open(cfg.MemoDir)
	if err != nil {
		return fmt.Errorf("failed to cache.Open: %w", err)
	}

	schedule, err := scheduler.ParseSchedule(cfg.WeeklySchedule)
	if err != nil {
		return fmt.Errorf("failed to scheduler.ParseSchedule: %w", err)
	}

	posterCache := posters.NewCache(cfg.CacheDir)
	allocineClient := allocine.NewAllocine(cfg.SourceURL)
	runner := internal.NewCycleRunner(
		allocineClient,
		posterCache,
		posters.NewFetcher(posterCache, allocineClient, store),
		cfg.TopN,
	)

	releasesService, err := internal.NewReleasesService(
		cfg.WebsocketChannel,
		runner,
		scheduler.New(schedule, scheduler.RealTimer, time.Now),
		time.Now,
	)
	if err != nil {
		return fmt.Errorf("failed to internal.NewReleasesService: %w", err)
	}

	app, err := internal.NewApp(releasesService, cfg.AddonHost)
	if err != nil {
		return fmt.Errorf("failed to internal.NewApp: %w", err)
	}

	r := chi.NewRouter()
	r.Use(slogchi.New(common.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{
			"Content-Type",
			"X-Requested-With",
			"Accept",
			"Accept-Language",
			"Accept-Encoding",
			"Content-Language",
			"Origin",
		},
		MaxAge: 300,
	}))
	app.Routes(r)

	// Listen
	srv := &http.Server{
		Addr:    cfg.ServerListenAddr,
		Handler: otelhttp.NewHandler(r, "server"),
	}
	go func() {
		common.Log.Info("Listening on " + cfg.ServerListenAddr)
		common.Log.Info(fmt.Sprintf("Install at %s/manifest.json", cfg.AddonHost))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.Log.Error("Failed to http.Server.ListenAndServe", "err", err)
		}
	}()

	// The first cycle runs in the background so the server answers while it is in flight.
	// When it fails nothing is armed and a manual refresh is required.
	go func() {
		if err := releasesService.Start(context.Background()); err != nil {
			common.Log.Error("Failed to internal.ReleasesService.Start", "err", err)
		}
	}()

	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.Log.Error("Failed to http.Server.Shutdown", "err", err)
	}

	if err := releasesService.Shutdown(ctx); err != nil {
		common.Log.Error("Failed to internal.ReleasesService.Shutdown", "err", err)
	}

	if err := store.Close(); err != nil {
		common.Log.Error("Failed to cache.Store.Close", "err", err)
	}

	instrumentationShutdown(ctx)
	if err := loggerShutdown(ctx); err != nil {
		common.Log.Error("Failed to shutdown logger", "err", err)
	}

	common.Log.Info("Bye!")

	return nil
}
