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

	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/conversor/internal/cache"
	"github.com/gestaozabele/conversor/internal/config"
	"github.com/gestaozabele/conversor/internal/conversion"
	"github.com/gestaozabele/conversor/internal/engine"
	internalhttp "github.com/gestaozabele/conversor/internal/http"
	"github.com/gestaozabele/conversor/internal/metrics"
	"github.com/gestaozabele/conversor/internal/retention"
	"github.com/gestaozabele/conversor/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	config.ConfigureLogger(cfg.LogLevel, cfg.LogFormat)

	store, err := storage.NewDiskStore(cfg.StagingDir)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	eng, err := engine.New(engine.Options{
		Kind:    cfg.Engine.Kind,
		Command: cfg.Engine.Command,
		URL:     cfg.Engine.URL,
		Timeout: cfg.Engine.Timeout,
	})
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	m, err := metrics.New()
	if err != nil {
		return err
	}

	svc := conversion.NewService(store, conversion.NewDispatcher(eng, store).WithTimeout(cfg.Engine.Timeout), conversion.Options{
		Formats:      cfg.Profile.AllowSet(),
		DownloadBase: cfg.PublicBaseURL,
		CacheTTL:     cache.DefaultTTL,
	}).WithMetrics(m)

	deps := internalhttp.Deps{
		Service: svc,
		Sweeper: retention.NewSweeper(store, cfg.RetentionMaxAge).WithMetrics(m),
		Engine:  eng,
		Metrics: m,
	}

	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		svc.WithCache(redisCache)
		deps.Cache = redisCache
	}

	handler, err := internalhttp.NewRouter(cfg, deps)
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("profile", cfg.Profile.Name).
			Str("engine", eng.Name()).
			Str("staging_dir", store.Dir()).
			Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
