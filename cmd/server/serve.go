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

	"github.com/hibiken/asynq"

	"github.com/projectthinkx/ds-sub001/internal/cache"
	"github.com/projectthinkx/ds-sub001/internal/config"
	"github.com/projectthinkx/ds-sub001/internal/httpapi"
	"github.com/projectthinkx/ds-sub001/internal/logger"
	"github.com/projectthinkx/ds-sub001/internal/service"
	"github.com/projectthinkx/ds-sub001/internal/tasks"
)

func runServe(ctx context.Context, cfg config.Config) error {
	log := logger.WithComponent("server")
	if ctx == nil {
		ctx = context.Background()
	}

	if err := validateSecurityConfig(cfg); err != nil {
		return fmt.Errorf("invalid security configuration: %w", err)
	}

	repo, closers, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}

	opts := service.Options{
		CacheTTL:        time.Duration(cfg.CacheTTLSeconds) * time.Second,
		DefaultBranchID: cfg.DefaultBranchID,
	}

	var worker *asynq.Server
	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		redisCache := cache.NewRedisLookupCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		err := redisCache.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using noop cache and inline balance refresh")
			_ = redisCache.Close()
		} else {
			redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
			enqueuer := tasks.NewAsynqEnqueuer(redisOpt)
			opts.Cache = redisCache
			opts.Enqueuer = enqueuer
			worker = tasks.NewServer(redisOpt, 2)
			closers = append(closers, redisCache.Close, enqueuer.Close)
			log.Info().Str("addr", cfg.RedisAddr).Msg("cache: redis, worker: asynq")
		}
	} else {
		log.Info().Msg("cache: noop")
	}

	svc := service.New(repo, opts)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPIN, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	if worker != nil {
		if err := worker.Start(tasks.NewProcessor(svc).Mux()); err != nil {
			runClosers(closers)
			return fmt.Errorf("start worker: %w", err)
		}
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("payables API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sig:
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown error")
	}
	if worker != nil {
		worker.Shutdown()
	}

	runClosers(closers)

	log.Info().Msg("server stopped")
	return runErr
}

// runClosers closes in reverse order of opening and keeps going past errors.
func runClosers(closers []func() error) {
	log := logger.WithComponent("server")
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			log.Warn().Err(err).Msg("close error")
		}
	}
}
