package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"user_service/internal/config"
	"user_service/internal/handler"
	"user_service/internal/metrics"
	"user_service/internal/service"
	"user_service/internal/storage"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	//PARSE ARGS
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to the yaml config file")

	flag.Parse()
	if configPath == "" {
		log.Fatal("failed get config path from flags")
	}

	cfg := config.MustLoadConfig(configPath)

	//INIT LOGGER
	lgr := setupLogger(cfg.Env)
	lgr.Info("started user service", slog.String("tenant", cfg.Auth.Tenant))

	//INIT STORE
	st, closeStore, err := setupStorage(cfg)
	if err != nil {
		lgr.Error("failed to init storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	//INIT SERVER
	srvc := service.NewService(st, []byte(cfg.Auth.JWTSecret))
	h := handler.NewHandler(srvc, lgr, metrics.NewMetrics(), cfg.Auth.StoreTimeout)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      h.InitRoutes(),
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lgr.Error("server stopped", slog.Any("error", err))
			os.Exit(1)
		}
	}()
	lgr.Info("listening", slog.String("address", cfg.HTTPServer.Address))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lgr.Error("failed to shutdown server", slog.Any("error", err))
	}
	lgr.Info("stopped user service")
}

func setupStorage(cfg *config.Config) (storage.Storage, func(), error) {
	if cfg.DB.DbURL == "" {
		return storage.NewTransientStore(cfg.Auth.Tenant), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := storage.RunMigrations(ctx, cfg.DB.DbURL); err != nil {
		return nil, nil, err
	}

	st, err := storage.NewPersistentStore(ctx, cfg.DB.DbURL, cfg.Auth.Tenant)
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
