package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"crowdtrack-backend/pkg/config"
	"crowdtrack-backend/pkg/server"
	"crowdtrack-backend/pkg/store"
)

func main() {
	cfg := config.GetCached()

	var logger *zap.Logger
	var err error
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	var st store.Store
	if cfg.UseMemoryStore {
		logger.Info("using in-memory store")
		st = store.NewMemoryStore()
	} else {
		logger.Info("connecting to postgres")
		pg, err := store.NewPostgresStore(cfg.PostgresDSN, logger)
		if err != nil {
			logger.Fatal("postgres setup failed", zap.Error(err))
		}
		st = pg
	}
	defer st.Close()

	if cfg.IsDevelopment() {
		if err := store.SeedSampleData(context.Background(), st); err != nil {
			logger.Warn("seeding sample data failed", zap.Error(err))
		} else {
			logger.Info("sample data seeded")
		}
	}

	router := server.New(cfg, st, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.LongPollWait+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
