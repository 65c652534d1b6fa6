package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/moonvale/werewolf-backend/internal/config"
	"github.com/moonvale/werewolf-backend/internal/directory"
	"github.com/moonvale/werewolf-backend/internal/httpapi"
	"github.com/moonvale/werewolf-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := buildLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rec store.Recorder = store.Nop{}
	if cfg.DatabaseURL != "" {
		db, err := store.Open(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("open store", zap.Error(err))
		}
		rec = db
	}
	defer rec.Close()

	dir := directory.New(ctx, directory.Options{
		MaxSessions: cfg.MaxSessions,
		IdleGrace:   cfg.IdleGrace,
		SweepEvery:  cfg.SweepEvery,
	}, rec, logger)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(dir, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		dir.Inbox() <- directory.Shutdown{}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
