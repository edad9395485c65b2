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

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/roomiematch/roomiematch/backend/compat"
	"github.com/roomiematch/roomiematch/backend/store"
)

// app carries the dependencies shared by every handler.
type app struct {
	cfg     Config
	log     *zap.Logger
	store   store.Store
	drafts  store.DraftStore
	engine  *compat.Engine
	rdb     *redis.Client
	started time.Time
}

func newEngine(cfg Config) (*compat.Engine, error) {
	policy, err := compat.ParsePolicy(cfg.MatchScoring)
	if err != nil {
		return nil, err
	}
	return compat.NewEngine(compat.WithPolicy(policy)), nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "roomiematch:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := newLogger(cfg.LogJSON, cfg.LogDebug)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	rdb, err := openRedis(ctx, cfg, log)
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		store:   st,
		drafts:  newDraftStore(rdb),
		engine:  engine,
		rdb:     rdb,
		started: time.Now(),
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("starting RoomieMatch API",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Env),
			zap.String("store", cfg.StoreDriver),
			zap.String("scoring", string(engine.Policy())),
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if err := st.Close(shutdownCtx); err != nil {
		log.Error("close store", zap.Error(err))
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Error("close redis", zap.Error(err))
		}
	}
	return nil
}
