// Command recalc re-derives the online/offline split of every item and saves
// the ones whose stored stock drifted from the configured ratio.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"omnistock/backend/internal/cache"
	"omnistock/backend/internal/config"
	"omnistock/backend/internal/lock"
	"omnistock/backend/internal/logger"
	"omnistock/backend/internal/service"
	"omnistock/backend/internal/stock"
	"omnistock/backend/internal/store"
	"omnistock/backend/internal/store/memory"
	pgstore "omnistock/backend/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	zlog, err := logger.New(cfg.AppEnv, cfg.Logger)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	zap.ReplaceGlobals(zlog)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var repo store.Repository
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			zlog.Fatal("connect postgres", zap.Error(err))
		}
		defer func() { _ = pg.Close() }()
		repo = pg
	} else {
		zlog.Warn("DATABASE_URL is not set; recalculating the in-memory demo catalogue")
		repo = memory.NewSeeded()
	}

	locker, closeLocker, err := newLocker(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("item locks unavailable", zap.Error(err))
	}
	defer func() { _ = closeLocker() }()

	svc := service.New(repo, service.Dependencies{
		Ledger: stock.NewLedger(stock.ParseOversellPolicy(cfg.Stock.OversellPolicy), cfg.Stock.DefaultRatio),
		Locker: locker,
		Logger: zlog,
	})

	startedAt := time.Now()
	processed, updated, err := svc.RecalculateAll(ctx)
	if err != nil {
		zlog.Fatal("recalculate stock", zap.Int("processed", processed), zap.Int("updated", updated), zap.Error(err))
	}
	zlog.Info("stock recalculated",
		zap.Int("processed", processed),
		zap.Int("updated", updated),
		zap.Duration("duration", time.Since(startedAt)),
	)
}

// newLocker shares the server's Redis item locks when REDIS_ADDR is set. An
// unreachable Redis is an error: local locks would not exclude a running
// server.
func newLocker(ctx context.Context, cfg config.Config, zlog *zap.Logger) (lock.Locker, func() error, error) {
	if cfg.RedisAddr == "" {
		zlog.Info("locks: local")
		return lock.NewLocalLocker(), func() error { return nil }, nil
	}
	client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	zlog.Info("locks: redis", zap.String("addr", cfg.RedisAddr))
	return lock.NewRedisLocker(client, time.Duration(cfg.Stock.LockTTLSeconds)*time.Second, zlog), client.Close, nil
}
