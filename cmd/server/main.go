package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"omnistock/backend/internal/alert"
	"omnistock/backend/internal/cache"
	"omnistock/backend/internal/config"
	"omnistock/backend/internal/events"
	"omnistock/backend/internal/httpapi"
	"omnistock/backend/internal/lock"
	"omnistock/backend/internal/logger"
	"omnistock/backend/internal/service"
	"omnistock/backend/internal/stock"
	"omnistock/backend/internal/store"
	"omnistock/backend/internal/store/memory"
	pgstore "omnistock/backend/internal/store/postgres"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.Load()
	zlog, err := logger.New(cfg.AppEnv, cfg.Logger)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	zap.ReplaceGlobals(zlog)

	if err := validateSecurityConfig(cfg); err != nil {
		zlog.Fatal("invalid security configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 5)
	repo, repoClose := openRepository(ctx, cfg, zlog)
	if repoClose != nil {
		closers = append(closers, repoClose)
	}

	var (
		reports cache.ReportCache = cache.NoopReportCache{}
		locker  lock.Locker       = lock.NewLocalLocker()
	)
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := client.Ping(ctx).Err(); err != nil {
			zlog.Warn("redis unavailable, using noop report cache and local item locks", zap.Error(err))
			_ = client.Close()
		} else {
			reports = cache.NewRedisReportCache(client)
			locker = lock.NewRedisLocker(client, time.Duration(cfg.Stock.LockTTLSeconds)*time.Second, zlog)
			closers = append(closers, closeRedis(client))
			zlog.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		zlog.Info("cache: noop")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled() {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.SalesTopic, zlog)
		zlog.Info("events: kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.SalesTopic))
	}
	closers = append(closers, publisher.Close)

	var mailer alert.Mailer = alert.NewLogMailer(zlog)
	if cfg.SMTP.Enabled() {
		smtp, err := alert.NewSMTPMailer(cfg.SMTP)
		if err != nil {
			zlog.Warn("smtp mailer unavailable, alert email will only be logged", zap.Error(err))
		} else {
			mailer = smtp
		}
	}

	alerts := alert.NewDispatcher(repo, mailer, cfg.OwnerEmail, zlog)
	closers = append(closers, alerts.Close)

	svc := service.New(repo, service.Dependencies{
		Ledger:    stock.NewLedger(stock.ParseOversellPolicy(cfg.Stock.OversellPolicy), cfg.Stock.DefaultRatio),
		Locker:    locker,
		Alerts:    alerts,
		Events:    publisher,
		Reports:   reports,
		ReportTTL: time.Duration(cfg.ReportCacheTTLSeconds) * time.Second,
		Logger:    zlog,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, zlog)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zlog.Info("omnistock backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zlog.Warn("close error", zap.Error(err))
		}
	}

	zlog.Info("server stopped")
}

// openRepository connects to postgres when DATABASE_URL is set and refuses to
// fall back to memory in that case.
func openRepository(ctx context.Context, cfg config.Config, zlog *zap.Logger) (store.Repository, func() error) {
	if cfg.DatabaseURL == "" {
		zlog.Info("repository: in-memory")
		return memory.NewSeeded(), nil
	}

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		zlog.Fatal("apply schema", zap.Error(err))
	}
	zlog.Info("repository: postgres")
	return pg, pg.Close
}

func closeRedis(client *redis.Client) func() error {
	return func() error { return client.Close() }
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.Stock.DefaultRatio < 0 || cfg.Stock.DefaultRatio > 1 {
		return fmt.Errorf("DEFAULT_STOCK_RATIO must be between 0 and 1")
	}
	if cfg.AppEnv == "production" && cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must not be * in production")
	}
	return nil
}
