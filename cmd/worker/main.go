// Package main runs the standalone XP retry worker for deployments that keep
// background processing out of the API servers.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/techsoc/backend/config"
	"github.com/techsoc/backend/internal/events"
	"github.com/techsoc/backend/internal/worker"
	"github.com/techsoc/backend/internal/xp"
	"github.com/techsoc/backend/pkg/database"
	"github.com/techsoc/backend/pkg/logger"
	"github.com/techsoc/backend/pkg/queue"
	"github.com/techsoc/backend/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), zl)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, zl)
	if err != nil {
		zl.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	ledger := xp.NewLedger(pool)
	leaderboard := xp.NewLeaderboardCache(ledger, rdb.Client, cfg.Leaderboard.CacheTTL, zl)
	xpService := xp.NewService(ledger, leaderboard)
	jobQueue := queue.NewQueue(rdb.Client, cfg.Worker.MaxRetries, zl)
	processor := worker.NewXPAwardProcessor(jobQueue, events.NewRepository(pool), xpService,
		cfg.Worker.RetryBackoff, cfg.Worker.DequeueWait, zl)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		processor.Run(workerCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	<-done
	zl.Info("worker stopped")
}
