package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tapcard/cardshop/internal/analytics"
	"github.com/tapcard/cardshop/internal/config"
	kafkax "github.com/tapcard/cardshop/internal/kafka"
	"github.com/tapcard/cardshop/internal/logger"
	"github.com/tapcard/cardshop/internal/orders"
	"github.com/tapcard/cardshop/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		logger.L().Fatal("redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	svc := &analytics.Service{Redis: rdb, ServiceName: cfg.ServiceName + "-analytics"}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.Analytics.Group, orders.TopicOrderLifecycle, cfg.Analytics.Workers)

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("analytics consumer started",
			zap.String("group", cfg.Analytics.Group),
			zap.String("topic", orders.TopicOrderLifecycle),
			zap.Int("workers", cfg.Analytics.Workers),
		)
		if err := cons.Start(ctx, svc.HandleLifecycleEvent); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer")
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("consumer did not stop in time")
	}
}
