package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tapcard/cardshop/internal/analytics"
	"github.com/tapcard/cardshop/internal/auth"
	"github.com/tapcard/cardshop/internal/config"
	"github.com/tapcard/cardshop/internal/httpx"
	kafkax "github.com/tapcard/cardshop/internal/kafka"
	"github.com/tapcard/cardshop/internal/logger"
	"github.com/tapcard/cardshop/internal/notify"
	"github.com/tapcard/cardshop/internal/orders"
	"github.com/tapcard/cardshop/internal/postgres"
	"github.com/tapcard/cardshop/internal/pricing"
	"github.com/tapcard/cardshop/internal/redisx"
)

func main() {
	// cardshop-api hash-password <password> prints a value for AUTH_ADMIN_PASSWORD_HASH
	if len(os.Args) == 3 && os.Args[1] == "hash-password" {
		h, err := auth.HashPassword(os.Args[2])
		if err != nil {
			log.Fatalf("hash: %v", err)
		}
		fmt.Println(h)
		return
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
			ServerName:  cfg.ServiceName,
		}); err != nil {
			logger.Warn("sentry disabled", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.L().Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.L().Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		// tracking still works without the cache
		logger.Warn("redis unavailable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderLifecycle, 1024)
	prod.Start(ctx)

	// Catalog
	catalog := pricing.DefaultCatalog()
	if cfg.CatalogFile != "" {
		if catalog, err = pricing.LoadCatalogFile(cfg.CatalogFile); err != nil {
			logger.L().Fatal("catalog", zap.String("file", cfg.CatalogFile), zap.Error(err))
		}
	}

	// Mail
	var transport notify.Transport = notify.LogTransport{}
	if cfg.Mail.ResendAPIKey != "" {
		transport = notify.NewResendTransport(cfg.Mail.ResendAPIKey, cfg.Mail.From)
	} else {
		logger.Warn("MAIL_RESEND_API_KEY not set, emails are only logged")
	}
	renderer, err := notify.NewRenderer()
	if err != nil {
		logger.L().Fatal("templates", zap.Error(err))
	}
	dispatcher := notify.NewDispatcher(renderer, transport, cfg.Mail.OperatorEmail, cfg.Mail.DefaultLocale)

	// Service
	svc := &orders.Service{
		Store:         &orders.Repo{DB: db},
		Pricing:       pricing.NewCalculator(catalog, pricing.EliteOrder),
		Notifier:      dispatcher,
		Cache:         redisx.NewTrackingCache(rdb),
		Events:        prod,
		Producer:      cfg.ServiceName,
		DefaultLocale: cfg.Mail.DefaultLocale,
		OnNotifyError: func(o *orders.Order, ev orders.NotificationEvent, err error) {
			sentry.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("order_number", o.OrderNumber)
				scope.SetTag("notification", string(ev))
				sentry.CaptureException(err)
			})
		},
	}

	authSvc, err := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.AdminEmail, cfg.Auth.AdminPasswordHash)
	if err != nil {
		logger.L().Fatal("auth", zap.Error(err))
	}
	if cfg.Auth.AdminPasswordHash == "" {
		logger.Warn("AUTH_ADMIN_PASSWORD_HASH not set, admin login is disabled")
	}

	router := httpx.NewRouter(httpx.Deps{
		Orders:        svc,
		Auth:          authSvc,
		Contacts:      &orders.ContactRepo{DB: db},
		Analytics:     &analytics.Service{Redis: rdb, ServiceName: cfg.ServiceName},
		RatePerSecond: cfg.RateLimit.PerSecond,
		RateBurst:     cfg.RateLimit.Burst,
		TrustProxy:    cfg.TrustProxy,
	})

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// graceful shutdown
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()
	cancel()
	prod.WaitClosed()
}
