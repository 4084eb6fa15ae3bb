package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs-labo46/ec-payments/internal/handler"
	"github.com/rs-labo46/ec-payments/internal/infra/cache"
	"github.com/rs-labo46/ec-payments/internal/infra/db"
	"github.com/rs-labo46/ec-payments/internal/infra/messaging"
	infraRepo "github.com/rs-labo46/ec-payments/internal/infra/repository"
	"github.com/rs-labo46/ec-payments/internal/middleware"
	"github.com/rs-labo46/ec-payments/internal/payment"
	"github.com/rs-labo46/ec-payments/internal/server"
	"github.com/rs-labo46/ec-payments/internal/usecase"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		port            string
		autoMigrate     bool
		cleanupInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (webhook, checkout, admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if port == "" {
				port = a.cfg.Port
			}
			if autoMigrate {
				if err := db.Migrate(a.db); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, a, ":"+port, cleanupInterval)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default: PORT)")
	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "run migrations before serving")
	cmd.Flags().DurationVar(&cleanupInterval, "cleanup-interval", 0, "run abandoned-order cleanup on this interval (0 disables)")

	return cmd
}

func serve(ctx context.Context, a *app, addr string, cleanupInterval time.Duration) error {
	cfg := a.cfg
	logger := a.logger

	//Repository（GORM実装）
	txm := infraRepo.NewTxManagerGorm(a.db)
	txnRepo := infraRepo.NewTransactionGormRepository(a.db)
	orderRepo := infraRepo.NewOrderGormRepository(a.db)
	itemRepo := infraRepo.NewOrderItemGormRepository(a.db)
	eventRepo := infraRepo.NewWebhookEventGormRepository(a.db)
	auditRepo := infraRepo.NewAuditLogGormRepository(a.db)

	//Redis（任意）
	var settledCache usecase.SettlementCache = usecase.NoopSettlementCache{}
	if cfg.RedisAddr != "" {
		rdb := cache.New(cfg.RedisAddr)
		defer rdb.Close()
		settledCache = cache.NewSettlementCache(rdb)
	}

	//Kafka（任意）
	var notifier usecase.OrderPaidNotifier = usecase.NoopNotifier{}
	if len(cfg.KafkaBrokers) > 0 {
		prod := messaging.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicOrderPaid, cfg.ServiceName, 1024, logger)
		prod.Start()
		//HTTPを止めた後に残りを書き切る
		defer prod.Close()
		notifier = prod
	}

	if cfg.StripeWebhookSecret == "" {
		logger.Warnj(log.JSON{"msg": "STRIPE_WEBHOOK_SECRET is empty; webhooks will be rejected"})
	}
	verifier := payment.NewStripeVerifier(cfg.StripeWebhookSecret, cfg.WebhookTolerance)
	checkout := payment.NewStripeCheckout(cfg.StripeSecretKey, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)

	//Usecase
	clock := usecase.SystemClock{}
	settlementUC := usecase.NewSettlementUsecase(txm, txnRepo, eventRepo, settledCache, notifier, clock, logger)
	checkoutUC := usecase.NewCheckoutUsecase(orderRepo, itemRepo, txnRepo, checkout, logger)
	adminUC := usecase.NewAdminUsecase(txm, txnRepo, auditRepo, clock)

	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}

	e := server.New(logger)
	server.RegisterRoutes(e, server.Handlers{
		Health:   handler.NewHealthHandler(sqlDB),
		Webhook:  handler.NewWebhookHandler(verifier, settlementUC, logger),
		Checkout: handler.NewCheckoutHandler(checkoutUC),
		Admin:    handler.NewAdminHandler(adminUC),
	}, middleware.AuthJWT(cfg.JWTSecret))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if cleanupInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runCleanupLoop(ctx, newCleanupUsecase(a), cleanupInterval, cfg.AbandonedAfter, logger)
		}()
	}

	logger.Infoj(log.JSON{"msg": "listening", "addr": addr, "env": cfg.GoEnv})
	err = server.Run(ctx, e, addr)
	cancel()
	wg.Wait()
	if err != nil {
		return err
	}
	logger.Infoj(log.JSON{"msg": "shutdown complete"})
	return nil
}

func runCleanupLoop(ctx context.Context, uc *usecase.CleanupUsecase, every, olderThan time.Duration, logger *log.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := uc.Run(ctx, olderThan); err != nil && ctx.Err() == nil {
				logger.Errorj(log.JSON{"msg": "cleanup run failed", "error": err.Error()})
			}
		}
	}
}
