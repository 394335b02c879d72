package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/opentill/opentill/internal/app"
	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/auth"
	"github.com/opentill/opentill/internal/cashsession"
	"github.com/opentill/opentill/internal/catalog"
	"github.com/opentill/opentill/internal/credit"
	"github.com/opentill/opentill/internal/inventory"
	"github.com/opentill/opentill/internal/ledger"
	"github.com/opentill/opentill/internal/payments"
	"github.com/opentill/opentill/internal/platform/cache"
	"github.com/opentill/opentill/internal/platform/db"
	"github.com/opentill/opentill/internal/refunds"
	"github.com/opentill/opentill/internal/sales"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	observer := audit.NewObserver(asynqClient, logger)

	tokenStore := auth.NewTokenStore(redisClient, cfg.SessionTTL)
	authService := auth.NewService(auth.NewRepository(pool), tokenStore, observer)
	authHandler := auth.NewHandler(logger, authService)

	catalogService := catalog.NewService(catalog.NewRepository(pool))
	catalogHandler := catalog.NewHandler(logger, catalogService)

	inventoryService := inventory.NewService(inventory.NewRepository(pool))
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	salesService := sales.NewService(sales.NewRepository(pool))
	salesHandler := sales.NewHandler(logger, salesService)

	paymentsService := payments.NewService(payments.NewRepository(pool))
	paymentsHandler := payments.NewHandler(logger, paymentsService)

	creditService := credit.NewService(credit.NewRepository(pool))
	creditHandler := credit.NewHandler(logger, creditService)

	refundsService := refunds.NewService(refunds.NewRepository(pool))
	refundsHandler := refunds.NewHandler(logger, refundsService)

	sessionService := cashsession.NewService(cashsession.NewRepository(pool))
	sessionHandler := cashsession.NewHandler(logger, sessionService)

	ledgerService := ledger.NewService(ledger.NewRepository(pool))
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthService:        authService,
		AuthHandler:        authHandler,
		CatalogHandler:     catalogHandler,
		InventoryHandler:   inventoryHandler,
		SalesHandler:       salesHandler,
		PaymentsHandler:    paymentsHandler,
		CreditHandler:      creditHandler,
		RefundsHandler:     refundsHandler,
		CashSessionHandler: sessionHandler,
		LedgerHandler:      ledgerHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
