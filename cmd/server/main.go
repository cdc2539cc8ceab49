package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invest/internal/config"
	"invest/internal/db"
	"invest/internal/handlers"
	"invest/internal/profit"
	"invest/internal/scheduler"
	"invest/internal/services"
	"invest/internal/store"
	"invest/internal/websocket"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	users := store.NewUserStore(database)
	wallets := store.NewWalletStore(database)
	packages := store.NewPackageStore(database)
	investments := store.NewInvestmentStore(database)
	trades := store.NewTradeStore(database)
	profits := store.NewProfitHistoryStore(database)
	transactions := store.NewTransactionStore(database)
	events := store.NewEventStore(database)
	referrals := store.NewReferralStore(database)
	settings := store.NewSettingsStore(database)
	admin := store.NewAdminStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	ledgerSvc := services.NewLedgerService(txRunner, wallets, transactions, events, profits, audit, settings)
	investmentSvc := services.NewInvestmentService(txRunner, wallets, investments, packages, referrals, transactions, audit, settings)
	tradeSvc := services.NewTradeService(txRunner, wallets, investments, trades, profits, packages, transactions, audit, profit.NewRandomRateSource())
	commissionSvc := services.NewCommissionService(txRunner, wallets, referrals, transactions, audit, settings)
	refundSvc := services.NewRefundService(txRunner, wallets, transactions, profits, audit)
	reconcileSvc := services.NewReconcileService(txRunner, wallets, investments, profits, audit)
	outboxSvc := services.NewOutboxService(txRunner, database, events, transactions, commissionSvc, refundSvc)
	userSvc := services.NewUserService(txRunner, users, wallets, referrals, audit, cfg.JWTSecret, cfg.TokenTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var jobRunner handlers.JobRunner
	if cfg.SchedulerEnabled {
		runner := scheduler.NewRunner(log, cfg.JobMaxRetries, cfg.JobTimeout,
			scheduler.ProcessCompletedTradesJob(tradeSvc, settings),
			scheduler.AutoInitiateDailyTradesJob(tradeSvc, settings),
			scheduler.CheckInvestmentMaturityJob(investmentSvc),
			scheduler.CleanupFailedTradesJob(tradeSvc, settings),
			scheduler.ReconcileWalletBalancesJob(reconcileSvc),
			scheduler.DispatchTransactionEventsJob(outboxSvc),
		)
		runner.Start(ctx)
		defer runner.Stop()
		jobRunner = runner
	}

	handler := handlers.New(txRunner, cfg, userSvc, ledgerSvc, investmentSvc, tradeSvc, reconcileSvc, users, transactions, profits, referrals, admin, audit, jobRunner, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("investment API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
