package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"pizzacup/cmd/buildCFG"
	"pizzacup/internal/api/api"
	"pizzacup/internal/consumerWorker"
	"pizzacup/internal/mailer"
	"pizzacup/internal/payments"
	"pizzacup/internal/payments/stripe"
	"pizzacup/internal/payments/stub"
	"pizzacup/internal/rabbit"
	"pizzacup/internal/repo"
	"pizzacup/internal/service"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", "'"); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)

	masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
	if err != nil {
		log.Fatal().Msgf("failed to connect to DB: %v", err)
	}
	if err := db.Master.Ping(); err != nil {
		log.Fatal().Msgf("DB ping failed: %v", err)
	}
	log.Info().Msg("Database connected successfully")

	repository, err := repo.NewRepository(db, &log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot get working directory")
	}
	migrationPath := filepath.Join(cwd, "migrations/postgres")
	if err := repository.MigrateUp(migrationPath); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("Migrations applied successfully")

	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load RabbitMQ config")
	}
	rmq, err := rabbit.New(rabbitCfg.Url, rabbitCfg.Exchange, rabbitCfg.Queue)
	if err != nil {
		log.Fatal().Msgf("failed to connect to RabbitMQ: %v", err)
	}
	defer rmq.Close()

	paymentCfg := buildCFG.BuildPaymentConfig(cfg, &log)
	var provider payments.Provider
	switch paymentCfg.Provider {
	case "stripe":
		provider = stripe.New(paymentCfg.StripeKey, paymentCfg.WebhookSecret, paymentCfg.Currency)
	case "stub":
		provider = stub.New(paymentCfg.WebhookSecret, paymentCfg.BasePublicURL)
	default:
		log.Fatal().Msgf("unknown payment provider: %s", paymentCfg.Provider)
	}
	log.Info().Str("provider", provider.Name()).Msg("Payment provider initialized")

	mailCfg := buildCFG.BuildMailConfig(cfg)
	mail := mailer.New(mailCfg.Host, mailCfg.Port, mailCfg.From, mailCfg.Pass, &log)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())

	sweeper := consumerWorker.NewReader(rmq, repository, mail)
	sweeper.Start(workerCtx)

	checkoutCfg := buildCFG.BuildCheckoutConfig(cfg, &log)
	serviceInstance := service.NewService(repository, &log, rmq, provider, mail, service.CheckoutConfig{
		HoldTimeout: checkoutCfg.HoldTimeout,
		SuccessURL:  paymentCfg.SuccessURL,
		CancelURL:   paymentCfg.CancelURL,
	})
	app := api.NewRouters(&api.Routers{Service: serviceInstance})

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := app.Run(":" + serverCfg.Port); err != nil {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case err := <-serverErrChan:
		log.Error().Msgf("Server error: %v", err)
	}

	cancelWorkers()
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if closer, ok := interface{}(app).(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(shutdownCtx); err != nil {
			log.Error().Msgf("Error shutting down server: %v", err)
		}
	}

	log.Info().Msg("Shutdown complete")
}
