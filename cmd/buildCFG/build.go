package buildCFG

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
)

type ServerConfig struct {
	Port string
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
}

type PaymentConfig struct {
	Provider      string
	StripeKey     string
	WebhookSecret string
	Currency      string
	BasePublicURL string
	SuccessURL    string
	CancelURL     string
}

type MailConfig struct {
	Host string
	Port string
	From string
	Pass string
}

type CheckoutConfig struct {
	HoldTimeout time.Duration
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
		log.Warn().Msg("server.port not set, defaulting to 8080")
	}
	return ServerConfig{Port: port}
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	masterDSN := cfg.GetString("db.master_dsn")
	if masterDSN == "" {
		return "", nil, nil, fmt.Errorf("db.master_dsn is required")
	}

	slaveDSNs := cfg.GetStringSlice("db.slave_dsns")

	opts := &dbpg.Options{
		MaxOpenConns: cfg.GetInt("db.max_open_conns"),
		MaxIdleConns: cfg.GetInt("db.max_idle_conns"),
	}
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 5
	}

	log.Info().Int("max_open_conns", opts.MaxOpenConns).Msg("DB config built")
	return masterDSN, slaveDSNs, opts, nil
}

func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (RabbitConfig, error) {
	rc := RabbitConfig{
		Url:      cfg.GetString("rabbit.url"),
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
	}
	if rc.Url == "" {
		return rc, fmt.Errorf("rabbit.url is required")
	}
	if rc.Exchange == "" {
		rc.Exchange = "hold-expiry-exchange"
	}
	if rc.Queue == "" {
		rc.Queue = "hold-expiry-queue"
	}
	return rc, nil
}

func BuildPaymentConfig(cfg *config.Config, log *zerolog.Logger) PaymentConfig {
	pc := PaymentConfig{
		Provider:      cfg.GetString("payments.provider"),
		StripeKey:     cfg.GetString("payments.stripe_key"),
		WebhookSecret: cfg.GetString("payments.webhook_secret"),
		Currency:      cfg.GetString("payments.currency"),
		BasePublicURL: cfg.GetString("payments.base_public_url"),
		SuccessURL:    cfg.GetString("payments.success_url"),
		CancelURL:     cfg.GetString("payments.cancel_url"),
	}
	if pc.Provider == "" {
		pc.Provider = "stub"
		log.Warn().Msg("payments.provider not set, defaulting to stub")
	}
	return pc
}

func BuildMailConfig(cfg *config.Config) MailConfig {
	return MailConfig{
		Host: cfg.GetString("mail.smtp_host"),
		Port: cfg.GetString("mail.smtp_port"),
		From: cfg.GetString("mail.from"),
		Pass: cfg.GetString("mail.password"),
	}
}

func BuildCheckoutConfig(cfg *config.Config, log *zerolog.Logger) CheckoutConfig {
	minutes := cfg.GetInt("checkout.hold_timeout_minutes")
	if minutes <= 0 {
		minutes = 30
		log.Warn().Msg("checkout.hold_timeout_minutes not set, defaulting to 30")
	}
	return CheckoutConfig{HoldTimeout: time.Duration(minutes) * time.Minute}
}
