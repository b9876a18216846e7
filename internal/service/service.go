package service

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"pizzacup/internal/payments"
	"pizzacup/internal/repo"
)

// DelayedPublisher schedules a message for delivery after a delay.
// *rabbit.Client satisfies it.
type DelayedPublisher interface {
	PublishDelayed(message []byte, delay time.Duration) error
}

// Notifier sends booking lifecycle emails. *mailer.Mailer satisfies it.
type Notifier interface {
	Send(recipient, kind, eventName string, timeoutMinutes int) error
}

type Service interface {
	CreateEvent(ctx *ginext.Context)
	UpdateEvent(ctx *ginext.Context)
	GetEvent(ctx *ginext.Context)
	GetAllEvents(ctx *ginext.Context)
	ListEventSlots(ctx *ginext.Context)

	CreateCategory(ctx *ginext.Context)
	DeleteCategory(ctx *ginext.Context)
	CreateProduct(ctx *ginext.Context)
	CreateVoucher(ctx *ginext.Context)

	CheckoutSingle(ctx *ginext.Context)
	CheckoutPack(ctx *ginext.Context)
	CheckoutVoucher(ctx *ginext.Context)
	PaymentWebhook(ctx *ginext.Context)

	CreateSlots(ctx *ginext.Context)
	DeleteSlot(ctx *ginext.Context)
	DeleteSlotsByDate(ctx *ginext.Context)
	Assign(ctx *ginext.Context)
	Unassign(ctx *ginext.Context)

	Audit(ctx *ginext.Context)
	Reconcile(ctx *ginext.Context)
}

// CheckoutConfig carries the tunables of the checkout flow. HoldTimeout is
// how long a pending hold survives before the expiry sweep releases it.
type CheckoutConfig struct {
	HoldTimeout time.Duration
	SuccessURL  string
	CancelURL   string
}

type service struct {
	repo     repo.Repository
	log      *zerolog.Logger
	rbt      DelayedPublisher
	provider payments.Provider
	mail     Notifier
	checkout CheckoutConfig
}

func NewService(repository repo.Repository, logger *zerolog.Logger, rbt DelayedPublisher, provider payments.Provider, mail Notifier, checkout CheckoutConfig) Service {
	if checkout.HoldTimeout <= 0 {
		checkout.HoldTimeout = 30 * time.Minute
	}
	return &service{
		repo:     repository,
		log:      logger,
		rbt:      rbt,
		provider: provider,
		mail:     mail,
		checkout: checkout,
	}
}
