package payments

import "context"

// Gateway event types the reconciler understands. Anything else is
// acknowledged and ignored so the gateway stops redelivering it.
const (
	EventPaymentCompleted = "payment_completed"
	EventChargeRefunded   = "charge_refunded"
	EventIgnored          = "ignored"
)

type LineItem struct {
	Name        string
	AmountCents int64
	Quantity    int64
}

// Metadata rides on the gateway session and must round-trip losslessly: the
// webhook correlates slots back from it without re-querying business logic.
type Metadata struct {
	UserID   string
	EventID  string
	SlotIDs  []string
	PackName string
}

type Session struct {
	ID  string
	URL string
}

// WebhookEvent is the provider-neutral form of a verified gateway event.
type WebhookEvent struct {
	Type        string
	SessionRef  string
	ChargeRef   string
	AmountCents int64
	Meta        Metadata
}

type Provider interface {
	Name() string

	// CreateSession opens a payment session at the gateway and returns its
	// id and the URL the user is redirected to.
	CreateSession(ctx context.Context, items []LineItem, meta Metadata, successURL, cancelURL string) (*Session, error)

	// ParseWebhook verifies the delivery signature and decodes the event.
	// Returns apperr.ErrSignatureVerification on an unverifiable payload.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
