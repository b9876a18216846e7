package stripe

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"pizzacup/internal/apperr"
	"pizzacup/internal/payments"
)

// Provider talks to Stripe Checkout. Sessions carry the user id and slot id
// list as metadata; webhook deliveries are verified with the endpoint secret.
type Provider struct {
	webhookSecret string
	currency      string
}

func New(apiKey, webhookSecret, currency string) *Provider {
	stripe.Key = apiKey
	if currency == "" {
		currency = "eur"
	}
	return &Provider{webhookSecret: webhookSecret, currency: currency}
}

func (p *Provider) Name() string { return "stripe" }

func (p *Provider) CreateSession(ctx context.Context, items []payments.LineItem, meta payments.Metadata, successURL, cancelURL string) (*payments.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.Context = ctx

	for _, it := range items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.currency),
				UnitAmount: stripe.Int64(it.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}

	for k, v := range meta.Encode() {
		params.AddMetadata(k, v)
	}

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe session create: %w: %v", apperr.ErrUpstreamGateway, err)
	}
	return &payments.Session{ID: s.ID, URL: s.URL}, nil
}

func (p *Provider) ParseWebhook(payload []byte, signature string) (*payments.WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrSignatureVerification, err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("failed to decode checkout session: %w", err)
		}
		out := &payments.WebhookEvent{
			Type:        payments.EventPaymentCompleted,
			SessionRef:  cs.ID,
			AmountCents: cs.AmountTotal,
			Meta:        payments.DecodeMetadata(cs.Metadata),
		}
		if cs.PaymentIntent != nil {
			out.ChargeRef = cs.PaymentIntent.ID
		}
		return out, nil

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("failed to decode charge: %w", err)
		}
		ref := ch.ID
		if ch.PaymentIntent != nil {
			ref = ch.PaymentIntent.ID
		}
		return &payments.WebhookEvent{
			Type:      payments.EventChargeRefunded,
			ChargeRef: ref,
		}, nil

	default:
		return &payments.WebhookEvent{Type: payments.EventIgnored}, nil
	}
}
