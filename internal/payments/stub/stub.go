package stub

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"pizzacup/internal/apperr"
	"pizzacup/internal/payments"
)

// Stub provider for local runs and tests:
// - CreateSession returns a /pay/stub link with a generated session id
// - ParseWebhook expects a JSON body signed with HMAC-SHA256 (hex) of the
//   shared secret, delivered in the signature header
type Provider struct {
	secret  string
	baseURL string
}

func New(secret, baseURL string) *Provider {
	return &Provider{secret: secret, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *Provider) Name() string { return "stub" }

func (p *Provider) CreateSession(ctx context.Context, items []payments.LineItem, meta payments.Metadata, successURL, cancelURL string) (*payments.Session, error) {
	id := "sess_" + uuid.New().String()
	url := "/pay/stub?session=" + id
	if p.baseURL != "" {
		url = p.baseURL + url
	}
	return &payments.Session{ID: id, URL: url}, nil
}

type webhookPayload struct {
	Type        string            `json:"type"`
	SessionRef  string            `json:"session_ref"`
	ChargeRef   string            `json:"charge_ref"`
	AmountCents int64             `json:"amount_cents"`
	Metadata    map[string]string `json:"metadata"`
}

func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (p *Provider) ParseWebhook(payload []byte, signature string) (*payments.WebhookEvent, error) {
	expected := Sign(p.secret, payload)
	if signature == "" || !hmac.Equal([]byte(signature), []byte(expected)) {
		return nil, apperr.ErrSignatureVerification
	}

	var pl webhookPayload
	if err := json.Unmarshal(payload, &pl); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}

	switch pl.Type {
	case payments.EventPaymentCompleted, payments.EventChargeRefunded:
		return &payments.WebhookEvent{
			Type:        pl.Type,
			SessionRef:  pl.SessionRef,
			ChargeRef:   pl.ChargeRef,
			AmountCents: pl.AmountCents,
			Meta:        payments.DecodeMetadata(pl.Metadata),
		}, nil
	default:
		return &payments.WebhookEvent{Type: payments.EventIgnored}, nil
	}
}
