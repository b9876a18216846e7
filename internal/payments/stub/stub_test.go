package stub

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pizzacup/internal/apperr"
	"pizzacup/internal/payments"
)

func TestParseWebhook_SignedRoundTrip(t *testing.T) {
	p := New("secret", "")
	body := []byte(`{
		"type": "payment_completed",
		"session_ref": "sess_1",
		"charge_ref": "ch_1",
		"amount_cents": 3500,
		"metadata": {"user_id": "u1", "event_id": "ev1", "slot_ids": "s1,s2"}
	}`)

	event, err := p.ParseWebhook(body, Sign("secret", body))
	if err != nil {
		t.Fatalf("ParseWebhook failed: %v", err)
	}
	if event.Type != payments.EventPaymentCompleted || event.SessionRef != "sess_1" || event.ChargeRef != "ch_1" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.AmountCents != 3500 || event.Meta.UserID != "u1" || len(event.Meta.SlotIDs) != 2 {
		t.Fatalf("metadata not decoded: %+v", event)
	}
}

func TestParseWebhook_RejectsBadSignature(t *testing.T) {
	p := New("secret", "")
	body := []byte(`{"type": "payment_completed"}`)

	if _, err := p.ParseWebhook(body, Sign("wrong-secret", body)); !errors.Is(err, apperr.ErrSignatureVerification) {
		t.Fatalf("expected signature error, got %v", err)
	}
	if _, err := p.ParseWebhook(body, ""); !errors.Is(err, apperr.ErrSignatureVerification) {
		t.Fatalf("expected signature error for missing header, got %v", err)
	}
}

func TestParseWebhook_IgnoresUnknownType(t *testing.T) {
	p := New("secret", "")
	body := []byte(`{"type": "invoice.created"}`)

	event, err := p.ParseWebhook(body, Sign("secret", body))
	if err != nil {
		t.Fatalf("ParseWebhook failed: %v", err)
	}
	if event.Type != payments.EventIgnored {
		t.Fatalf("unknown types must map to ignored, got %q", event.Type)
	}
}

func TestCreateSession_BuildsPaymentLink(t *testing.T) {
	p := New("secret", "https://pizzacup.test/")

	session, err := p.CreateSession(context.Background(), nil, payments.Metadata{}, "", "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if !strings.HasPrefix(session.ID, "sess_") {
		t.Fatalf("unexpected session id: %q", session.ID)
	}
	if !strings.HasPrefix(session.URL, "https://pizzacup.test/pay/stub?session=sess_") {
		t.Fatalf("unexpected session url: %q", session.URL)
	}
}
