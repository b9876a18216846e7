package service

import (
	"context"
	"errors"
	"testing"

	"pizzacup/internal/mailer"
	"pizzacup/internal/model"
	"pizzacup/internal/payments"
)

func TestApplyCompletedPayment_FinalizesAndNotifies(t *testing.T) {
	f := newFakeRepo()
	f.events["ev1"] = openEvent("ev1")
	f.users["u1"] = &model.User{ID: "u1", Email: "chef@example.com"}
	f.finalizeApplied = true

	svc, _, mail := newTestService(f, &fakeProvider{})

	err := svc.applyCompletedPayment(context.Background(), &payments.WebhookEvent{
		Type:        payments.EventPaymentCompleted,
		SessionRef:  "sess_1",
		ChargeRef:   "ch_1",
		AmountCents: 3500,
		Meta: payments.Metadata{
			UserID:   "u1",
			EventID:  "ev1",
			SlotIDs:  []string{"s1", "s2"},
			PackName: "Duo Pack",
		},
	})
	if err != nil {
		t.Fatalf("applyCompletedPayment failed: %v", err)
	}

	if len(f.finalized) != 1 {
		t.Fatalf("expected 1 finalize call, got %d", len(f.finalized))
	}
	p := f.finalized[0]
	if p.Status != model.PaymentStatusPaid || p.SessionRef != "sess_1" || p.ChargeRef != "ch_1" {
		t.Fatalf("unexpected finalized payment: %+v", p)
	}
	if p.AmountCents != 3500 || len(p.SlotIDs) != 2 || !p.IsPack || p.PackName != "Duo Pack" {
		t.Fatalf("payment did not carry webhook metadata: %+v", p)
	}

	if len(mail.kinds) != 1 || mail.kinds[0] != mailer.KindPaid {
		t.Fatalf("expected paid email, got %v", mail.kinds)
	}
}

func TestApplyCompletedPayment_RedeliverySkipped(t *testing.T) {
	f := newFakeRepo()
	f.finalizeApplied = false

	svc, _, mail := newTestService(f, &fakeProvider{})

	err := svc.applyCompletedPayment(context.Background(), &payments.WebhookEvent{
		Type:       payments.EventPaymentCompleted,
		SessionRef: "sess_1",
		Meta:       payments.Metadata{UserID: "u1", EventID: "ev1", SlotIDs: []string{"s1"}},
	})
	if err != nil {
		t.Fatalf("redelivery must be acknowledged, got %v", err)
	}
	if len(mail.kinds) != 0 {
		t.Fatalf("no email on a skipped redelivery, got %v", mail.kinds)
	}
}

func TestApplyCompletedPayment_MissingMetadata(t *testing.T) {
	f := newFakeRepo()
	svc, _, _ := newTestService(f, &fakeProvider{})

	err := svc.applyCompletedPayment(context.Background(), &payments.WebhookEvent{
		Type:       payments.EventPaymentCompleted,
		SessionRef: "sess_1",
	})
	if err != nil {
		t.Fatalf("unusable metadata must be acknowledged, got %v", err)
	}
	if len(f.finalized) != 0 {
		t.Fatalf("nothing should be finalized without metadata")
	}
}

func TestApplyCompletedPayment_StoreError(t *testing.T) {
	f := newFakeRepo()
	f.finalizeErr = errors.New("db down")

	svc, _, _ := newTestService(f, &fakeProvider{})

	err := svc.applyCompletedPayment(context.Background(), &payments.WebhookEvent{
		Type:       payments.EventPaymentCompleted,
		SessionRef: "sess_1",
		Meta:       payments.Metadata{UserID: "u1", EventID: "ev1", SlotIDs: []string{"s1"}},
	})
	if err == nil {
		t.Fatalf("store errors must propagate so the gateway retries")
	}
}

func TestApplyRefund_PrefersChargeRef(t *testing.T) {
	f := newFakeRepo()
	f.events["ev1"] = openEvent("ev1")
	f.users["u1"] = &model.User{ID: "u1", Email: "chef@example.com"}
	f.refundPayment = &model.Payment{ID: "pay1", EventID: "ev1", UserID: "u1", SlotIDs: []string{"s1"}}

	svc, _, mail := newTestService(f, &fakeProvider{})

	err := svc.applyRefund(context.Background(), &payments.WebhookEvent{
		Type:       payments.EventChargeRefunded,
		SessionRef: "sess_1",
		ChargeRef:  "ch_1",
	})
	if err != nil {
		t.Fatalf("applyRefund failed: %v", err)
	}
	if len(f.refundedRefs) != 1 || f.refundedRefs[0] != "ch_1" {
		t.Fatalf("expected refund by charge ref, got %v", f.refundedRefs)
	}
	if len(mail.kinds) != 1 || mail.kinds[0] != mailer.KindRefunded {
		t.Fatalf("expected refund email, got %v", mail.kinds)
	}
}

func TestApplyRefund_FallsBackToSessionRef(t *testing.T) {
	f := newFakeRepo()
	f.refundPayment = &model.Payment{ID: "pay1", EventID: "ev1", UserID: "u1"}

	svc, _, _ := newTestService(f, &fakeProvider{})

	err := svc.applyRefund(context.Background(), &payments.WebhookEvent{
		Type:       payments.EventChargeRefunded,
		SessionRef: "sess_1",
	})
	if err != nil {
		t.Fatalf("applyRefund failed: %v", err)
	}
	if len(f.refundedRefs) != 1 || f.refundedRefs[0] != "sess_1" {
		t.Fatalf("expected refund by session ref, got %v", f.refundedRefs)
	}
}

func TestApplyRefund_UnknownPaymentAcknowledged(t *testing.T) {
	f := newFakeRepo()
	f.refundErr = errors.New("no payment for ref")

	svc, _, mail := newTestService(f, &fakeProvider{})

	err := svc.applyRefund(context.Background(), &payments.WebhookEvent{
		Type:      payments.EventChargeRefunded,
		ChargeRef: "ch_unknown",
	})
	if err != nil {
		t.Fatalf("unknown refund must be acknowledged, got %v", err)
	}
	if len(mail.kinds) != 0 {
		t.Fatalf("no email for an unknown refund")
	}
}
