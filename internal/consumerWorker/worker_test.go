package consumerWorker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"pizzacup/internal/apperr"
	"pizzacup/internal/dto"
	"pizzacup/internal/mailer"
	"pizzacup/internal/model"
	"pizzacup/internal/repo"
)

type fakeRepo struct {
	repo.Repository

	releasedSlots   []string
	releasedSession string
	releaseResult   []string
	releaseErr      error

	failedSessions []string

	event *model.Event
}

func (f *fakeRepo) ReleaseExpiredHoldTx(_ context.Context, slotIDs []string, sessionRef string) ([]string, error) {
	if f.releaseErr != nil {
		return nil, f.releaseErr
	}
	f.releasedSlots = slotIDs
	f.releasedSession = sessionRef
	return f.releaseResult, nil
}

func (f *fakeRepo) MarkPaymentFailed(_ context.Context, sessionRef string) error {
	f.failedSessions = append(f.failedSessions, sessionRef)
	return nil
}

func (f *fakeRepo) GetEventByID(_ context.Context, id string) (*model.Event, error) {
	if f.event != nil && f.event.ID == id {
		return f.event, nil
	}
	return nil, apperr.ErrNotFound
}

type fakeNotifier struct {
	recipients []string
	kinds      []string
}

func (f *fakeNotifier) Send(recipient, kind, _ string, _ int) error {
	f.recipients = append(f.recipients, recipient)
	f.kinds = append(f.kinds, kind)
	return nil
}

func expiryBody(t *testing.T, msg dto.HoldExpiryMessage) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal message: %v", err)
	}
	return body
}

func TestHandle_ReleasesExpiredHold(t *testing.T) {
	f := &fakeRepo{
		releaseResult: []string{"s1", "s2"},
		event:         &model.Event{ID: "ev1", Name: "Pizza Cup"},
	}
	mail := &fakeNotifier{}
	r := &Reader{repo: f, mail: mail}

	body := expiryBody(t, dto.HoldExpiryMessage{
		SessionRef: "sess_1",
		EventID:    "ev1",
		UserID:     "u1",
		UserEmail:  "chef@example.com",
		SlotIDs:    []string{"s1", "s2"},
		ExpireAt:   time.Now(),
	})
	if err := r.handle(context.Background(), body); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if f.releasedSession != "sess_1" || len(f.releasedSlots) != 2 {
		t.Fatalf("unexpected release call: session=%q slots=%v", f.releasedSession, f.releasedSlots)
	}
	if len(f.failedSessions) != 1 || f.failedSessions[0] != "sess_1" {
		t.Fatalf("pending payment not marked failed: %v", f.failedSessions)
	}
	if len(mail.kinds) != 1 || mail.kinds[0] != mailer.KindExpired {
		t.Fatalf("expected expiry email, got %v", mail.kinds)
	}
}

func TestHandle_HoldAlreadyFinalized(t *testing.T) {
	f := &fakeRepo{releaseResult: nil}
	mail := &fakeNotifier{}
	r := &Reader{repo: f, mail: mail}

	body := expiryBody(t, dto.HoldExpiryMessage{
		SessionRef: "sess_1",
		EventID:    "ev1",
		UserEmail:  "chef@example.com",
		SlotIDs:    []string{"s1"},
	})
	if err := r.handle(context.Background(), body); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if len(f.failedSessions) != 0 {
		t.Fatalf("a finalized hold must not mark the payment failed")
	}
	if len(mail.kinds) != 0 {
		t.Fatalf("no email when nothing was swept, got %v", mail.kinds)
	}
}

func TestHandle_ReleaseErrorRequeues(t *testing.T) {
	f := &fakeRepo{releaseErr: errors.New("db down")}
	r := &Reader{repo: f, mail: &fakeNotifier{}}

	body := expiryBody(t, dto.HoldExpiryMessage{SessionRef: "sess_1", SlotIDs: []string{"s1"}})
	if err := r.handle(context.Background(), body); err == nil {
		t.Fatalf("store errors must propagate so the message is requeued")
	}
}

func TestHandle_MalformedPayload(t *testing.T) {
	r := &Reader{repo: &fakeRepo{}, mail: &fakeNotifier{}}

	if err := r.handle(context.Background(), []byte("{not json")); err == nil {
		t.Fatalf("malformed payload must error")
	}
}
