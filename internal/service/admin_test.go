package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"pizzacup/internal/apperr"
	"pizzacup/internal/dto"
	"pizzacup/internal/model"
)

func TestGenerateSlots_ConsecutiveWindows(t *testing.T) {
	f := newFakeRepo()
	f.events["ev1"] = openEvent("ev1")
	f.categories["c1"] = &model.Category{ID: "c1", EventID: "ev1", MaxSlotsDay: 10, SlotMinutes: 20}

	svc, _, _ := newTestService(f, &fakeProvider{})

	from := time.Date(2026, 9, 12, 9, 0, 0, 0, time.UTC)
	slots, err := svc.generateSlots(context.Background(), dto.CreateSlotsRequest{
		EventID:    "ev1",
		CategoryID: "c1",
		Date:       "2026-09-12",
		From:       from,
		Count:      3,
	})
	if err != nil {
		t.Fatalf("generateSlots failed: %v", err)
	}
	if len(slots) != 3 || len(f.createdSlots) != 3 {
		t.Fatalf("expected 3 slots, got %d generated, %d stored", len(slots), len(f.createdSlots))
	}

	for i, s := range slots {
		wantStart := from.Add(time.Duration(i*20) * time.Minute)
		if !s.StartTime.Equal(wantStart) || !s.EndTime.Equal(wantStart.Add(20*time.Minute)) {
			t.Fatalf("slot %d window is %v-%v, want start %v", i, s.StartTime, s.EndTime, wantStart)
		}
		if s.Status != model.SlotStatusAvailable {
			t.Fatalf("slot %d not available: %q", i, s.Status)
		}
	}
}

func TestGenerateSlots_DayCapExceeded(t *testing.T) {
	f := newFakeRepo()
	f.events["ev1"] = openEvent("ev1")
	f.categories["c1"] = &model.Category{ID: "c1", EventID: "ev1", MaxSlotsDay: 8, SlotMinutes: 30}
	f.slotsPerDay = 6

	svc, _, _ := newTestService(f, &fakeProvider{})

	_, err := svc.generateSlots(context.Background(), dto.CreateSlotsRequest{
		EventID:    "ev1",
		CategoryID: "c1",
		Date:       "2026-09-12",
		From:       time.Now(),
		Count:      3,
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error on day cap, got %v", err)
	}
	if len(f.createdSlots) != 0 {
		t.Fatalf("no slot should be created past the day cap")
	}
}

func TestGenerateSlots_ArchivedEvent(t *testing.T) {
	f := newFakeRepo()
	ev := openEvent("ev1")
	ev.Status = model.EventStatusArchived
	f.events["ev1"] = ev

	svc, _, _ := newTestService(f, &fakeProvider{})

	_, err := svc.generateSlots(context.Background(), dto.CreateSlotsRequest{
		EventID:    "ev1",
		CategoryID: "c1",
		Date:       "2026-09-12",
		From:       time.Now(),
		Count:      1,
	})
	if !errors.Is(err, apperr.ErrEventLocked) {
		t.Fatalf("expected event locked, got %v", err)
	}
}

func TestAssignSlots_OfferedWhenUnpaid(t *testing.T) {
	f := newFakeRepo()
	f.events["ev1"] = openEvent("ev1")
	seedSlot(f, "s1", "ev1", "c1")
	seedSlot(f, "s2", "ev1", "c1")

	svc, _, _ := newTestService(f, &fakeProvider{})

	err := svc.assignSlots(context.Background(), dto.AssignRequest{
		SlotIDs: []string{"s1", "s2"},
		UserID:  "u1",
		AdminID: "adm1",
	})
	if err != nil {
		t.Fatalf("assignSlots failed: %v", err)
	}
	if f.assignedStatus != model.SlotStatusOffered {
		t.Fatalf("expected offered for unpaid user, got %q", f.assignedStatus)
	}
	if f.assignedUserID != "u1" || f.assignedAdmin != "adm1" || len(f.assignedSlots) != 2 {
		t.Fatalf("unexpected assignment call: user=%q admin=%q slots=%v", f.assignedUserID, f.assignedAdmin, f.assignedSlots)
	}
}

func TestAssignSlots_PaidWhenRegistrationSettled(t *testing.T) {
	f := newFakeRepo()
	f.events["ev1"] = openEvent("ev1")
	seedSlot(f, "s1", "ev1", "c1")
	f.registrations["u1|ev1"] = &model.Registration{UserID: "u1", EventID: "ev1", Paid: true}

	svc, _, _ := newTestService(f, &fakeProvider{})

	err := svc.assignSlots(context.Background(), dto.AssignRequest{
		SlotIDs: []string{"s1"},
		UserID:  "u1",
		AdminID: "adm1",
	})
	if err != nil {
		t.Fatalf("assignSlots failed: %v", err)
	}
	if f.assignedStatus != model.SlotStatusPaid {
		t.Fatalf("expected paid for settled user, got %q", f.assignedStatus)
	}
}

func TestAssignSlots_NoPaidDowngrade(t *testing.T) {
	f := newFakeRepo()
	f.events["ev1"] = openEvent("ev1")
	seedSlot(f, "s1", "ev1", "c1")
	f.slots["s1"].Status = model.SlotStatusPaid
	f.slots["s1"].UserID = "u1"

	svc, _, _ := newTestService(f, &fakeProvider{})

	err := svc.assignSlots(context.Background(), dto.AssignRequest{
		SlotIDs: []string{"s1"},
		UserID:  "u1",
		AdminID: "adm1",
	})
	if !errors.Is(err, apperr.ErrProtectedState) {
		t.Fatalf("expected protected state for paid slot, got %v", err)
	}
	if len(f.assignedSlots) != 0 {
		t.Fatalf("a paid slot must not be restated to offered")
	}
}

func TestAssignSlots_SpanMultipleEvents(t *testing.T) {
	f := newFakeRepo()
	f.events["ev1"] = openEvent("ev1")
	seedSlot(f, "s1", "ev1", "c1")
	seedSlot(f, "s2", "ev2", "c1")

	svc, _, _ := newTestService(f, &fakeProvider{})

	err := svc.assignSlots(context.Background(), dto.AssignRequest{
		SlotIDs: []string{"s1", "s2"},
		UserID:  "u1",
		AdminID: "adm1",
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.assignedSlots) != 0 {
		t.Fatalf("no assignment should happen across events")
	}
}

func TestAssignSlots_ClosedEvent(t *testing.T) {
	f := newFakeRepo()
	ev := openEvent("ev1")
	ev.Status = model.EventStatusClosed
	f.events["ev1"] = ev
	seedSlot(f, "s1", "ev1", "c1")

	svc, _, _ := newTestService(f, &fakeProvider{})

	err := svc.assignSlots(context.Background(), dto.AssignRequest{
		SlotIDs: []string{"s1"},
		UserID:  "u1",
		AdminID: "adm1",
	})
	if !errors.Is(err, apperr.ErrEventLocked) {
		t.Fatalf("expected event locked, got %v", err)
	}
}
