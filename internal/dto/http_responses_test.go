package dto

import (
	"context"
	"strings"
	"testing"
	"time"

	"pizzacup/pkg/validator"
)

func slotsRequest(date string) CreateSlotsRequest {
	return CreateSlotsRequest{
		EventID:    "ev1",
		CategoryID: "c1",
		Date:       date,
		From:       time.Date(2026, 9, 12, 9, 0, 0, 0, time.UTC),
		Count:      4,
	}
}

func TestCreateSlotsRequest_DateFormat(t *testing.T) {
	if err := validator.Validate(context.Background(), slotsRequest("2026-09-12")); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	err := validator.Validate(context.Background(), slotsRequest("12.09.2026"))
	if err == nil || !strings.Contains(err.Error(), "YYYY-MM-DD") {
		t.Fatalf("expected calendar date error, got %v", err)
	}
}
