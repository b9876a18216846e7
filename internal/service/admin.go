package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"pizzacup/internal/apperr"
	"pizzacup/internal/dto"
	"pizzacup/internal/model"
	"pizzacup/pkg/validator"
)

// CreateSlots generates a day's slots for a category: Count consecutive
// windows of the category's duration starting at From. Refused once the
// event is closed or archived, and capped by the category's per-day maximum.
func (s *service) CreateSlots(ctx *ginext.Context) {
	var req dto.CreateSlotsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	slots, err := s.generateSlots(ctx.Request.Context(), req)
	if err != nil {
		s.log.Error().Err(err).Str("category_id", req.CategoryID).Msg("failed to create slots")
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessCreatedResponse(ctx, slots)
}

func (s *service) generateSlots(ctx context.Context, req dto.CreateSlotsRequest) ([]model.Slot, error) {
	event, err := s.repo.GetEventByID(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if !model.EventAllowsAssignment(event.Status) {
		return nil, apperr.ErrEventLocked
	}

	category, err := s.repo.GetCategoryByID(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}
	if category.EventID != req.EventID {
		return nil, fmt.Errorf("category belongs to another event: %w", apperr.ErrValidation)
	}

	existing, err := s.repo.CountSlotsForDay(ctx, req.CategoryID, req.Date)
	if err != nil {
		return nil, err
	}
	if existing+req.Count > category.MaxSlotsDay {
		return nil, fmt.Errorf("day already has %d of %d slots: %w", existing, category.MaxSlotsDay, apperr.ErrValidation)
	}

	duration := time.Duration(category.SlotMinutes) * time.Minute
	slots := make([]model.Slot, 0, req.Count)
	start := req.From
	for i := 0; i < req.Count; i++ {
		slots = append(slots, model.Slot{
			ID:         uuid.New().String(),
			EventID:    req.EventID,
			CategoryID: req.CategoryID,
			Date:       req.Date,
			StartTime:  start,
			EndTime:    start.Add(duration),
			Status:     model.SlotStatusAvailable,
		})
		start = start.Add(duration)
	}

	if err := s.repo.CreateSlots(ctx, slots); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("event_id", req.EventID).
		Str("category_id", req.CategoryID).
		Str("date", req.Date).
		Int("count", req.Count).
		Msg("slots created")
	return slots, nil
}

func (s *service) DeleteSlot(ctx *ginext.Context) {
	id := ctx.Param("id")
	if id == "" {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Missing slot id")
		return
	}

	if err := s.repo.DeleteSlot(ctx.Request.Context(), id); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.log.Error().Err(err).Str("slot_id", id).Msg("failed to delete slot")
		}
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, nil)
}

func (s *service) DeleteSlotsByDate(ctx *ginext.Context) {
	eventID := ctx.Query("event_id")
	date := ctx.Query("date")
	if eventID == "" || date == "" {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "event_id and date are required")
		return
	}

	deleted, err := s.repo.DeleteSlotsByDateTx(ctx.Request.Context(), eventID, date)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", eventID).Str("date", date).Msg("failed to delete day slots")
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, map[string]int{"deleted": deleted})
}

// Assign places a competitor into slots outside the payment flow. The
// resulting status follows the user's standing for the event: paid if they
// already settled, offered otherwise.
func (s *service) Assign(ctx *ginext.Context) {
	var req dto.AssignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	if err := s.assignSlots(ctx.Request.Context(), req); err != nil {
		s.log.Error().Err(err).Str("user_id", req.UserID).Strs("slot_ids", req.SlotIDs).Msg("manual assignment failed")
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, nil)
}

func (s *service) assignSlots(ctx context.Context, req dto.AssignRequest) error {
	slots := make([]*model.Slot, 0, len(req.SlotIDs))
	for _, id := range req.SlotIDs {
		slot, err := s.repo.GetSlotByID(ctx, id)
		if err != nil {
			return err
		}
		if len(slots) > 0 && slot.EventID != slots[0].EventID {
			return fmt.Errorf("slots span multiple events: %w", apperr.ErrValidation)
		}
		slots = append(slots, slot)
	}

	event, err := s.repo.GetEventByID(ctx, slots[0].EventID)
	if err != nil {
		return err
	}
	if !model.EventAllowsAssignment(event.Status) {
		return apperr.ErrEventLocked
	}

	resulting := model.SlotStatusOffered
	if reg, err := s.repo.GetRegistration(ctx, req.UserID, slots[0].EventID); err == nil && reg.Paid {
		resulting = model.SlotStatusPaid
	}

	if resulting == model.SlotStatusOffered {
		for _, slot := range slots {
			if slot.Status == model.SlotStatusPaid {
				return apperr.ErrProtectedState
			}
		}
	}

	if err := s.repo.AssignSlotsManualTx(ctx, req.SlotIDs, req.UserID, resulting, req.AdminID); err != nil {
		return err
	}

	s.log.Info().
		Str("user_id", req.UserID).
		Str("admin_id", req.AdminID).
		Str("status", resulting).
		Strs("slot_ids", req.SlotIDs).
		Msg("slots assigned manually")
	return nil
}

func (s *service) Unassign(ctx *ginext.Context) {
	var req dto.UnassignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	if err := s.repo.ReleaseSlotsTx(ctx.Request.Context(), req.SlotIDs); err != nil {
		s.log.Error().Err(err).Strs("slot_ids", req.SlotIDs).Msg("unassign failed")
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, nil)
}
