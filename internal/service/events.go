package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"pizzacup/internal/dto"
	"pizzacup/internal/model"
	"pizzacup/pkg/validator"
)

func (s *service) CreateEvent(ctx *ginext.Context) {
	var req dto.CreateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	event := &model.Event{
		ID:                   uuid.New().String(),
		Name:                 req.Name,
		Year:                 req.Year,
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		RegistrationDeadline: req.RegistrationDeadline,
		Status:               model.EventStatusDraft,
	}
	if err := s.repo.CreateEvent(ctx.Request.Context(), event); err != nil {
		s.log.Error().Err(err).Msg("failed to create event")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("event_id", event.ID).Str("name", event.Name).Msg("event created")
	dto.SuccessCreatedResponse(ctx, event)
}

// UpdateEvent mutates settings and lifecycle status. Events are never
// deleted; they retire through the archived status.
func (s *service) UpdateEvent(ctx *ginext.Context) {
	id := ctx.Param("id")

	var req dto.UpdateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	event, err := s.repo.GetEventByID(ctx.Request.Context(), id)
	if err != nil {
		dto.FromError(ctx, err)
		return
	}

	if req.Name != "" {
		event.Name = req.Name
	}
	if req.Year != 0 {
		event.Year = req.Year
	}
	if req.StartTime != nil {
		event.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		event.EndTime = *req.EndTime
	}
	if req.RegistrationDeadline != nil {
		event.RegistrationDeadline = *req.RegistrationDeadline
	}
	if req.Status != "" {
		event.Status = req.Status
	}

	if err := s.repo.UpdateEventSettings(ctx.Request.Context(), event); err != nil {
		s.log.Error().Err(err).Str("event_id", id).Msg("failed to update event")
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, event)
}

func (s *service) GetEvent(ctx *ginext.Context) {
	event, err := s.repo.GetEventByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		dto.FromError(ctx, err)
		return
	}

	categories, err := s.repo.GetCategoriesByEventID(ctx.Request.Context(), event.ID)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", event.ID).Msg("failed to load categories")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, map[string]any{
		"event":      event,
		"categories": categories,
	})
}

func (s *service) GetAllEvents(ctx *ginext.Context) {
	events, err := s.repo.GetAllEvents(ctx.Request.Context())
	if err != nil {
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, events)
}

// ListEventSlots serves the booking calendar: slots for a date, or a whole
// category when category_id is given instead.
func (s *service) ListEventSlots(ctx *ginext.Context) {
	eventID := ctx.Param("id")
	date := ctx.Query("date")
	categoryID := ctx.Query("category_id")

	var (
		slots []model.Slot
		err   error
	)
	switch {
	case date != "":
		slots, err = s.repo.GetSlotsByEventDate(ctx.Request.Context(), eventID, date)
	case categoryID != "":
		slots, err = s.repo.GetSlotsByEventCategory(ctx.Request.Context(), eventID, categoryID)
	default:
		dto.BadResponseError(ctx, dto.FieldIncorrect, "date or category_id is required")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("event_id", eventID).Msg("failed to list slots")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, slots)
}

func (s *service) CreateCategory(ctx *ginext.Context) {
	var req dto.CreateCategoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	if _, err := s.repo.GetEventByID(ctx.Request.Context(), req.EventID); err != nil {
		dto.FromError(ctx, err)
		return
	}

	category := &model.Category{
		ID:          uuid.New().String(),
		EventID:     req.EventID,
		Name:        req.Name,
		Description: req.Description,
		Rules:       req.Rules,
		PriceCents:  req.PriceCents,
		MaxSlotsDay: req.MaxSlotsDay,
		SlotMinutes: req.SlotMinutes,
		IsActive:    true,
		ActiveDates: req.ActiveDates,
	}
	if err := s.repo.CreateCategory(ctx.Request.Context(), category); err != nil {
		s.log.Error().Err(err).Msg("failed to create category")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessCreatedResponse(ctx, category)
}

func (s *service) DeleteCategory(ctx *ginext.Context) {
	id := ctx.Param("id")
	if err := s.repo.DeleteCategory(ctx.Request.Context(), id); err != nil {
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, nil)
}

func (s *service) CreateProduct(ctx *ginext.Context) {
	var req dto.CreateProductRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	if _, err := s.repo.GetEventByID(ctx.Request.Context(), req.EventID); err != nil {
		dto.FromError(ctx, err)
		return
	}

	product := &model.Product{
		ID:            uuid.New().String(),
		EventID:       req.EventID,
		Name:          req.Name,
		PriceCents:    req.PriceCents,
		SlotsRequired: req.SlotsRequired,
		IsPack:        req.IsPack,
		IncludesMeal:  req.IncludesMeal,
		IsActive:      true,
	}
	if err := s.repo.CreateProduct(ctx.Request.Context(), product); err != nil {
		s.log.Error().Err(err).Msg("failed to create product")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessCreatedResponse(ctx, product)
}

func (s *service) CreateVoucher(ctx *ginext.Context) {
	var req dto.CreateVoucherRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	if _, err := s.repo.GetProductByID(ctx.Request.Context(), req.ProductID); err != nil {
		dto.FromError(ctx, err)
		return
	}

	voucher := &model.Voucher{
		ID:        uuid.New().String(),
		EventID:   req.EventID,
		Code:      req.Code,
		ProductID: req.ProductID,
		SingleUse: req.SingleUse,
		ExpiresAt: req.ExpiresAt,
	}
	if err := s.repo.CreateVoucher(ctx.Request.Context(), voucher); err != nil {
		s.log.Error().Err(err).Msg("failed to create voucher")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessCreatedResponse(ctx, voucher)
}
