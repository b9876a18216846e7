package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"pizzacup/internal/apperr"
	"pizzacup/internal/dto"
	"pizzacup/internal/mailer"
	"pizzacup/internal/model"
	"pizzacup/internal/payments"
	"pizzacup/pkg/validator"
)

func (s *service) CheckoutSingle(ctx *ginext.Context) {
	var req dto.SingleCheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	resp, err := s.startCheckout(ctx.Request.Context(), checkoutInput{
		eventID:   req.EventID,
		slotIDs:   req.SlotIDs,
		userID:    req.UserID,
		userEmail: req.UserEmail,
		userName:  req.UserName,
	})
	if err != nil {
		s.log.Error().Err(err).Str("user_id", req.UserID).Msg("single checkout failed")
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessCreatedResponse(ctx, resp)
}

func (s *service) CheckoutPack(ctx *ginext.Context) {
	var req dto.PackCheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	product, err := s.repo.GetProductByID(ctx.Request.Context(), req.ProductID)
	if err != nil {
		dto.FromError(ctx, err)
		return
	}

	resp, err := s.startCheckout(ctx.Request.Context(), checkoutInput{
		eventID:   req.EventID,
		slotIDs:   req.SlotIDs,
		userID:    req.UserID,
		userEmail: req.UserEmail,
		userName:  req.UserName,
		product:   product,
	})
	if err != nil {
		s.log.Error().Err(err).Str("user_id", req.UserID).Str("product_id", req.ProductID).Msg("pack checkout failed")
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessCreatedResponse(ctx, resp)
}

type checkoutInput struct {
	eventID   string
	slotIDs   []string
	userID    string
	userEmail string
	userName  string
	product   *model.Product
}

// startCheckout holds the slots, opens the gateway session and records the
// pending payment intent. The hold is released if the gateway call fails:
// stuck inventory from a half-finished checkout is not an acceptable state.
func (s *service) startCheckout(ctx context.Context, in checkoutInput) (*dto.CheckoutResponse, error) {
	event, err := s.repo.GetEventByID(ctx, in.eventID)
	if err != nil {
		return nil, err
	}
	if event.Status != model.EventStatusOpen || time.Now().After(event.RegistrationDeadline) {
		return nil, apperr.ErrEventLocked
	}

	if in.product != nil {
		if in.product.EventID != in.eventID || !in.product.IsActive {
			return nil, apperr.ErrProductMismatch
		}
		if len(in.slotIDs) != in.product.SlotsRequired {
			return nil, apperr.ErrProductMismatch
		}
	}

	items, total, err := s.buildLineItems(ctx, in)
	if err != nil {
		return nil, err
	}

	if err := s.repo.EnsureUser(ctx, &model.User{
		ID:       in.userID,
		FullName: in.userName,
		Email:    in.userEmail,
		Role:     "competitor",
	}); err != nil {
		return nil, err
	}

	if err := s.repo.ReserveSlotsTx(ctx, in.eventID, in.slotIDs, in.userID, model.SlotStatusPending); err != nil {
		return nil, err
	}

	meta := payments.Metadata{
		UserID:  in.userID,
		EventID: in.eventID,
		SlotIDs: in.slotIDs,
	}
	if in.product != nil {
		meta.PackName = in.product.Name
	}

	session, err := s.provider.CreateSession(ctx, items, meta, s.checkout.SuccessURL, s.checkout.CancelURL)
	if err != nil {
		// Compensating release: the hold must not outlive a failed session.
		if relErr := s.repo.ReleaseSlotsTx(ctx, in.slotIDs); relErr != nil {
			s.log.Error().Err(relErr).Strs("slot_ids", in.slotIDs).Msg("failed to release slots after gateway failure")
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrUpstreamGateway, err)
	}

	// The expiry sweep matches pending slots by session ref; an unstamped
	// hold would never be released, so a stamp failure must not keep it.
	if err := s.repo.SetSlotsSession(ctx, in.slotIDs, session.ID); err != nil {
		s.log.Error().Err(err).Str("session_ref", session.ID).Msg("failed to stamp session ref on slots")
		if relErr := s.repo.ReleaseSlotsTx(ctx, in.slotIDs); relErr != nil {
			s.log.Error().Err(relErr).Strs("slot_ids", in.slotIDs).Msg("failed to release slots after stamp failure")
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrUpstreamGateway, err)
	}

	payment := &model.Payment{
		ID:          uuid.New().String(),
		EventID:     in.eventID,
		UserID:      in.userID,
		SessionRef:  session.ID,
		AmountCents: total,
		Status:      model.PaymentStatusPending,
		Source:      model.PaymentSourceStripe,
		SlotIDs:     in.slotIDs,
	}
	if in.product != nil {
		payment.IsPack = in.product.IsPack
		payment.PackName = in.product.Name
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		s.log.Error().Err(err).Str("session_ref", session.ID).Msg("failed to record pending payment")
	}

	s.publishHoldExpiry(event, in, session.ID)

	if err := s.mail.Send(in.userEmail, mailer.KindCheckoutStarted, event.Name, int(s.checkout.HoldTimeout.Minutes())); err != nil {
		s.log.Warn().Err(err).Msg("failed to send checkout email")
	}

	s.log.Info().
		Str("session_ref", session.ID).
		Str("user_id", in.userID).
		Strs("slot_ids", in.slotIDs).
		Msg("checkout session created")

	return &dto.CheckoutResponse{SessionID: session.ID, URL: session.URL}, nil
}

func (s *service) buildLineItems(ctx context.Context, in checkoutInput) ([]payments.LineItem, int64, error) {
	if in.product != nil {
		return []payments.LineItem{{
			Name:        in.product.Name,
			AmountCents: in.product.PriceCents,
			Quantity:    1,
		}}, in.product.PriceCents, nil
	}

	categories := map[string]*model.Category{}
	var items []payments.LineItem
	var total int64
	for _, slotID := range in.slotIDs {
		slot, err := s.repo.GetSlotByID(ctx, slotID)
		if err != nil {
			return nil, 0, err
		}
		if slot.EventID != in.eventID {
			return nil, 0, fmt.Errorf("slot %s belongs to another event: %w", slotID, apperr.ErrValidation)
		}
		cat, ok := categories[slot.CategoryID]
		if !ok {
			cat, err = s.repo.GetCategoryByID(ctx, slot.CategoryID)
			if err != nil {
				return nil, 0, err
			}
			categories[slot.CategoryID] = cat
		}
		items = append(items, payments.LineItem{
			Name:        fmt.Sprintf("%s %s %s", cat.Name, slot.Date, slot.StartTime.Format("15:04")),
			AmountCents: cat.PriceCents,
			Quantity:    1,
		})
		total += cat.PriceCents
	}
	return items, total, nil
}

func (s *service) publishHoldExpiry(event *model.Event, in checkoutInput, sessionRef string) {
	msg := dto.HoldExpiryMessage{
		SessionRef: sessionRef,
		EventID:    event.ID,
		UserID:     in.userID,
		UserEmail:  in.userEmail,
		SlotIDs:    in.slotIDs,
		ExpireAt:   time.Now().Add(s.checkout.HoldTimeout),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal hold expiry message")
		return
	}
	if err := s.rbt.PublishDelayed(payload, s.checkout.HoldTimeout); err != nil {
		s.log.Error().Err(err).Str("session_ref", sessionRef).Msg("failed to publish hold expiry message")
	}
}

func (s *service) CheckoutVoucher(ctx *ginext.Context) {
	var req dto.VoucherCheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	payment, err := s.redeemVoucher(ctx.Request.Context(), req)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", req.UserID).Msg("voucher checkout failed")
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessCreatedResponse(ctx, payment)
}

func (s *service) redeemVoucher(ctx context.Context, req dto.VoucherCheckoutRequest) (*model.Payment, error) {
	event, err := s.repo.GetEventByID(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if !model.EventAllowsAssignment(event.Status) {
		return nil, apperr.ErrEventLocked
	}

	voucher, err := s.repo.GetVoucherByCode(ctx, req.EventID, req.Code)
	if err != nil {
		return nil, err
	}
	product, err := s.repo.GetProductByID(ctx, voucher.ProductID)
	if err != nil {
		return nil, err
	}
	if len(req.SlotIDs) != product.SlotsRequired {
		return nil, apperr.ErrProductMismatch
	}

	if err := s.repo.EnsureUser(ctx, &model.User{
		ID:       req.UserID,
		FullName: req.UserName,
		Email:    req.UserEmail,
		Role:     "competitor",
	}); err != nil {
		return nil, err
	}

	payment := &model.Payment{
		ID:       uuid.New().String(),
		EventID:  req.EventID,
		UserID:   req.UserID,
		Status:   model.PaymentStatusPaid,
		Source:   model.PaymentSourceManual,
		SlotIDs:  req.SlotIDs,
		IsPack:   product.IsPack,
		PackName: product.Name,
		Metadata: fmt.Sprintf(`{"voucher_code":%q}`, req.Code),
	}
	if err := s.repo.RedeemVoucherTx(ctx, voucher.ID, payment); err != nil {
		return nil, err
	}

	if err := s.mail.Send(req.UserEmail, mailer.KindPaid, event.Name, 0); err != nil {
		s.log.Warn().Err(err).Msg("failed to send voucher email")
	}

	s.log.Info().
		Str("voucher_id", voucher.ID).
		Str("user_id", req.UserID).
		Strs("slot_ids", req.SlotIDs).
		Msg("voucher redeemed")

	return payment, nil
}
