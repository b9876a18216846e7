package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"pizzacup/internal/dto"
	"pizzacup/internal/mailer"
	"pizzacup/internal/model"
	"pizzacup/internal/payments"
)

// PaymentWebhook consumes gateway deliveries. They arrive at-least-once and
// possibly out of order; everything downstream is idempotent keyed by the
// session/charge reference, so redeliveries are acknowledged without
// double-applying.
func (s *service) PaymentWebhook(ctx *ginext.Context) {
	payload, err := ctx.GetRawData()
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Unreadable payload")
		return
	}

	signature := ctx.GetHeader("Stripe-Signature")
	if signature == "" {
		signature = ctx.GetHeader("X-Signature")
	}

	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		s.log.Warn().Err(err).Msg("webhook rejected")
		dto.FromError(ctx, err)
		return
	}

	switch event.Type {
	case payments.EventPaymentCompleted:
		if err := s.applyCompletedPayment(ctx.Request.Context(), event); err != nil {
			s.log.Error().Err(err).Str("session_ref", event.SessionRef).Msg("failed to apply completed payment")
			dto.InternalServerError(ctx)
			return
		}
	case payments.EventChargeRefunded:
		if err := s.applyRefund(ctx.Request.Context(), event); err != nil {
			s.log.Error().Err(err).Str("charge_ref", event.ChargeRef).Msg("failed to apply refund")
			dto.InternalServerError(ctx)
			return
		}
	default:
		s.log.Debug().Str("type", event.Type).Msg("ignoring webhook event")
	}

	dto.SuccessResponse(ctx, nil)
}

func (s *service) applyCompletedPayment(ctx context.Context, event *payments.WebhookEvent) error {
	if event.Meta.UserID == "" || len(event.Meta.SlotIDs) == 0 {
		s.log.Warn().Str("session_ref", event.SessionRef).Msg("completed payment without usable metadata")
		return nil
	}

	payment := &model.Payment{
		ID:          uuid.New().String(),
		EventID:     event.Meta.EventID,
		UserID:      event.Meta.UserID,
		SessionRef:  event.SessionRef,
		ChargeRef:   event.ChargeRef,
		AmountCents: event.AmountCents,
		Status:      model.PaymentStatusPaid,
		Source:      model.PaymentSourceStripe,
		SlotIDs:     event.Meta.SlotIDs,
		IsPack:      event.Meta.PackName != "",
		PackName:    event.Meta.PackName,
	}

	applied, err := s.repo.FinalizePaymentTx(ctx, payment)
	if err != nil {
		return err
	}
	if !applied {
		s.log.Info().Str("session_ref", event.SessionRef).Msg("payment already finalized, skipping redelivery")
		return nil
	}

	s.log.Info().
		Str("payment_id", payment.ID).
		Str("session_ref", event.SessionRef).
		Str("user_id", payment.UserID).
		Strs("slot_ids", payment.SlotIDs).
		Msg("payment finalized")

	if user, err := s.repo.GetUserByID(ctx, payment.UserID); err == nil {
		if ev, err := s.repo.GetEventByID(ctx, payment.EventID); err == nil {
			if err := s.mail.Send(user.Email, mailer.KindPaid, ev.Name, 0); err != nil {
				s.log.Warn().Err(err).Msg("failed to send payment email")
			}
		}
	}
	return nil
}

func (s *service) applyRefund(ctx context.Context, event *payments.WebhookEvent) error {
	ref := event.ChargeRef
	if ref == "" {
		ref = event.SessionRef
	}

	payment, err := s.repo.RefundPaymentTx(ctx, ref)
	if err != nil {
		// A refund for a payment never recorded here: acknowledge so the
		// gateway stops redelivering, but leave a loud trace.
		s.log.Error().Err(err).Str("ref", ref).Msg("refund for unknown payment")
		return nil
	}

	s.log.Info().
		Str("payment_id", payment.ID).
		Strs("slot_ids", payment.SlotIDs).
		Msg("payment refunded, slots released")

	if user, err := s.repo.GetUserByID(ctx, payment.UserID); err == nil {
		if ev, err := s.repo.GetEventByID(ctx, payment.EventID); err == nil {
			if err := s.mail.Send(user.Email, mailer.KindRefunded, ev.Name, 0); err != nil {
				s.log.Warn().Err(err).Msg("failed to send refund email")
			}
		}
	}
	return nil
}
