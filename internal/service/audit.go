package service

import (
	"fmt"

	"github.com/wb-go/wbf/ginext"

	"pizzacup/internal/dto"
	"pizzacup/pkg/validator"
)

// Audit cross-references payments, registrations and slots for an event and
// reports every inconsistency the reconciler is meant to prevent. Full
// detail is admin-facing by design.
func (s *service) Audit(ctx *ginext.Context) {
	eventID := ctx.Param("id")

	if _, err := s.repo.GetEventByID(ctx.Request.Context(), eventID); err != nil {
		dto.FromError(ctx, err)
		return
	}

	report, err := s.repo.AuditEvent(ctx.Request.Context(), eventID)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", eventID).Msg("audit failed")
		dto.InternalServerError(ctx)
		return
	}

	if !report.Clean() {
		s.log.Warn().
			Str("event_id", eventID).
			Int("ghost_registrations", len(report.GhostRegistrations)).
			Int("unregistered_payments", len(report.UnregisteredPayments)).
			Msg("audit found inconsistencies")
	}
	dto.SuccessResponse(ctx, report)
}

// Reconcile is the manual escape hatch: replay a paid payment onto its
// user's registration.
func (s *service) Reconcile(ctx *ginext.Context) {
	var req dto.ReconcileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	if err := s.repo.ReconcileUserFromPaymentTx(ctx.Request.Context(), req.UserID, req.PaymentID); err != nil {
		s.log.Error().Err(err).Str("user_id", req.UserID).Str("payment_id", req.PaymentID).Msg("reconcile failed")
		dto.FromError(ctx, err)
		return
	}

	s.log.Info().Str("user_id", req.UserID).Str("payment_id", req.PaymentID).Msg("user reconciled from payment")
	dto.SuccessResponse(ctx, nil)
}
