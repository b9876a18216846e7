package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrNotFound              = errors.New("not found")
	ErrSlotUnavailable       = errors.New("slot unavailable")
	ErrProductMismatch       = errors.New("product slot mismatch")
	ErrEventLocked           = errors.New("event locked")
	ErrProtectedState        = errors.New("slot in protected state")
	ErrUpstreamGateway       = errors.New("payment gateway failure")
	ErrSignatureVerification = errors.New("webhook signature verification failed")
	ErrVoucherUsed           = errors.New("voucher already used")
	ErrVoucherExpired        = errors.New("voucher expired")
	ErrCategoryInUse         = errors.New("category has slots")
)

// ProtectedSlotsError itemizes paid slots that blocked a bulk deletion so
// admins see exactly which slots refused, not a silent skip.
type ProtectedSlotsError struct {
	SlotIDs []string
}

func (e *ProtectedSlotsError) Error() string {
	return fmt.Sprintf("paid slots cannot be deleted: %s", strings.Join(e.SlotIDs, ", "))
}

func (e *ProtectedSlotsError) Unwrap() error {
	return ErrProtectedState
}
