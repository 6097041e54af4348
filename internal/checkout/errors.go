package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrAmountReadOnly      = errors.New("amount is fixed to the order total for full payments")
	ErrModeRequired        = errors.New("select a payment mode first")
	ErrReasonNotApplicable = errors.New("a reason is only recorded for partial payments")
	ErrApprovalInFlight    = errors.New("an approval for this order is already in progress")
	ErrNothingToResume     = errors.New("no unconfirmed payment for this order")
)

// ValidationError reports a guard that keeps the form from being approved.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Stage identifies which backend call of an approval failed
type Stage string

const (
	StagePayment Stage = "payment"
	StageConfirm Stage = "confirm"
	StageApprove Stage = "approve"
)

// ApprovalError is returned when the backend rejects or cannot be reached
// during approval. PaymentRecorded is true when the payment went through but
// the order is still pending; Approver.Resume finishes such an approval.
type ApprovalError struct {
	OrderID         uint
	Stage           Stage
	PaymentRecorded bool
	Err             error
}

func (e *ApprovalError) Error() string {
	if e.PaymentRecorded {
		return fmt.Sprintf("order %d: payment recorded but order not confirmed: %v", e.OrderID, e.Err)
	}
	return fmt.Sprintf("order %d: %s failed: %v", e.OrderID, e.Stage, e.Err)
}

func (e *ApprovalError) Unwrap() error {
	return e.Err
}
