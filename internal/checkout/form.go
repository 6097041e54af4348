// Package checkout validates payments for pending orders and drives their
// approval against the backend.
package checkout

import (
	"fmt"
	"strings"

	"tableside/internal/models"

	"github.com/google/uuid"
)

// State is the progress of a payment form towards approval
type State string

const (
	StateNoMode         State = "NO_MODE"
	StateModeSelected   State = "MODE_SELECTED"
	StateMethodSelected State = "METHOD_SELECTED"
	StateAmountValid    State = "AMOUNT_VALID"
	StateApprovable     State = "APPROVABLE"
)

// PaymentForm holds the cashier's input for paying one order. Approval is
// enabled only when every guard holds at once; see Validate.
type PaymentForm struct {
	orderID        uint
	total          models.Amount
	mode           models.PaymentMode
	method         models.PaymentMethod
	amountPaid     models.Amount
	partialReason  string
	idempotencyKey string
}

// PaymentIntent is the validated content of a form, ready to submit
type PaymentIntent struct {
	OrderID        uint
	Mode           models.PaymentMode
	Method         models.PaymentMethod
	AmountPaid     models.Amount
	PartialReason  string
	IdempotencyKey string
}

// Request converts the intent into the backend payment body.
func (p PaymentIntent) Request() models.PaymentRequest {
	return models.PaymentRequest{
		OrderID:       p.OrderID,
		Method:        p.Method,
		AmountPaid:    p.AmountPaid,
		Status:        p.Mode.PaymentStatus(),
		PartialReason: p.PartialReason,
	}
}

// NewPaymentForm creates an empty form for an order with the given total.
func NewPaymentForm(orderID uint, total models.Amount) *PaymentForm {
	return &PaymentForm{
		orderID:        orderID,
		total:          total,
		idempotencyKey: uuid.NewString(),
	}
}

func (f *PaymentForm) OrderID() uint                { return f.orderID }
func (f *PaymentForm) Total() models.Amount         { return f.total }
func (f *PaymentForm) Mode() models.PaymentMode     { return f.mode }
func (f *PaymentForm) Method() models.PaymentMethod { return f.method }
func (f *PaymentForm) AmountPaid() models.Amount    { return f.amountPaid }
func (f *PaymentForm) PartialReason() string        { return f.partialReason }

// IdempotencyKey identifies this form's payment to the backend. It stays
// the same across resubmissions of the same form.
func (f *PaymentForm) IdempotencyKey() string { return f.idempotencyKey }

// RemainingBalance is what the customer still owes after this payment.
func (f *PaymentForm) RemainingBalance() models.Amount {
	if f.amountPaid >= f.total {
		return 0
	}
	return f.total - f.amountPaid
}

// SelectMode switches the payment mode. Any change clears the amount and
// reason entered for the previous mode; FULL then fixes the amount to the
// order total.
func (f *PaymentForm) SelectMode(mode models.PaymentMode) error {
	switch mode {
	case models.PaymentModeNone, models.PaymentModeFull, models.PaymentModePartial:
	default:
		return &ValidationError{Field: "payment_mode", Message: fmt.Sprintf("unknown payment mode %q", mode)}
	}
	if mode == f.mode {
		return nil
	}
	f.mode = mode
	f.amountPaid = 0
	f.partialReason = ""
	if mode == models.PaymentModeFull {
		f.amountPaid = f.total
	}
	return nil
}

// SelectMethod sets the payment method.
func (f *PaymentForm) SelectMethod(method models.PaymentMethod) error {
	if method != "" && !method.Valid() {
		return &ValidationError{Field: "payment_method", Message: fmt.Sprintf("unknown payment method %q", method)}
	}
	f.method = method
	return nil
}

// SetAmount records the amount paid. The amount is read-only in FULL mode.
func (f *PaymentForm) SetAmount(amount models.Amount) error {
	switch f.mode {
	case models.PaymentModeNone:
		return ErrModeRequired
	case models.PaymentModeFull:
		return ErrAmountReadOnly
	}
	if amount < 0 {
		return &ValidationError{Field: "amount_paid", Message: "amount cannot be negative"}
	}
	f.amountPaid = amount
	return nil
}

// SetPartialReason records why the customer is paying only part of the total.
func (f *PaymentForm) SetPartialReason(reason string) error {
	if f.mode != models.PaymentModePartial {
		return ErrReasonNotApplicable
	}
	f.partialReason = reason
	return nil
}

// State reports how far the form has progressed.
func (f *PaymentForm) State() State {
	switch {
	case f.checkMode() != nil:
		return StateNoMode
	case f.checkMethod() != nil:
		return StateModeSelected
	case f.checkAmount() != nil:
		return StateMethodSelected
	case f.checkReason() != nil:
		return StateAmountValid
	}
	return StateApprovable
}

// Validate returns the first guard that fails, or nil when the form can be
// approved.
func (f *PaymentForm) Validate() error {
	for _, check := range []func() error{f.checkMode, f.checkMethod, f.checkAmount, f.checkReason} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// CanApprove reports whether every guard holds.
func (f *PaymentForm) CanApprove() bool {
	return f.Validate() == nil
}

// Intent returns the validated payment, or the first failing guard.
func (f *PaymentForm) Intent() (PaymentIntent, error) {
	if err := f.Validate(); err != nil {
		return PaymentIntent{}, err
	}
	intent := PaymentIntent{
		OrderID:        f.orderID,
		Mode:           f.mode,
		Method:         f.method,
		AmountPaid:     f.amountPaid,
		IdempotencyKey: f.idempotencyKey,
	}
	if f.mode == models.PaymentModePartial {
		intent.PartialReason = strings.TrimSpace(f.partialReason)
	}
	return intent, nil
}

func (f *PaymentForm) checkMode() error {
	if f.mode != models.PaymentModeFull && f.mode != models.PaymentModePartial {
		return &ValidationError{Field: "payment_mode", Message: "select full or partial payment"}
	}
	return nil
}

func (f *PaymentForm) checkMethod() error {
	if !f.method.Valid() {
		return &ValidationError{Field: "payment_method", Message: "select a payment method"}
	}
	return nil
}

func (f *PaymentForm) checkAmount() error {
	switch f.mode {
	case models.PaymentModeFull:
		if f.amountPaid != f.total {
			return &ValidationError{
				Field:   "amount_paid",
				Message: fmt.Sprintf("full payment must equal the order total of %s", f.total),
			}
		}
	case models.PaymentModePartial:
		if f.amountPaid <= 0 || f.amountPaid >= f.total {
			return &ValidationError{
				Field:   "amount_paid",
				Message: fmt.Sprintf("partial payment must be more than 0 and less than %s", f.total),
			}
		}
	}
	return nil
}

func (f *PaymentForm) checkReason() error {
	if f.mode == models.PaymentModePartial && strings.TrimSpace(f.partialReason) == "" {
		return &ValidationError{Field: "partial_reason", Message: "a reason is required for partial payments"}
	}
	return nil
}
