package models

import (
	"fmt"
	"strings"
	"time"
)

// PaymentMethod is how a customer settles an order. Bank transfer has its
// own value; it is no longer folded into "card".
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodMobile       PaymentMethod = "mobile"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// PaymentMethods lists the selectable methods in display order.
var PaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodMobile,
	PaymentMethodBankTransfer,
}

// Valid reports whether m is one of the known payment methods.
func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// Label returns a human readable name for the method.
func (m PaymentMethod) Label() string {
	switch m {
	case PaymentMethodCash:
		return "Cash"
	case PaymentMethodCard:
		return "Card"
	case PaymentMethodMobile:
		return "Mobile money"
	case PaymentMethodBankTransfer:
		return "Bank transfer"
	}
	return string(m)
}

// ParsePaymentMethod converts user or config input into a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown payment method %q", s)
	}
	return m, nil
}

// PaymentMode distinguishes settling the whole order from paying part of it.
type PaymentMode string

const (
	PaymentModeNone    PaymentMode = ""
	PaymentModeFull    PaymentMode = "FULL"
	PaymentModePartial PaymentMode = "PARTIAL"
)

// PaymentStatus is the payment_status value sent to the backend
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPartial PaymentStatus = "partial"
)

// PaymentStatus maps a mode onto its wire status.
func (m PaymentMode) PaymentStatus() PaymentStatus {
	if m == PaymentModePartial {
		return PaymentStatusPartial
	}
	return PaymentStatusPaid
}

// Payment is a payment recorded against an order
type Payment struct {
	ID            uint          `gorm:"primary_key" json:"payment_id"`
	OrderID       uint          `gorm:"index" json:"order_id"`
	Method        PaymentMethod `gorm:"column:payment_method" json:"payment_method"`
	AmountPaid    Amount        `gorm:"column:amount_paid" json:"amount_paid"`
	Status        PaymentStatus `gorm:"column:payment_status" json:"payment_status"`
	PartialReason string        `json:"partial_reason,omitempty"`
	Reference     string        `gorm:"unique_index" json:"reference"`
	CreatedAt     time.Time     `json:"created_at"`
}

// PaymentRequest is the body of POST /payments/add and POST /orders/approve
type PaymentRequest struct {
	OrderID       uint          `json:"order_id"`
	Method        PaymentMethod `json:"payment_method"`
	AmountPaid    Amount        `json:"amount_paid"`
	Status        PaymentStatus `json:"payment_status"`
	PartialReason string        `json:"partial_reason"`
}

// Approval is returned by POST /orders/approve
type Approval struct {
	Order   Order   `json:"order"`
	Payment Payment `json:"payment"`
}
