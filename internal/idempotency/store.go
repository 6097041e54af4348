// Package idempotency remembers which payment a client-supplied
// Idempotency-Key produced, so a replayed request returns the original
// payment instead of recording a second one.
package idempotency

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for unknown or expired keys
var ErrNotFound = errors.New("idempotency key not found")

// Header is the request header carrying the key
const Header = "Idempotency-Key"

// Scopes separate keys used on different endpoints
const (
	ScopePayment  = "payments.add"
	ScopeApproval = "orders.approve"
)

// Record is the outcome stored for a key
type Record struct {
	Key       string    `gorm:"column:idempotency_key;primary_key" json:"key"`
	Scope     string    `json:"scope"`
	OrderID   uint      `json:"order_id"`
	PaymentID uint      `json:"payment_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

// TableName keeps the gorm table name explicit
func (Record) TableName() string {
	return "idempotency_keys"
}

// Pending reports whether the key is claimed but its request has not
// produced a payment yet.
func (r *Record) Pending() bool {
	return r.PaymentID == 0
}

// Matches reports whether a replayed request targets the same endpoint and order.
func (r *Record) Matches(scope string, orderID uint) bool {
	return r.Scope == scope && r.OrderID == orderID
}

// Store persists idempotency records.
//
// A request first claims its key. Claim returns nil when the caller now holds
// the key, or the record already stored under it. The holder then either Puts
// the finished record or Releases the key so a retry can claim it again.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Claim(ctx context.Context, rec Record) (*Record, error)
	Put(ctx context.Context, rec Record) error
	Release(ctx context.Context, key string) error
}
