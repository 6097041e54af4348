package models

import "time"

// OrderStatus represents the possible states of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCancelled:
		return true
	}
	return false
}

// Order is a submitted table order. The backend owns the authoritative copy;
// the client only projects it and drives it to "confirmed".
type Order struct {
	ID        uint        `gorm:"primary_key" json:"order_id"`
	Code      string      `gorm:"column:order_code;unique_index" json:"order_code"`
	TableID   uint        `gorm:"index" json:"table_id"`
	UserID    uint        `json:"user_id"`
	Category  string      `json:"category,omitempty"`
	Items     []OrderItem `gorm:"foreignkey:OrderID" json:"items"`
	Status    OrderStatus `gorm:"index" json:"status"`
	Total     Amount      `json:"total"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// OrderItem represents an item in an order
type OrderItem struct {
	ID       uint   `gorm:"primary_key" json:"-"`
	OrderID  uint   `gorm:"index" json:"-"`
	ItemID   uint   `json:"item_id,omitempty"`
	Name     string `json:"name"`
	Quantity int    `json:"qty"`
	Price    Amount `json:"price"`
}

// ComputeTotal sums price times quantity over the order's items. It fails
// with ErrAmountOverflow instead of wrapping.
func (o *Order) ComputeTotal() (Amount, error) {
	var total Amount
	for _, item := range o.Items {
		line, err := item.Price.MulQuantity(item.Quantity)
		if err != nil {
			return 0, err
		}
		if total, err = total.Plus(line); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// NewOrderRequest is the body of POST /orders/add
type NewOrderRequest struct {
	TableID  uint        `json:"table_id"`
	UserID   uint        `json:"user_id"`
	Category string      `json:"category"`
	Items    []OrderItem `json:"items"`
}

// StatusUpdate is the body of PUT /orders/update-status
type StatusUpdate struct {
	OrderID uint        `json:"order_id"`
	Status  OrderStatus `json:"order_status"`
}
