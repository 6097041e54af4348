package models

import "time"

// EventType names a change pushed to websocket subscribers
type EventType string

const (
	EventOrderCreated    EventType = "order.created"
	EventOrderConfirmed  EventType = "order.confirmed"
	EventPaymentRecorded EventType = "payment.recorded"
	EventCatalogChanged  EventType = "catalog.changed"
)

// Event is a notification broadcast by the backend
type Event struct {
	Type    EventType `json:"type"`
	OrderID uint      `json:"order_id,omitempty"`
	At      time.Time `json:"at"`
}
