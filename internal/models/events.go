package models

import "time"

// Event types
const (
	EventTypeOrderPlaced = "ORDER_PLACED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published after an order and its items are persisted
type OrderPlacedEvent struct {
	BaseEvent
	OrderID      int64           `json:"order_id"`
	CustomerName string          `json:"customer_name"`
	Phone        string          `json:"phone"`
	City         string          `json:"city"`
	TotalPrice   int64           `json:"total_price"`
	Items        []OrderItemData `json:"items"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64  `json:"product_id"`
	Code      string `json:"code"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}
