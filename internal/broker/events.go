package broker

import (
	"context"
	"fmt"
	"time"

	"scooter-shop/internal/models"

	"github.com/google/uuid"
)

// Publisher announces domain events to the outside world
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, order *models.Order) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderPlaced publishes an ORDER_PLACED event keyed by order id
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, order *models.Order) error {
	key := fmt.Sprintf("order-%d", order.ID)
	return ep.producer.PublishEvent(ctx, key, NewOrderPlacedEvent(order))
}

// NewOrderPlacedEvent builds the event payload for a persisted order
func NewOrderPlacedEvent(order *models.Order) *models.OrderPlacedEvent {
	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Code:      item.Code,
			Quantity:  item.Qty,
			UnitPrice: item.Price,
		})
	}

	return &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.NewString(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now().UTC(),
		},
		OrderID:      order.ID,
		CustomerName: order.CustomerName,
		Phone:        order.Phone,
		City:         order.City,
		TotalPrice:   order.TotalPrice,
		Items:        items,
	}
}

// NoopPublisher drops every event; used when no brokers are configured
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderPlaced(ctx context.Context, order *models.Order) error {
	return nil
}
