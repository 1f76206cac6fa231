package service

import (
	"context"
	"fmt"
	"time"

	"scooter-shop/internal/broker"
	"scooter-shop/internal/models"
	"scooter-shop/internal/store"
	"scooter-shop/internal/util"

	"go.uber.org/zap"
)

// defaultPublishTimeout bounds how long an order request waits on the broker
const defaultPublishTimeout = 2 * time.Second

// OrderService handles order business logic
type OrderService struct {
	orders         store.OrderStore
	eventPublisher broker.Publisher
	publishTimeout time.Duration
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(orders store.OrderStore, eventPublisher broker.Publisher) *OrderService {
	return &OrderService{
		orders:         orders,
		eventPublisher: eventPublisher,
		publishTimeout: defaultPublishTimeout,
		logger:         util.ComponentLogger("orders"),
	}
}

// CreateOrder persists an order with its items. Line totals and the declared
// total are kept as sent; a mismatch between them is only logged.
func (s *OrderService) CreateOrder(ctx context.Context, order *models.Order) error {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	order.ID = 0
	order.CreatedAt = time.Time{}
	if order.Items == nil {
		order.Items = []models.OrderItem{}
	}
	for i := range order.Items {
		order.Items[i].ID = 0
		order.Items[i].OrderID = 0
	}

	if sum := order.LineItemsTotal(); sum != order.TotalPrice {
		util.OrderTotalMismatchTotal.Inc()
		s.logger.Warn("Order total differs from line items",
			zap.Int64("declared_total", order.TotalPrice),
			zap.Int64("line_items_total", sum))
	}

	start := time.Now()
	err := s.orders.CreateOrder(ctx, order)
	util.OrderCreateLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return fmt.Errorf("failed to create order: %w", err)
	}

	span.SetAttributes(util.OrderIDKey.Int64(order.ID), util.OrderItemsKey.Int(len(order.Items)))
	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int("items", len(order.Items)),
		zap.Int64("total_price", order.TotalPrice))

	s.publishOrderPlaced(ctx, order)
	return nil
}

// publishOrderPlaced announces a stored order. The order is already
// persisted, so a slow or failing broker is logged and never fails the request.
func (s *OrderService) publishOrderPlaced(ctx context.Context, order *models.Order) {
	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	if err := s.eventPublisher.PublishOrderPlaced(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues("publish_error").Inc()
		s.logger.Error("Failed to publish OrderPlaced event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

// ListOrders returns all orders, newest first
func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	return s.orders.ListOrders(ctx)
}
