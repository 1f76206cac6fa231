package store

import (
	"context"
	"fmt"

	"scooter-shop/internal/models"
)

// CreateOrder inserts the order row and its items in one transaction
func (s *SQLStore) CreateOrder(ctx context.Context, order *models.Order) error {
	stampOrder(order)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr("begin order transaction", err)
	}
	defer tx.Rollback()

	orderQuery := `
		INSERT INTO orders (customer_name, phone, city, comment, total_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`

	var orderID int64
	err = tx.QueryRowxContext(ctx, tx.Rebind(orderQuery),
		order.CustomerName, order.Phone, order.City, order.Comment,
		order.TotalPrice, order.CreatedAt).Scan(&orderID)
	if err != nil {
		return storageErr("create order", err)
	}

	itemQuery := tx.Rebind(`
		INSERT INTO order_items (order_id, product_id, name, code, price, qty, line_total)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	itemIDs := make([]int64, len(order.Items))
	for i, item := range order.Items {
		err := tx.QueryRowxContext(ctx, itemQuery,
			orderID, item.ProductID, item.Name, item.Code,
			item.Price, item.Qty, item.LineTotal).Scan(&itemIDs[i])
		if err != nil {
			return storageErr(fmt.Sprintf("create order item %d", i), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit order", err)
	}

	order.ID = orderID
	for i := range order.Items {
		order.Items[i].ID = itemIDs[i]
		order.Items[i].OrderID = orderID
	}
	if order.Items == nil {
		order.Items = []models.OrderItem{}
	}
	return nil
}

// ListOrders retrieves all orders with their items, newest first
func (s *SQLStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, `
		SELECT id, customer_name, phone, city, comment, total_price, created_at
		FROM orders
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, storageErr("list orders", err)
	}

	var items []models.OrderItem
	err = s.db.SelectContext(ctx, &items, `
		SELECT id, order_id, product_id, name, code, price, qty, line_total
		FROM order_items
		ORDER BY order_id, id`)
	if err != nil {
		return nil, storageErr("list order items", err)
	}

	byOrder := make(map[int64][]models.OrderItem, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
	}
	return orders, nil
}
