package models

import (
	"math"
	"strings"
	"time"
)

// Product represents a catalog item
type Product struct {
	ID          int64  `db:"id" json:"id" bson:"_id"`
	Name        string `db:"name" json:"name" bson:"name"`
	Code        string `db:"code" json:"code" bson:"code"`
	Description string `db:"description" json:"description" bson:"description"`
	Category    string `db:"category" json:"category" bson:"category"`
	Price       int64  `db:"price" json:"price" bson:"price"`
	Status      string `db:"status" json:"status" bson:"status"`
	Quantity    int64  `db:"quantity" json:"quantity" bson:"quantity"`
	Image       string `db:"image" json:"image" bson:"image"`
}

// ProductFilter narrows a product listing. Empty fields match everything.
type ProductFilter struct {
	Search   string
	Category string
}

// Matches reports whether p passes the filter: Search is a case-insensitive
// substring of name or code, Category a case-insensitive exact match.
func (f ProductFilter) Matches(p Product) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Code), needle) {
			return false
		}
	}
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	return true
}

// Order represents a customer order with its line items
type Order struct {
	ID           int64       `db:"id" json:"id" bson:"_id"`
	CustomerName string      `db:"customer_name" json:"name" bson:"customer_name"`
	Phone        string      `db:"phone" json:"phone" bson:"phone"`
	City         string      `db:"city" json:"city" bson:"city"`
	Comment      string      `db:"comment" json:"comment" bson:"comment"`
	TotalPrice   int64       `db:"total_price" json:"totalPrice" bson:"total_price"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt" bson:"created_at"`
	Items        []OrderItem `db:"-" json:"items" bson:"items"`
}

// OrderItem is a snapshot of a product at the time the order was placed.
// ProductID is not checked against the catalog.
type OrderItem struct {
	ID        int64  `db:"id" json:"id" bson:"id"`
	OrderID   int64  `db:"order_id" json:"orderId" bson:"order_id"`
	ProductID int64  `db:"product_id" json:"productId" bson:"product_id"`
	Name      string `db:"name" json:"name" bson:"name"`
	Code      string `db:"code" json:"code" bson:"code"`
	Price     int64  `db:"price" json:"price" bson:"price"`
	Qty       int64  `db:"qty" json:"qty" bson:"qty"`
	LineTotal int64  `db:"line_total" json:"lineTotal" bson:"line_total"`
}

// LineItemsTotal sums the line totals of the order's items, saturating at
// math.MaxInt64
func (o *Order) LineItemsTotal() int64 {
	var total int64
	for _, item := range o.Items {
		if item.LineTotal > math.MaxInt64-total {
			return math.MaxInt64
		}
		total += item.LineTotal
	}
	return total
}

// Product statuses
const (
	ProductStatusInStock    = "in_stock"
	ProductStatusExpected   = "expected"
	ProductStatusOutOfStock = "out_of_stock"
)

// NormalizeStatus maps s onto a known status, defaulting to in_stock
func NormalizeStatus(s string) string {
	switch status := strings.ToLower(strings.TrimSpace(s)); status {
	case ProductStatusInStock, ProductStatusExpected, ProductStatusOutOfStock:
		return status
	default:
		return ProductStatusInStock
	}
}
