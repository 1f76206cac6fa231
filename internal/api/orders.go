package api

import (
	"fmt"
	"net/http"
	"strings"

	"scooter-shop/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateOrderRequest is the checkout payload sent by the cart page
type CreateOrderRequest struct {
	Name         string             `json:"name"`
	CustomerName string             `json:"customerName"`
	Phone        string             `json:"phone"`
	City         string             `json:"city"`
	Comment      string             `json:"comment"`
	TotalPrice   models.Amount      `json:"totalPrice"`
	Items        []OrderItemRequest `json:"items"`
}

// OrderItemRequest is one cart line; prices are taken as sent. A nil
// LineTotal was omitted by the client and is filled in as price*qty.
type OrderItemRequest struct {
	ProductID models.Amount  `json:"productId"`
	Name      string         `json:"name"`
	Code      string         `json:"code"`
	Price     models.Amount  `json:"price"`
	Qty       models.Amount  `json:"qty"`
	LineTotal *models.Amount `json:"lineTotal"`
}

func (r *CreateOrderRequest) toOrder() *models.Order {
	name := r.Name
	if strings.TrimSpace(name) == "" {
		name = r.CustomerName
	}

	order := &models.Order{
		CustomerName: strings.TrimSpace(name),
		Phone:        strings.TrimSpace(r.Phone),
		City:         strings.TrimSpace(r.City),
		Comment:      r.Comment,
		TotalPrice:   int64(r.TotalPrice),
		Items:        make([]models.OrderItem, 0, len(r.Items)),
	}
	for _, item := range r.Items {
		lineTotal := models.LineTotal(int64(item.Price), int64(item.Qty))
		if item.LineTotal != nil {
			lineTotal = int64(*item.LineTotal)
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID: int64(item.ProductID),
			Name:      item.Name,
			Code:      item.Code,
			Price:     int64(item.Price),
			Qty:       int64(item.Qty),
			LineTotal: lineTotal,
		})
	}
	return order
}

// createOrder handles order creation from the public checkout
func (h *Handler) createOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}

	order := req.toOrder()
	if err := h.orders.CreateOrder(c.Request.Context(), order); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// listOrders returns every order with its items, newest first
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}
