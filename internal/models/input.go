package models

import (
	"math"
	"strconv"
	"strings"
)

// Amount is a non-negative integer that accepts both JSON numbers and
// numeric strings. Anything unparseable decodes to zero.
type Amount int64

// ParseAmount converts s to an Amount, returning 0 for garbage and clamping
// negatives to 0.
func ParseAmount(s string) Amount {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return clampAmount(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
		switch {
		case f <= 0:
			return 0
		case f >= math.MaxInt64:
			return Amount(math.MaxInt64)
		}
		return Amount(int64(f))
	}
	return 0
}

func clampAmount(n int64) Amount {
	if n < 0 {
		return 0
	}
	return Amount(n)
}

// LineTotal returns price*qty, saturating at math.MaxInt64. Non-positive
// inputs give 0.
func LineTotal(price, qty int64) int64 {
	if price <= 0 || qty <= 0 {
		return 0
	}
	if price > math.MaxInt64/qty {
		return math.MaxInt64
	}
	return price * qty
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	*a = ParseAmount(s)
	return nil
}

// ProductInput carries the fields a client sent for create or update.
// A nil field was omitted from the payload.
type ProductInput struct {
	Name         *string `json:"name"`
	Code         *string `json:"code"`
	Description  *string `json:"description"`
	Category     *string `json:"category"`
	Price        *Amount `json:"price"`
	Status       *string `json:"status"`
	Quantity     *Amount `json:"quantity"`
	Image        *string `json:"image"`
	CurrentImage *string `json:"currentImage"`
}

// ApplyTo copies every supplied field except the image references onto p.
// Omitted fields keep their current value.
func (in *ProductInput) ApplyTo(p *Product) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Code != nil {
		p.Code = strings.TrimSpace(*in.Code)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Category != nil {
		p.Category = strings.TrimSpace(*in.Category)
	}
	if in.Price != nil {
		p.Price = int64(*in.Price)
	}
	if in.Status != nil {
		p.Status = NormalizeStatus(*in.Status)
	}
	if in.Quantity != nil {
		p.Quantity = int64(*in.Quantity)
	}
	if p.Status == "" {
		p.Status = ProductStatusInStock
	}
}

// StringPtr is a small helper for building inputs
func StringPtr(s string) *string {
	return &s
}

// AmountPtr is a small helper for building inputs
func AmountPtr(n int64) *Amount {
	a := Amount(n)
	return &a
}
