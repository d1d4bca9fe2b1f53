package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a line item embedded in an invoice. ID is only unique within
// its parent invoice.
type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Color    string          `json:"color"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	Meter    decimal.Decimal `json:"meter"` // length or weight depending on the product
	Total    decimal.Decimal `json:"total"`
}

// Recalculate sets Total to price × meter.
func (p *Product) Recalculate() {
	p.Total = p.Price.Mul(p.Meter)
}

// ProductInput is the editable part of a line item.
type ProductInput struct {
	Name     string          `json:"name" validate:"required"`
	Color    string          `json:"color" validate:"required"`
	Price    decimal.Decimal `json:"price" validate:"gt=0"`
	Quantity int64           `json:"quantity" validate:"gte=0"`
	Meter    decimal.Decimal `json:"meter" validate:"gte=0"`
}

// ToProduct builds a line item with the given id and a fresh total.
func (in ProductInput) ToProduct(id int64) Product {
	p := Product{
		ID:       id,
		Name:     in.Name,
		Color:    in.Color,
		Price:    in.Price,
		Quantity: in.Quantity,
		Meter:    in.Meter,
	}
	p.Recalculate()
	return p
}

// NextProductID derives a creation-time token that is not yet used by any
// product in the list.
func NextProductID(products []Product, now time.Time) int64 {
	id := now.UnixMilli()
	for {
		taken := false
		for _, p := range products {
			if p.ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
		id++
	}
}
