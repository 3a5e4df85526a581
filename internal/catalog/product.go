// Package catalog is the sample domain behind the pantry CLI: products kept
// in a pantry, handled entirely through profiles and the crud pipelines.
package catalog

import (
	"fmt"
	"time"
)

// SetName is the entity set products are stored in.
const SetName = "products"

// Product is a stored pantry item. Price is in cents.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Price     int       `json:"price"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductKey returns the set key of p.
func ProductKey(p *Product) string { return p.ID }

// Touch stamps p as changed at t.
func (p *Product) Touch(t time.Time) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t
	}
	p.UpdatedAt = t
}

// ProductView is what catalog requests return.
type ProductView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

// View renders p for output.
func View(p *Product) ProductView {
	return ProductView{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Price:    FormatCents(p.Price),
		Quantity: p.Quantity,
	}
}

// FormatCents renders cents as a decimal amount.
func FormatCents(cents int) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ProductRecord is the line format of product JSONL files.
type ProductRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
}
