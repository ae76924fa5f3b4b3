package flow

import (
	"math"

	"github.com/example/khanpan/pkg/models"
)

// TaxRate is the GST added on top of the item subtotal.
const TaxRate = 0.05

type Quotation struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// Quote prices items: subtotal, 5% tax and total, each rounded to cents.
func Quote(items []models.OrderItem) Quotation {
	subtotal := roundCents(models.Subtotal(items))
	tax := roundCents(subtotal * TaxRate)
	return Quotation{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    roundCents(subtotal + tax),
	}
}

// SelectFromMenu turns per-index quantities chosen from a menu listing into
// order items, in menu order. Unknown indexes and non-positive quantities are
// ignored.
func SelectFromMenu(menu []models.MenuItem, quantities map[int]int) []models.OrderItem {
	var items []models.OrderItem
	for _, dish := range menu {
		qty := quantities[dish.Index]
		if qty <= 0 {
			continue
		}
		items = append(items, models.OrderItem{Name: dish.Name, Price: dish.Price, Quantity: qty})
	}
	return items
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
