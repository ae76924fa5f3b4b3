package models

import (
	"time"
)

// OrderStatus is the delivery state of an order. The string values are part
// of the wire format.
type OrderStatus string

const (
	StatusInProgress OrderStatus = "In progress"
	StatusDelivered  OrderStatus = "Delivered"
)

// Order is a user's placed order. Total is supplied by the caller when the
// order is saved and is not recomputed from Items.
type Order struct {
	ID        string      `json:"_id"`
	UserID    string      `json:"user"`
	Items     []OrderItem `json:"items"`
	Total     float64     `json:"total"`
	CreatedAt time.Time   `json:"createdAt"`
	Status    OrderStatus `json:"status"`
}

func (o *Order) InProgress() bool {
	return o != nil && o.Status == StatusInProgress
}

type OrderItem struct {
	Name     string  `json:"name" bson:"name"`
	Price    float64 `json:"price" bson:"price"`
	Quantity int     `json:"quantity" bson:"quantity"`
}

// Subtotal returns price times quantity summed over items.
func Subtotal(items []OrderItem) float64 {
	var sum float64
	for _, item := range items {
		sum += item.Price * float64(item.Quantity)
	}
	return sum
}
