package grpc

import "github.com/example/khanpan/pkg/models"

const serviceName = "khanpan.OrderLedger"

const (
	methodCreate        = "Create"
	methodListForUser   = "ListForUser"
	methodCurrent       = "Current"
	methodGet           = "Get"
	methodUpdate        = "Update"
	methodDelete        = "Delete"
	methodMarkDelivered = "MarkDelivered"
)

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

type CreateRequest struct {
	UserID string             `json:"userId"`
	Items  []models.OrderItem `json:"items"`
	Total  float64            `json:"total"`
}

type UserRequest struct {
	UserID string `json:"userId"`
}

type OrderRequest struct {
	OrderID string `json:"orderId"`
}

type UpdateRequest struct {
	OrderID string             `json:"orderId"`
	Items   []models.OrderItem `json:"items"`
	Total   float64            `json:"total"`
}

// OrderReply carries a nil Order when the user has no current order.
type OrderReply struct {
	Order *models.Order `json:"order"`
}

type OrdersReply struct {
	Orders []*models.Order `json:"orders"`
}

type Empty struct{}
