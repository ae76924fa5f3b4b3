package gateway

import (
	"errors"
	"net/http"

	"github.com/example/khanpan/pkg/ledger"
	"github.com/example/khanpan/pkg/models"
	"github.com/gin-gonic/gin"
)

type createOrderRequest struct {
	UserID string             `json:"userId"`
	Items  []models.OrderItem `json:"items"`
	Total  *float64           `json:"total"`
}

// createOrder stores a new order as given. It does not check for an order
// already in progress; /api/me/order does.
//
// @Summary  Place an order
// @Tags     orders
// @Accept   json
// @Produce  json
// @Param    order body createOrderRequest true "order"
// @Success  201 {object} map[string]interface{}
// @Failure  400 {object} map[string]interface{}
// @Router   /api/order [post]
func (g *Gateway) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.Items == nil || req.Total == nil {
		badRequest(c, "Missing required order fields.")
		return
	}

	order, err := g.ledger.Create(c.Request.Context(), req.UserID, req.Items, *req.Total)
	if errors.Is(err, ledger.ErrInvalidOrder) {
		badRequest(c, err.Error())
		return
	}
	if err != nil {
		g.serverError(c, "Error placing order", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Order placed successfully", "order": order})
}

// @Summary  List a user's orders, newest first
// @Tags     orders
// @Produce  json
// @Param    userId path string true "user id"
// @Success  200 {object} map[string]interface{}
// @Router   /api/orders/{userId} [get]
func (g *Gateway) listOrders(c *gin.Context) {
	orders, err := g.ledger.ListForUser(c.Request.Context(), c.Param("userId"))
	if errors.Is(err, ledger.ErrInvalidOrder) {
		badRequest(c, "Missing userId")
		return
	}
	if err != nil {
		g.serverError(c, "Error fetching orders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// @Summary  Current order (created within the last 3 hours)
// @Tags     orders
// @Produce  json
// @Param    userId path string true "user id"
// @Success  200 {object} map[string]interface{}
// @Router   /api/orders/current/{userId} [get]
func (g *Gateway) currentOrder(c *gin.Context) {
	order, err := g.ledger.Current(c.Request.Context(), c.Param("userId"))
	if errors.Is(err, ledger.ErrInvalidOrder) {
		badRequest(c, "Missing userId")
		return
	}
	if err != nil {
		g.serverError(c, "Error fetching current order", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// @Summary  Delete an order permanently
// @Tags     orders
// @Produce  json
// @Param    orderId path string true "order id"
// @Success  200 {object} map[string]interface{}
// @Router   /api/order/{orderId} [delete]
func (g *Gateway) deleteOrder(c *gin.Context) {
	err := g.ledger.Delete(c.Request.Context(), c.Param("orderId"))
	if errors.Is(err, ledger.ErrInvalidOrderID) {
		badRequest(c, "Invalid orderId")
		return
	}
	if err != nil {
		g.serverError(c, "Error deleting order", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order deleted"})
}

// @Summary  Mark an order delivered
// @Tags     orders
// @Produce  json
// @Param    orderId path string true "order id"
// @Success  200 {object} map[string]interface{}
// @Failure  404 {object} map[string]interface{}
// @Router   /api/order/{orderId}/deliver [patch]
func (g *Gateway) markDelivered(c *gin.Context) {
	order, err := g.ledger.MarkDelivered(c.Request.Context(), c.Param("orderId"))
	switch {
	case errors.Is(err, ledger.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Order not found"})
	case errors.Is(err, ledger.ErrInvalidOrderID):
		badRequest(c, "Invalid orderId")
	case err != nil:
		g.serverError(c, "Error updating order status", err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Order marked as Delivered", "order": order})
	}
}
