package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/example/khanpan/pkg/flow"
	"github.com/example/khanpan/pkg/ledger"
	"github.com/example/khanpan/pkg/models"
	"github.com/gin-gonic/gin"
)

// The /api/me endpoints act on the caller's own orders only; the user comes
// from the bearer token, never from the request.

type sessionOrderRequest struct {
	Items      []models.OrderItem `json:"items"`
	Selections map[int]int        `json:"selections,omitempty"` // menu index to quantity, used when Items is empty
}

var errNoMenu = errors.New("menu selections are not available")

// selectedItems prices selections against the live menu so clients never
// supply their own prices.
func (g *Gateway) selectedItems(c *gin.Context, selections map[int]int) ([]models.OrderItem, error) {
	if g.menu == nil {
		return nil, errNoMenu
	}
	menu, err := g.menu.Menu(c.Request.Context())
	if err != nil {
		return nil, err
	}
	return flow.SelectFromMenu(menu, selections), nil
}

func (g *Gateway) session(c *gin.Context) *flow.Session {
	return flow.NewSession(g.ledger, currentUser(c).ID)
}

// @Summary  State of the caller's current order
// @Tags     session
// @Produce  json
// @Security BearerAuth
// @Router   /api/me/order [get]
func (g *Gateway) sessionState(c *gin.Context) {
	state, order, err := g.session(c).State(c.Request.Context())
	if err != nil {
		g.serverError(c, "Error fetching current order", err)
		return
	}
	resp := gin.H{"state": state, "order": order}
	if order != nil {
		resp["quote"] = flow.Quote(order.Items)
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary  Place an order for the caller
// @Tags     session
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    body body sessionOrderRequest true "items, or menu selections"
// @Success  201 {object} map[string]interface{}
// @Failure  409 {object} map[string]interface{}
// @Router   /api/me/order [post]
func (g *Gateway) sessionPlace(c *gin.Context) {
	var req sessionOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing required order fields.")
		return
	}

	items := req.Items
	if len(items) == 0 && len(req.Selections) > 0 {
		selected, err := g.selectedItems(c, req.Selections)
		if err != nil {
			g.sessionError(c, "Error reading menu", err)
			return
		}
		items = selected
	}

	order, err := g.session(c).Place(c.Request.Context(), items)
	if err != nil {
		g.sessionError(c, "Error placing order", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Order placed successfully", "order": order})
}

// @Summary  Replace the items of the caller's order in progress
// @Tags     session
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    body body sessionOrderRequest true "items"
// @Router   /api/me/order [put]
func (g *Gateway) sessionModify(c *gin.Context) {
	var req sessionOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing required order fields.")
		return
	}

	order, err := g.session(c).Modify(c.Request.Context(), req.Items)
	if err != nil {
		g.sessionError(c, "Error updating order", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order updated", "order": order})
}

// @Summary  Cancel the caller's order in progress
// @Tags     session
// @Produce  json
// @Security BearerAuth
// @Param    confirm query bool true "must be true"
// @Router   /api/me/order [delete]
func (g *Gateway) sessionCancel(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))

	if err := g.session(c).Cancel(c.Request.Context(), confirmed); err != nil {
		g.sessionError(c, "Error cancelling order", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order cancelled"})
}

// @Summary  The caller's order history
// @Tags     session
// @Produce  json
// @Security BearerAuth
// @Param    period query string false "all, today, 7days or month"
// @Param    search query string false "item name contains"
// @Router   /api/me/orders [get]
func (g *Gateway) sessionHistory(c *gin.Context) {
	orders, err := g.session(c).History(c.Request.Context(), flow.HistoryFilter{
		Period: flow.ParsePeriod(c.Query("period")),
		Search: c.Query("search"),
		Now:    time.Now(),
	})
	if err != nil {
		g.serverError(c, "Error fetching orders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (g *Gateway) sessionError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, flow.ErrOrderInProgress), errors.Is(err, flow.ErrNoActiveOrder):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
	case errors.Is(err, flow.ErrEmptyOrder),
		errors.Is(err, flow.ErrNotConfirmed),
		errors.Is(err, errNoMenu),
		errors.Is(err, ledger.ErrInvalidOrder):
		badRequest(c, err.Error())
	default:
		g.serverError(c, message, err)
	}
}
