// Package flow drives one user's order through its lifecycle on top of the
// ledger. The ledger accepts any create; the rule that a user has at most one
// in-progress order lives here.
//
//	NoActiveOrder --Place--> OrderPlaced --Modify--> OrderPlaced
//	                         OrderPlaced --Cancel--> NoActiveOrder
//	                         OrderPlaced --(operator marks delivered)--> Delivered
//
// Every action reads the current order from the ledger first; nothing is
// cached between calls.
package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/khanpan/pkg/ledger"
	"github.com/example/khanpan/pkg/models"
)

type State string

const (
	NoActiveOrder State = "no_active_order"
	OrderPlaced   State = "order_placed"
	Delivered     State = "delivered"
)

var (
	ErrOrderInProgress = errors.New("you already have an order in progress")
	ErrNoActiveOrder   = errors.New("no order in progress")
	ErrEmptyOrder      = errors.New("order has no items")
	ErrNotConfirmed    = errors.New("cancellation must be confirmed")
)

// Session is bound to a single user.
type Session struct {
	ledger ledger.Ledger
	userID string
}

func NewSession(l ledger.Ledger, userID string) *Session {
	return &Session{ledger: l, userID: userID}
}

// State derives the session state from the current order.
func (s *Session) State(ctx context.Context) (State, *models.Order, error) {
	order, err := s.ledger.Current(ctx, s.userID)
	if err != nil {
		return "", nil, err
	}
	return stateOf(order), order, nil
}

// Place creates a new order unless one is already in progress. A delivered
// current order does not block a new one. Items follow the ledger's rules: a
// missing quantity counts as 1 and a negative one is rejected.
func (s *Session) Place(ctx context.Context, items []models.OrderItem) (*models.Order, error) {
	state, _, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	if state == OrderPlaced {
		return nil, ErrOrderInProgress
	}

	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	items, err = ledger.NormalizeItems(items)
	if err != nil {
		return nil, err
	}
	quote := Quote(items)
	return s.ledger.Create(ctx, s.userID, items, quote.Total)
}

// Modify replaces the items of the in-progress order in place. A line whose
// quantity was set to zero is removed from the order; negative quantities are
// rejected by the ledger.
func (s *Session) Modify(ctx context.Context, items []models.OrderItem) (*models.Order, error) {
	order, err := s.active(ctx)
	if err != nil {
		return nil, err
	}

	items = dropEmpty(items)
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	quote := Quote(items)
	updated, err := s.ledger.Update(ctx, order.ID, items, quote.Total)
	if errors.Is(err, ledger.ErrOrderDelivered) {
		return nil, fmt.Errorf("%w: %v", ErrNoActiveOrder, err)
	}
	return updated, err
}

// Cancel deletes the in-progress order. It is irreversible and therefore
// requires confirmed to be true.
func (s *Session) Cancel(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	order, err := s.active(ctx)
	if err != nil {
		return err
	}
	return s.ledger.Delete(ctx, order.ID)
}

// History lists the user's orders filtered by period and item-name search.
func (s *Session) History(ctx context.Context, filter HistoryFilter) ([]*models.Order, error) {
	orders, err := s.ledger.ListForUser(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	return FilterHistory(orders, filter), nil
}

func (s *Session) active(ctx context.Context) (*models.Order, error) {
	state, order, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	if state != OrderPlaced {
		return nil, ErrNoActiveOrder
	}
	return order, nil
}

func stateOf(order *models.Order) State {
	switch {
	case order == nil:
		return NoActiveOrder
	case order.Status == models.StatusDelivered:
		return Delivered
	default:
		return OrderPlaced
	}
}

func dropEmpty(items []models.OrderItem) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		if item.Quantity != 0 {
			out = append(out, item)
		}
	}
	return out
}
