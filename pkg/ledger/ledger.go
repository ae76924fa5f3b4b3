// Package ledger holds the order rules: validation of new orders, the
// time-boxed "current order" derivation and the InProgress to Delivered
// transition. Persistence is delegated to a Store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/khanpan/pkg/models"
)

// CurrentWindow is how far back an order still counts as the user's current one.
const CurrentWindow = 3 * time.Hour

var (
	ErrInvalidOrder   = errors.New("invalid order")
	ErrInvalidOrderID = errors.New("invalid order id")
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderDelivered = errors.New("order already delivered")
)

// Ledger is the order API used by the HTTP gateway and the order flow. It is
// implemented in process by Service and remotely by the gRPC client.
type Ledger interface {
	Create(ctx context.Context, userID string, items []models.OrderItem, total float64) (*models.Order, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Order, error)
	Current(ctx context.Context, userID string) (*models.Order, error)
	Get(ctx context.Context, orderID string) (*models.Order, error)
	Update(ctx context.Context, orderID string, items []models.OrderItem, total float64) (*models.Order, error)
	Delete(ctx context.Context, orderID string) error
	MarkDelivered(ctx context.Context, orderID string) (*models.Order, error)
}

// Store persists orders. Each method is a single atomic write or read.
//
// Ordering methods sort by CreatedAt descending; equal timestamps are broken
// by write order, newest first. Get, Replace and SetStatus return
// ErrOrderNotFound for unknown ids, Delete does not. Replace only writes an
// order that is still in progress, as one conditional write, and returns
// ErrOrderDelivered otherwise.
type Store interface {
	Insert(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, orderID string) (*models.Order, error)
	FindByUser(ctx context.Context, userID string) ([]*models.Order, error)
	FindLatestSince(ctx context.Context, userID string, since time.Time) (*models.Order, error)
	Replace(ctx context.Context, orderID string, items []models.OrderItem, total float64) (*models.Order, error)
	SetStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error)
	Delete(ctx context.Context, orderID string) error
}

// Recorder is told about every successful state change.
type Recorder interface {
	Record(ctx context.Context, action string, order *models.Order)
}

// Recorders fans a change out to each recorder in turn.
type Recorders []Recorder

func (rs Recorders) Record(ctx context.Context, action string, order *models.Order) {
	for _, r := range rs {
		r.Record(ctx, action, order)
	}
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

type Service struct {
	store    Store
	now      func() time.Time
	recorder Recorder
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Ledger = (*Service)(nil)

// Create always inserts a new order. It does not look for an existing
// in-progress order; that rule belongs to the caller.
func (s *Service) Create(ctx context.Context, userID string, items []models.OrderItem, total float64) (*models.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidOrder)
	}
	items, err := NormalizeItems(items)
	if err != nil {
		return nil, err
	}
	if err := validTotal(total); err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:    userID,
		Items:     items,
		Total:     total,
		CreatedAt: s.now().UTC(),
		Status:    models.StatusInProgress,
	}
	if err := s.store.Insert(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	s.record(ctx, "create_order", order)
	return order, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]*models.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidOrder)
	}
	orders, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	return orders, nil
}

// Current returns the newest order created within CurrentWindow, whatever
// its status, or nil when there is none.
func (s *Service) Current(ctx context.Context, userID string) (*models.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidOrder)
	}
	since := s.now().Add(-CurrentWindow).UTC()
	order, err := s.store.FindLatestSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to find current order: %w", err)
	}
	return order, nil
}

// Get returns one order by id, or ErrOrderNotFound.
func (s *Service) Get(ctx context.Context, orderID string) (*models.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, ErrInvalidOrderID
	}
	return s.store.Get(ctx, orderID)
}

// Update replaces the items and total of an existing order in place.
// Delivered orders cannot be changed.
func (s *Service) Update(ctx context.Context, orderID string, items []models.OrderItem, total float64) (*models.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, ErrInvalidOrderID
	}
	items, err := NormalizeItems(items)
	if err != nil {
		return nil, err
	}
	if err := validTotal(total); err != nil {
		return nil, err
	}

	order, err := s.store.Replace(ctx, orderID, items, total)
	if err != nil {
		return nil, err
	}

	s.record(ctx, "update_order", order)
	return order, nil
}

// Delete removes the order permanently. Unknown ids are not an error.
func (s *Service) Delete(ctx context.Context, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return ErrInvalidOrderID
	}
	if err := s.store.Delete(ctx, orderID); err != nil {
		return err
	}
	s.record(ctx, "delete_order", &models.Order{ID: orderID})
	return nil
}

// MarkDelivered moves the order to its terminal state. Calling it again on a
// delivered order succeeds without changes.
func (s *Service) MarkDelivered(ctx context.Context, orderID string) (*models.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, ErrInvalidOrderID
	}
	order, err := s.store.SetStatus(ctx, orderID, models.StatusDelivered)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "deliver_order", order)
	return order, nil
}

func (s *Service) record(ctx context.Context, action string, order *models.Order) {
	if s.recorder != nil {
		s.recorder.Record(ctx, action, order)
	}
}

// NormalizeItems validates items and returns a copy with a missing quantity
// defaulted to 1.
func NormalizeItems(items []models.OrderItem) ([]models.OrderItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidOrder)
	}
	out := make([]models.OrderItem, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return nil, fmt.Errorf("%w: item %d has no name", ErrInvalidOrder, i)
		}
		if item.Price < 0 {
			return nil, fmt.Errorf("%w: item %q has negative price", ErrInvalidOrder, item.Name)
		}
		if item.Quantity == 0 {
			item.Quantity = 1
		}
		if item.Quantity < 0 {
			return nil, fmt.Errorf("%w: item %q has negative quantity", ErrInvalidOrder, item.Name)
		}
		out[i] = item
	}
	return out, nil
}

func validTotal(total float64) error {
	if total < 0 {
		return fmt.Errorf("%w: negative total", ErrInvalidOrder)
	}
	return nil
}
