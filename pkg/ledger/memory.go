package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/khanpan/pkg/models"
	"github.com/google/uuid"
)

// MemoryStore keeps orders in process. It backs tests and the "memory"
// store setting.
type MemoryStore struct {
	mu     sync.RWMutex
	seq    uint64
	orders map[string]*memoryRow
}

type memoryRow struct {
	seq   uint64
	order models.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*memoryRow)}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Insert(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	m.seq++
	m.orders[order.ID] = &memoryRow{seq: m.seq, order: copyOrder(order)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, orderID string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	o := copyOrder(&row.order)
	return &o, nil
}

func (m *MemoryStore) FindByUser(_ context.Context, userID string) ([]*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.userRows(userID, time.Time{})
	orders := make([]*models.Order, len(rows))
	for i, row := range rows {
		o := copyOrder(&row.order)
		orders[i] = &o
	}
	return orders, nil
}

func (m *MemoryStore) FindLatestSince(_ context.Context, userID string, since time.Time) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.userRows(userID, since)
	if len(rows) == 0 {
		return nil, nil
	}
	o := copyOrder(&rows[0].order)
	return &o, nil
}

func (m *MemoryStore) Replace(_ context.Context, orderID string, items []models.OrderItem, total float64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if row.order.Status == models.StatusDelivered {
		return nil, ErrOrderDelivered
	}
	row.order.Items = append([]models.OrderItem(nil), items...)
	row.order.Total = total
	o := copyOrder(&row.order)
	return &o, nil
}

func (m *MemoryStore) SetStatus(_ context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	row.order.Status = status
	o := copyOrder(&row.order)
	return &o, nil
}

func (m *MemoryStore) Delete(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.orders, orderID)
	return nil
}

// userRows returns the user's rows created at or after since, newest first.
func (m *MemoryStore) userRows(userID string, since time.Time) []*memoryRow {
	var rows []*memoryRow
	for _, row := range m.orders {
		if row.order.UserID != userID || row.order.CreatedAt.Before(since) {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.order.CreatedAt.Equal(b.order.CreatedAt) {
			return a.order.CreatedAt.After(b.order.CreatedAt)
		}
		return a.seq > b.seq
	})
	return rows
}

func copyOrder(o *models.Order) models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	return c
}
