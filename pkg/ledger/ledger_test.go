package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/example/khanpan/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedAction struct {
	action  string
	orderID string
}

type captureRecorder struct {
	actions []recordedAction
}

func (r *captureRecorder) Record(_ context.Context, action string, order *models.Order) {
	r.actions = append(r.actions, recordedAction{action: action, orderID: order.ID})
}

func newTestService() (*Service, *fakeClock) {
	clock := newFakeClock()
	return NewService(NewMemoryStore(), WithClock(clock.Now)), clock
}

var dalTadka = []models.OrderItem{{Name: "Dal Tadka", Price: 10, Quantity: 2}}

func TestService_Create(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		items   []models.OrderItem
		total   float64
		wantErr error
	}{
		{name: "valid order", userID: "u1", items: dalTadka, total: 21},
		{name: "zero total", userID: "u1", items: dalTadka, total: 0},
		{name: "missing user", userID: " ", items: dalTadka, total: 21, wantErr: ErrInvalidOrder},
		{name: "no items", userID: "u1", items: nil, total: 0, wantErr: ErrInvalidOrder},
		{name: "negative total", userID: "u1", items: dalTadka, total: -1, wantErr: ErrInvalidOrder},
		{name: "item without name", userID: "u1", items: []models.OrderItem{{Price: 3, Quantity: 1}}, total: 3, wantErr: ErrInvalidOrder},
		{name: "negative price", userID: "u1", items: []models.OrderItem{{Name: "Naan", Price: -3, Quantity: 1}}, total: 3, wantErr: ErrInvalidOrder},
		{name: "negative quantity", userID: "u1", items: []models.OrderItem{{Name: "Naan", Price: 3, Quantity: -2}}, total: 3, wantErr: ErrInvalidOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, clock := newTestService()

			order, err := svc.Create(context.Background(), tt.userID, tt.items, tt.total)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				orders, listErr := svc.store.FindByUser(context.Background(), tt.userID)
				require.NoError(t, listErr)
				assert.Empty(t, orders, "rejected order must not be stored")
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, order.ID)
			assert.Equal(t, models.StatusInProgress, order.Status)
			assert.True(t, order.CreatedAt.Equal(clock.Now()))
			assert.Equal(t, tt.total, order.Total)
		})
	}
}

func TestService_CreateDefaultsMissingQuantity(t *testing.T) {
	svc, _ := newTestService()

	order, err := svc.Create(context.Background(), "u1", []models.OrderItem{{Name: "Naan", Price: 2}}, 2.1)
	require.NoError(t, err)
	assert.Equal(t, 1, order.Items[0].Quantity)
}

func TestService_CurrentWithinWindow(t *testing.T) {
	svc, clock := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "U", dalTadka, 21)
	require.NoError(t, err)

	clock.Advance(2*time.Hour + 59*time.Minute)
	current, err := svc.Current(ctx, "U")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, created.ID, current.ID)
	assert.Equal(t, 21.0, current.Total)

	clock.Advance(2 * time.Minute)
	current, err = svc.Current(ctx, "U")
	require.NoError(t, err)
	assert.Nil(t, current, "order older than the window is no longer current")
}

func TestService_CurrentNoOrders(t *testing.T) {
	svc, _ := newTestService()

	current, err := svc.Current(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestService_CurrentIsPerUser(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", dalTadka, 21)
	require.NoError(t, err)

	current, err := svc.Current(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestService_DuplicateActiveOrders(t *testing.T) {
	svc, clock := newTestService()
	ctx := context.Background()

	first, err := svc.Create(ctx, "U", dalTadka, 21)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := svc.Create(ctx, "U", []models.OrderItem{{Name: "Butter Naan", Price: 3, Quantity: 1}}, 3.15)
	require.NoError(t, err)

	orders, err := svc.ListForUser(ctx, "U")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)

	current, err := svc.Current(ctx, "U")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, second.ID, current.ID)
}

func TestService_CurrentTieBrokenByLatestWrite(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "U", dalTadka, 21)
	require.NoError(t, err)
	second, err := svc.Create(ctx, "U", dalTadka, 21)
	require.NoError(t, err)

	current, err := svc.Current(ctx, "U")
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)
}

func TestService_DeliveredOrderStaysCurrent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "U", dalTadka, 21)
	require.NoError(t, err)
	_, err = svc.MarkDelivered(ctx, created.ID)
	require.NoError(t, err)

	current, err := svc.Current(ctx, "U")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, created.ID, current.ID)
	assert.Equal(t, models.StatusDelivered, current.Status)
}

func TestService_MarkDeliveredIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "U", dalTadka, 21)
	require.NoError(t, err)

	first, err := svc.MarkDelivered(ctx, created.ID)
	require.NoError(t, err)
	second, err := svc.MarkDelivered(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusDelivered, first.Status)
	assert.Equal(t, first, second)
}

func TestService_MarkDeliveredUnknown(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.MarkDelivered(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestService_DeleteUnknownSucceeds(t *testing.T) {
	svc, _ := newTestService()

	assert.NoError(t, svc.Delete(context.Background(), "missing"))
	assert.ErrorIs(t, svc.Delete(context.Background(), ""), ErrInvalidOrderID)
}

func TestService_DeleteRemovesOrder(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "U", dalTadka, 21)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID))

	current, err := svc.Current(ctx, "U")
	require.NoError(t, err)
	assert.Nil(t, current)

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestService_UpdateInPlace(t *testing.T) {
	svc, clock := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "U", dalTadka, 21)
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)

	items := []models.OrderItem{dalTadka[0], {Name: "Jeera Rice", Price: 6, Quantity: 1}}
	updated, err := svc.Update(ctx, created.ID, items, 27.3)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Len(t, updated.Items, 2)
	assert.Equal(t, 27.3, updated.Total)
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt), "update keeps the creation time")

	orders, err := svc.ListForUser(ctx, "U")
	require.NoError(t, err)
	assert.Len(t, orders, 1, "update must not create a second order")
}

func TestService_UpdateRejected(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "U", dalTadka, 21)
	require.NoError(t, err)

	_, err = svc.Update(ctx, "missing", dalTadka, 21)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.Update(ctx, created.ID, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = svc.MarkDelivered(ctx, created.ID)
	require.NoError(t, err)
	_, err = svc.Update(ctx, created.ID, dalTadka, 21)
	assert.ErrorIs(t, err, ErrOrderDelivered)
}

func TestService_ListForUserEmpty(t *testing.T) {
	svc, _ := newTestService()

	orders, err := svc.ListForUser(context.Background(), "U")
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestService_Recorder(t *testing.T) {
	rec := &captureRecorder{}
	svc := NewService(NewMemoryStore(), WithRecorder(rec))
	ctx := context.Background()

	created, err := svc.Create(ctx, "U", dalTadka, 21)
	require.NoError(t, err)
	_, err = svc.MarkDelivered(ctx, created.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID))

	assert.Equal(t, []recordedAction{
		{action: "create_order", orderID: created.ID},
		{action: "deliver_order", orderID: created.ID},
		{action: "delete_order", orderID: created.ID},
	}, rec.actions)
}

func TestRecorders_FanOut(t *testing.T) {
	a, b := &captureRecorder{}, &captureRecorder{}
	svc := NewService(NewMemoryStore(), WithRecorder(Recorders{a, b}))

	created, err := svc.Create(context.Background(), "U", dalTadka, 21)
	require.NoError(t, err)

	want := []recordedAction{{action: "create_order", orderID: created.ID}}
	assert.Equal(t, want, a.actions)
	assert.Equal(t, want, b.actions)
}

// deliverBeforeReplace marks the order delivered just before the replace
// reaches the store, the way a concurrent operator call would.
type deliverBeforeReplace struct {
	*MemoryStore
}

func (s deliverBeforeReplace) Replace(ctx context.Context, orderID string, items []models.OrderItem, total float64) (*models.Order, error) {
	if _, err := s.MemoryStore.SetStatus(ctx, orderID, models.StatusDelivered); err != nil {
		return nil, err
	}
	return s.MemoryStore.Replace(ctx, orderID, items, total)
}

func TestService_UpdateLosesRaceWithDelivery(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(deliverBeforeReplace{store})

	order, err := svc.Create(ctx, "u1", dalTadka, 21)
	require.NoError(t, err)

	_, err = svc.Update(ctx, order.ID, []models.OrderItem{{Name: "Dal Tadka", Price: 10, Quantity: 9}}, 94.5)
	assert.ErrorIs(t, err, ErrOrderDelivered)

	stored, err := store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, stored.Status)
	assert.Equal(t, dalTadka, stored.Items)
	assert.Equal(t, 21.0, stored.Total)
}

func TestMemoryStore_ReplaceRefusesDelivered(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	order := &models.Order{UserID: "u1", Items: dalTadka, Total: 21, Status: models.StatusDelivered}
	require.NoError(t, store.Insert(ctx, order))

	_, err := store.Replace(ctx, order.ID, dalTadka, 0)
	assert.ErrorIs(t, err, ErrOrderDelivered)

	_, err = store.Replace(ctx, "missing", dalTadka, 0)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
