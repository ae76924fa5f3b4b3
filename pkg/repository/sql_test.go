package repository

import (
	"context"
	"testing"
	"time"

	"github.com/example/khanpan/pkg/ledger"
	"github.com/example/khanpan/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newSQLiteStore(t *testing.T) *SQLOrderStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store, err := NewSQLOrderStoreFromDB(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var noon = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func insert(t *testing.T, s *SQLOrderStore, user string, created time.Time, total float64) *models.Order {
	t.Helper()
	o := &models.Order{
		UserID:    user,
		Items:     []models.OrderItem{{Name: "Dal Tadka", Price: 10, Quantity: 2}},
		Total:     total,
		CreatedAt: created,
		Status:    models.StatusInProgress,
	}
	require.NoError(t, s.Insert(context.Background(), o))
	require.NotEmpty(t, o.ID)
	return o
}

func TestSQLOrderStore_InsertGet(t *testing.T) {
	s := newSQLiteStore(t)
	o := insert(t, s, "u1", noon, 21)

	got, err := s.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, o.Items, got.Items)
	assert.Equal(t, 21.0, got.Total)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.True(t, noon.Equal(got.CreatedAt))

	_, err = s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ledger.ErrOrderNotFound)
}

func TestSQLOrderStore_Ordering(t *testing.T) {
	s := newSQLiteStore(t)
	older := insert(t, s, "u1", noon.Add(-time.Hour), 1)
	first := insert(t, s, "u1", noon, 2)
	second := insert(t, s, "u1", noon, 3)
	insert(t, s, "u2", noon.Add(time.Minute), 4)

	orders, err := s.FindByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, []string{second.ID, first.ID, older.ID}, []string{orders[0].ID, orders[1].ID, orders[2].ID})

	latest, err := s.FindLatestSince(context.Background(), "u1", noon.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	none, err := s.FindLatestSince(context.Background(), "u1", noon.Add(time.Second))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSQLOrderStore_Writes(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	o := insert(t, s, "u1", noon, 21)

	replaced, err := s.Replace(ctx, o.ID, []models.OrderItem{{Name: "Jeera Rice", Price: 6, Quantity: 1}}, 6.3)
	require.NoError(t, err)
	assert.Equal(t, "Jeera Rice", replaced.Items[0].Name)
	assert.Equal(t, 6.3, replaced.Total)

	delivered, err := s.SetStatus(ctx, o.ID, models.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, delivered.Status)

	again, err := s.SetStatus(ctx, o.ID, models.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, again.Status)

	_, err = s.Replace(ctx, o.ID, []models.OrderItem{{Name: "Naan", Price: 3, Quantity: 4}}, 12.6)
	assert.ErrorIs(t, err, ledger.ErrOrderDelivered)
	kept, err := s.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jeera Rice", kept.Items[0].Name)

	_, err = s.Replace(ctx, "missing", replaced.Items, 6.3)
	assert.ErrorIs(t, err, ledger.ErrOrderNotFound)

	_, err = s.SetStatus(ctx, "missing", models.StatusDelivered)
	assert.ErrorIs(t, err, ledger.ErrOrderNotFound)

	require.NoError(t, s.Delete(ctx, o.ID))
	require.NoError(t, s.Delete(ctx, o.ID))
	_, err = s.Get(ctx, o.ID)
	assert.ErrorIs(t, err, ledger.ErrOrderNotFound)
}

func TestSQLOrderStore_CurrentWindowThroughLedger(t *testing.T) {
	now := noon
	svc := ledger.NewService(newSQLiteStore(t), ledger.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", []models.OrderItem{{Name: "Dal Tadka", Price: 10, Quantity: 2}}, 21)
	require.NoError(t, err)

	now = noon.Add(2*time.Hour + 59*time.Minute)
	current, err := svc.Current(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, created.ID, current.ID)

	now = noon.Add(3*time.Hour + time.Minute)
	current, err = svc.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestSQLOrderStore_SeqFollowsInsertOrder(t *testing.T) {
	s := newSQLiteStore(t)
	ids := make([]string, 5)
	for i := range ids {
		ids[i] = insert(t, s, "u1", noon, float64(i)).ID
	}

	var rows []orderRow
	require.NoError(t, s.db.Order("seq ASC").Find(&rows).Error)
	require.Len(t, rows, len(ids))
	for i, row := range rows {
		assert.Equal(t, ids[i], row.ID)
		if i > 0 {
			assert.Greater(t, row.Seq, rows[i-1].Seq)
		}
	}

	latest, err := s.FindLatestSince(context.Background(), "u1", noon)
	require.NoError(t, err)
	assert.Equal(t, ids[len(ids)-1], latest.ID)
}
