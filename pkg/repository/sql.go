package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/khanpan/pkg/config"
	"github.com/example/khanpan/pkg/ledger"
	"github.com/example/khanpan/pkg/models"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// orderRow is the SQL shape of an order; items are kept as a JSON column.
// Seq is assigned by the database on insert and orders writes that share a
// created_at.
type orderRow struct {
	Seq       int64     `gorm:"primaryKey;autoIncrement"`
	ID        string    `gorm:"type:varchar(36);not null;uniqueIndex"`
	UserID    string    `gorm:"type:varchar(64);not null;index:idx_orders_user_created,priority:1"`
	Items     string    `gorm:"type:text"`
	Total     float64   `gorm:"type:decimal(10,2)"`
	Status    string    `gorm:"type:varchar(20);default:'In progress'"`
	CreatedAt time.Time `gorm:"precision:6;index:idx_orders_user_created,priority:2"`
}

func (orderRow) TableName() string {
	return "orders"
}

func (r *orderRow) toModel() (*models.Order, error) {
	var items []models.OrderItem
	if err := json.Unmarshal([]byte(r.Items), &items); err != nil {
		return nil, fmt.Errorf("failed to parse items for order %s: %w", r.ID, err)
	}
	return &models.Order{
		ID:        r.ID,
		UserID:    r.UserID,
		Items:     items,
		Total:     r.Total,
		CreatedAt: r.CreatedAt.UTC(),
		Status:    models.OrderStatus(r.Status),
	}, nil
}

// SQLOrderStore implements ledger.Store on MySQL through gorm. Any gorm
// dialector works; tests run it on SQLite.
type SQLOrderStore struct {
	db *gorm.DB
}

var _ ledger.Store = (*SQLOrderStore)(nil)

func NewSQLOrderStore(cfg *config.MySQLConfig) (*SQLOrderStore, error) {
	// Connect to MySQL
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return NewSQLOrderStoreFromDB(db)
}

// NewSQLOrderStoreFromDB migrates the orders table on an open connection.
func NewSQLOrderStoreFromDB(db *gorm.DB) (*SQLOrderStore, error) {
	// Auto migrate
	if err := db.AutoMigrate(&orderRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &SQLOrderStore{db: db}, nil
}

func (s *SQLOrderStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLOrderStore) Insert(ctx context.Context, order *models.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to serialize items: %w", err)
	}

	row := &orderRow{
		ID:        uuid.NewString(),
		UserID:    order.UserID,
		Items:     string(itemsJSON),
		Total:     order.Total,
		Status:    string(order.Status),
		CreatedAt: order.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	order.ID = row.ID
	return nil
}

func (s *SQLOrderStore) Get(ctx context.Context, orderID string) (*models.Order, error) {
	var row orderRow
	if err := s.db.WithContext(ctx).Where("id = ?", orderID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrOrderNotFound
		}
		return nil, err
	}
	return row.toModel()
}

func (s *SQLOrderStore) FindByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	var rows []orderRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("seq DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	orders := make([]*models.Order, 0, len(rows))
	for i := range rows {
		o, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (s *SQLOrderStore) FindLatestSince(ctx context.Context, userID string, since time.Time) (*models.Order, error) {
	var row orderRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at DESC").Order("seq DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row.toModel()
}

func (s *SQLOrderStore) Replace(ctx context.Context, orderID string, items []models.OrderItem, total float64) (*models.Order, error) {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize items: %w", err)
	}
	res := s.db.WithContext(ctx).Model(&orderRow{}).
		Where("id = ? AND status = ?", orderID, string(models.StatusInProgress)).
		Updates(map[string]interface{}{"items": string(itemsJSON), "total": total})
	if res.Error != nil {
		return nil, res.Error
	}

	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 && order.Status != models.StatusInProgress {
		return nil, ledger.ErrOrderDelivered
	}
	return order, nil
}

func (s *SQLOrderStore) SetStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	return s.update(ctx, orderID, map[string]interface{}{"status": string(status)})
}

func (s *SQLOrderStore) Delete(ctx context.Context, orderID string) error {
	return s.db.WithContext(ctx).Delete(&orderRow{}, "id = ?", orderID).Error
}

func (s *SQLOrderStore) update(ctx context.Context, orderID string, updates map[string]interface{}) (*models.Order, error) {
	res := s.db.WithContext(ctx).Model(&orderRow{}).Where("id = ?", orderID).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	// RowsAffected is 0 both for a missing row and for an unchanged one, so
	// read back to tell them apart.
	return s.Get(ctx, orderID)
}
