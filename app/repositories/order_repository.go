package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/onyxia-store/onyxia/app/models"
	"github.com/onyxia-store/onyxia/pkg/orm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order and its items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	return orm.Transaction(ctx, r.db, func(tx *gorm.DB) error {
		return orm.On(ctx, tx).Create(o)
	})
}

// All returns every order with its items, newest first.
func (r *OrderRepository) All(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	err := orm.On(ctx, r.db).Model(&models.Order{}).Preload("Items").Order("id desc").Get(&orders)
	return orders, err
}

func (r *OrderRepository) Find(ctx context.Context, id uint) (models.Order, error) {
	var o models.Order
	err := orm.On(ctx, r.db).Preload("Items").Where("id = ?", id).First(&o)
	return o, err
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	return orm.On(ctx, r.db).Model(&models.Order{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status})
}

// Delete removes the order and its items. Items are deleted explicitly since
// sqlite does not enforce the cascade without PRAGMA foreign_keys.
func (r *OrderRepository) Delete(ctx context.Context, id uint) error {
	return orm.Transaction(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		return orm.On(ctx, tx).Delete(&models.Order{}, id)
	})
}
