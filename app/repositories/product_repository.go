package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/onyxia-store/onyxia/app/models"
	"github.com/onyxia-store/onyxia/pkg/orm"
)

// ErrNotFound is returned when a lookup, update or delete matches no row.
var ErrNotFound = orm.ErrNotFound

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// All returns the catalogue, newest first.
func (r *ProductRepository) All(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := orm.On(ctx, r.db).Model(&models.Product{}).Order("id desc").Get(&products)
	return products, err
}

// Home returns featured products ordered by home_position.
func (r *ProductRepository) Home(ctx context.Context, limit int) ([]models.Product, error) {
	products := []models.Product{}
	err := orm.On(ctx, r.db).
		Model(&models.Product{}).
		Where("display_home = ?", true).
		Order("home_position asc").
		Order("id asc").
		Limit(limit).
		Get(&products)
	return products, err
}

func (r *ProductRepository) Find(ctx context.Context, id uint) (models.Product, error) {
	var p models.Product
	err := orm.On(ctx, r.db).Where("id = ?", id).First(&p)
	return p, err
}

func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	return orm.On(ctx, r.db).Create(p)
}

func (r *ProductRepository) Save(ctx context.Context, p *models.Product) error {
	return orm.On(ctx, r.db).Save(p)
}

func (r *ProductRepository) Delete(ctx context.Context, id uint) error {
	return orm.On(ctx, r.db).Delete(&models.Product{}, id)
}
