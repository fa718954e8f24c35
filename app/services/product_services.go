package services

import (
	"context"
	"fmt"
	"time"

	"github.com/onyxia-store/onyxia/app/models"
	"github.com/onyxia-store/onyxia/app/repositories"
	"github.com/onyxia-store/onyxia/pkg/cache"
	"github.com/onyxia-store/onyxia/pkg/logger"
	"github.com/onyxia-store/onyxia/pkg/metrics"
)

const (
	productCacheTTL = 5 * time.Minute

	keyAllProducts  = "products:all"
	keyHomeProducts = "products:home"
)

func productKey(id uint) string { return fmt.Sprintf("products:%d", id) }

// ProductInput is the create and update body.
type ProductInput struct {
	Name         string  `json:"name"          validate:"required,max=255"`
	Description  string  `json:"description"   validate:"max=5000"`
	Price        float64 `json:"price"         validate:"gt=0"`
	Image        string  `json:"image"         validate:"max=512"`
	DisplayHome  bool    `json:"display_home"`
	HomePosition int     `json:"home_position" validate:"gte=0"`
}

func (in ProductInput) apply(p *models.Product) {
	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price
	p.Image = in.Image
	p.DisplayHome = in.DisplayHome
	p.HomePosition = in.HomePosition
}

// ProductService serves the catalogue through a read-through cache that is
// dropped on every write.
type ProductService struct {
	repo  *repositories.ProductRepository
	cache cache.Store
}

func NewProductService(repo *repositories.ProductRepository, store cache.Store) *ProductService {
	return &ProductService{repo: repo, cache: store}
}

func (s *ProductService) List(ctx context.Context) ([]models.Product, error) {
	products, hit, err := cache.Remember(ctx, s.cache, keyAllProducts, productCacheTTL, func() ([]models.Product, error) {
		return s.repo.All(ctx)
	})
	metrics.RecordCache(hit)
	return products, err
}

// Home returns at most models.HomeProductsLimit featured products.
func (s *ProductService) Home(ctx context.Context) ([]models.Product, error) {
	products, hit, err := cache.Remember(ctx, s.cache, keyHomeProducts, productCacheTTL, func() ([]models.Product, error) {
		return s.repo.Home(ctx, models.HomeProductsLimit)
	})
	metrics.RecordCache(hit)
	return products, err
}

func (s *ProductService) Find(ctx context.Context, id uint) (models.Product, error) {
	p, hit, err := cache.Remember(ctx, s.cache, productKey(id), productCacheTTL, func() (models.Product, error) {
		return s.repo.Find(ctx, id)
	})
	metrics.RecordCache(hit)
	return p, err
}

func (s *ProductService) Create(ctx context.Context, in ProductInput) (models.Product, error) {
	var p models.Product
	in.apply(&p)
	if err := s.repo.Create(ctx, &p); err != nil {
		return models.Product{}, err
	}
	s.invalidate(ctx, p.ID)
	logger.WithCtx(ctx).Info("product created", "product_id", p.ID)
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, id uint, in ProductInput) (models.Product, error) {
	p, err := s.repo.Find(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	in.apply(&p)
	if err := s.repo.Save(ctx, &p); err != nil {
		return models.Product{}, err
	}
	s.invalidate(ctx, id)
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	logger.WithCtx(ctx).Info("product deleted", "product_id", id)
	return nil
}

func (s *ProductService) invalidate(ctx context.Context, id uint) {
	if err := s.cache.Del(ctx, keyAllProducts, keyHomeProducts, productKey(id)); err != nil {
		logger.WithCtx(ctx).Warn("product cache invalidation failed", "error", err)
	}
}
