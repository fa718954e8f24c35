package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/onyxia-store/onyxia/app/models"
	"github.com/onyxia-store/onyxia/app/repositories"
	"github.com/onyxia-store/onyxia/pkg/event"
	"github.com/onyxia-store/onyxia/pkg/logger"
	"github.com/onyxia-store/onyxia/pkg/metrics"
)

const (
	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
)

var (
	ErrEmptyOrder       = errors.New("services: no products in order")
	ErrInvalidOrderItem = errors.New("services: order items need a name and a positive price")
	ErrInvalidStatus    = errors.New("services: unknown order status")
	ErrUnknownProduct   = errors.New("services: product not in catalog")
)

type OrderItemInput struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Image       string  `json:"image"`
	Description string  `json:"description"`
}

// OrderInput is the checkout body. Client-sent totals and status are ignored.
type OrderInput struct {
	CustomerName    string           `json:"customerName"    validate:"required,max=120"`
	City            string           `json:"city"            validate:"required,max=120"`
	PhoneNumber     string           `json:"phoneNumber"     validate:"required,phone"`
	DeliveryAddress string           `json:"deliveryAddress" validate:"max=255"`
	DeliveryType    string           `json:"deliveryType"    validate:"nullable,in=home|office"`
	Items           []OrderItemInput `json:"items"           validate:"required"`
}

type StatusInput struct {
	Status string `json:"status" validate:"required"`
}

type OrderService struct {
	repo     *repositories.OrderRepository
	products *repositories.ProductRepository
	bus      *event.Bus
}

func NewOrderService(repo *repositories.OrderRepository, products *repositories.ProductRepository, bus *event.Bus) *OrderService {
	return &OrderService{repo: repo, products: products, bus: bus}
}

// Build turns the checkout body into an order with server-side totals.
// Quantities below 1 count as 1.
func Build(in OrderInput) (models.Order, error) {
	if len(in.Items) == 0 {
		return models.Order{}, ErrEmptyOrder
	}
	o := models.Order{
		CustomerName:    strings.TrimSpace(in.CustomerName),
		City:            strings.TrimSpace(in.City),
		PhoneNumber:     strings.TrimSpace(in.PhoneNumber),
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
		DeliveryType:    in.DeliveryType,
		Status:          models.StatusPending,
	}
	if o.DeliveryType == "" {
		o.DeliveryType = models.DeliveryHome
	}

	for _, it := range in.Items {
		if strings.TrimSpace(it.Name) == "" || it.Price <= 0 {
			return models.Order{}, ErrInvalidOrderItem
		}
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		item := models.OrderItem{
			ProductID:   it.ID,
			Name:        it.Name,
			Price:       it.Price,
			Quantity:    qty,
			Image:       it.Image,
			Description: it.Description,
		}
		o.Items = append(o.Items, item)
		o.Subtotal += item.LineTotal()
	}
	o.DeliveryFee = models.DeliveryFee(o.DeliveryType)
	o.Total = o.Subtotal + o.DeliveryFee
	return o, nil
}

// priceFromCatalog replaces the name, price and image of every item with the
// catalog row it refers to. The client's description is kept. Items that do not name a stored product fail with
// ErrUnknownProduct.
func (s *OrderService) priceFromCatalog(ctx context.Context, items []OrderItemInput) ([]OrderItemInput, error) {
	out := make([]OrderItemInput, len(items))
	for i, it := range items {
		id, err := strconv.ParseUint(strings.TrimSpace(it.ID), 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProduct, it.ID)
		}
		p, err := s.products.Find(ctx, uint(id))
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProduct, it.ID)
		}
		if err != nil {
			return nil, err
		}
		it.ID = strconv.FormatUint(uint64(p.ID), 10)
		it.Name = p.Name
		it.Price = p.Price
		it.Image = p.Image
		out[i] = it
	}
	return out, nil
}

func (s *OrderService) Create(ctx context.Context, in OrderInput) (models.Order, error) {
	if len(in.Items) == 0 {
		return models.Order{}, ErrEmptyOrder
	}
	items, err := s.priceFromCatalog(ctx, in.Items)
	if err != nil {
		return models.Order{}, err
	}
	in.Items = items

	o, err := Build(in)
	if err != nil {
		return models.Order{}, err
	}
	if err := s.repo.Create(ctx, &o); err != nil {
		return models.Order{}, err
	}

	metrics.OrdersCreated.WithLabelValues(o.DeliveryType).Inc()
	logger.WithCtx(ctx).Info("order created", "order_id", o.ID, "total", o.Total, "items", len(o.Items))
	s.bus.FireAsync(ctx, EventOrderCreated, o)
	return o, nil
}

func (s *OrderService) List(ctx context.Context) ([]models.Order, error) {
	return s.repo.All(ctx)
}

// UpdateStatus returns the updated order.
func (s *OrderService) UpdateStatus(ctx context.Context, id uint, status string) (models.Order, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !models.ValidStatus(status) {
		return models.Order{}, ErrInvalidStatus
	}
	o, err := s.repo.Find(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if o.Status == status {
		return o, nil
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return models.Order{}, err
	}
	o.Status = status

	logger.WithCtx(ctx).Info("order status changed", "order_id", id, "status", status)
	s.bus.FireAsync(ctx, EventOrderUpdated, o)
	return o, nil
}

func (s *OrderService) Delete(ctx context.Context, id uint) error {
	if _, err := s.repo.Find(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
