package controllers

import (
	"errors"
	"strings"

	"github.com/onyxia-store/onyxia/app/models"
	"github.com/onyxia-store/onyxia/app/repositories"
	"github.com/onyxia-store/onyxia/app/services"
	"github.com/onyxia-store/onyxia/pkg/ctx"
)

type OrderController struct {
	service *services.OrderService
}

func NewOrderController(s *services.OrderService) *OrderController {
	return &OrderController{service: s}
}

// Store is the public checkout endpoint.
func (oc *OrderController) Store(c *ctx.Context) {
	var in services.OrderInput
	if !c.BindJSON(&in) {
		return
	}
	o, err := oc.service.Create(c.Context(), in)
	switch {
	case errors.Is(err, services.ErrEmptyOrder):
		c.ValidationError(map[string]string{"items": "No products in cart"})
	case errors.Is(err, services.ErrUnknownProduct):
		c.ValidationError(map[string]string{"items": "Some products in your cart are no longer available."})
	case errors.Is(err, services.ErrInvalidOrderItem):
		c.ValidationError(map[string]string{"items": "Every item needs a name and a positive price."})
	case err != nil:
		serverError(c, "creating order", err)
	default:
		c.Created(o)
	}
}

func (oc *OrderController) Index(c *ctx.Context) {
	orders, err := oc.service.List(c.Context())
	if err != nil {
		serverError(c, "listing orders", err)
		return
	}
	c.OK(orders)
}

func (oc *OrderController) Update(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		c.NotFound("Order not found")
		return
	}
	var in services.StatusInput
	if !c.BindJSON(&in) {
		return
	}
	o, err := oc.service.UpdateStatus(c.Context(), id, in.Status)
	switch {
	case errors.Is(err, services.ErrInvalidStatus):
		c.ValidationError(map[string]string{
			"status": "The status must be one of " + strings.Join(models.OrderStatuses, ", ") + ".",
		})
	case errors.Is(err, repositories.ErrNotFound):
		c.NotFound("Order not found")
	case err != nil:
		serverError(c, "updating order", err)
	default:
		c.OK(o)
	}
}

func (oc *OrderController) Destroy(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		c.NotFound("Order not found")
		return
	}
	err := oc.service.Delete(c.Context(), id)
	if errors.Is(err, repositories.ErrNotFound) {
		c.NotFound("Order not found")
		return
	}
	if err != nil {
		serverError(c, "deleting order", err)
		return
	}
	c.NoContent()
}
