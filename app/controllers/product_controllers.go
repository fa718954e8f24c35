package controllers

import (
	"errors"
	"net/http"

	"github.com/onyxia-store/onyxia/app/repositories"
	"github.com/onyxia-store/onyxia/app/services"
	"github.com/onyxia-store/onyxia/pkg/ctx"
	"github.com/onyxia-store/onyxia/pkg/logger"
)

type ProductController struct {
	service *services.ProductService
}

func NewProductController(s *services.ProductService) *ProductController {
	return &ProductController{service: s}
}

func (pc *ProductController) Index(c *ctx.Context) {
	products, err := pc.service.List(c.Context())
	if err != nil {
		serverError(c, "listing products", err)
		return
	}
	c.OK(products)
}

func (pc *ProductController) Home(c *ctx.Context) {
	products, err := pc.service.Home(c.Context())
	if err != nil {
		serverError(c, "listing home products", err)
		return
	}
	c.OK(products)
}

func (pc *ProductController) Show(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		c.NotFound("Product not found")
		return
	}
	p, err := pc.service.Find(c.Context(), id)
	if errors.Is(err, repositories.ErrNotFound) {
		c.NotFound("Product not found")
		return
	}
	if err != nil {
		serverError(c, "loading product", err)
		return
	}
	c.OK(p)
}

func (pc *ProductController) Store(c *ctx.Context) {
	var in services.ProductInput
	if !c.BindJSON(&in) {
		return
	}
	p, err := pc.service.Create(c.Context(), in)
	if err != nil {
		serverError(c, "creating product", err)
		return
	}
	c.Created(p)
}

func (pc *ProductController) Update(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		c.NotFound("Product not found")
		return
	}
	var in services.ProductInput
	if !c.BindJSON(&in) {
		return
	}
	p, err := pc.service.Update(c.Context(), id, in)
	if errors.Is(err, repositories.ErrNotFound) {
		c.NotFound("Product not found")
		return
	}
	if err != nil {
		serverError(c, "updating product", err)
		return
	}
	c.OK(p)
}

func (pc *ProductController) Destroy(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		c.NotFound("Product not found")
		return
	}
	err := pc.service.Delete(c.Context(), id)
	if errors.Is(err, repositories.ErrNotFound) {
		c.NotFound("Product not found")
		return
	}
	if err != nil {
		serverError(c, "deleting product", err)
		return
	}
	c.NoContent()
}

// serverError logs err and answers a generic 500.
func serverError(c *ctx.Context, op string, err error) {
	logger.WithCtx(c.Context()).Error(op, "error", err)
	c.Error(http.StatusInternalServerError, "Something went wrong, please try again")
}
