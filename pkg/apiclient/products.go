package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"sort"

	"github.com/onyxia-store/onyxia/pkg/logger"
)

type Product struct {
	ID           ID      `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	Image        string  `json:"image"`
	DisplayHome  bool    `json:"display_home"`
	HomePosition int     `json:"home_position"`
}

// ProductInput is the body of create and update calls.
type ProductInput struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	Image        string  `json:"image"`
	DisplayHome  bool    `json:"display_home"`
	HomePosition int     `json:"home_position"`
}

func productPath(id ID) string { return "/products/" + url.PathEscape(string(id)) }

func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var out []Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProduct(ctx context.Context, id ID) (Product, error) {
	var out Product
	err := c.do(ctx, http.MethodGet, productPath(id), nil, &out)
	return out, err
}

func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	var out Product
	err := c.do(ctx, http.MethodPost, "/products", in, &out)
	return out, err
}

func (c *Client) UpdateProduct(ctx context.Context, id ID, in ProductInput) (Product, error) {
	var out Product
	err := c.do(ctx, http.MethodPut, productPath(id), in, &out)
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, id ID) error {
	return c.do(ctx, http.MethodDelete, productPath(id), nil, nil)
}

// GetHomeProducts asks /products/home first. On any failure it waits the
// fallback delay, then filters the full list by display_home and sorts it by
// home_position. If that fails too it returns an empty slice and no error.
func (c *Client) GetHomeProducts(ctx context.Context) ([]Product, error) {
	var featured []Product
	err := c.do(ctx, http.MethodGet, "/products/home", nil, &featured)
	if err == nil {
		if featured == nil {
			featured = []Product{}
		}
		return featured, nil
	}

	log := logger.WithCtx(ctx)
	log.Warn("apiclient: home products endpoint failed, using fallback", "error", err)

	if err := sleep(ctx, c.fallbackDelay); err != nil {
		return []Product{}, nil
	}

	all, err := c.ListProducts(ctx)
	if err != nil {
		log.Warn("apiclient: home products fallback failed", "error", err)
		return []Product{}, nil
	}

	out := make([]Product, 0, len(all))
	for _, p := range all {
		if p.DisplayHome {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].HomePosition < out[j].HomePosition })
	return out, nil
}
