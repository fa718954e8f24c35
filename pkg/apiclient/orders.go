package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

type OrderItem struct {
	ID          ID      `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Image       string  `json:"image,omitempty"`
	Description string  `json:"description,omitempty"`
}

// OrderInput is what the order page submits. Totals are recomputed by the
// server.
type OrderInput struct {
	CustomerName    string      `json:"customerName"`
	City            string      `json:"city"`
	PhoneNumber     string      `json:"phoneNumber"`
	DeliveryAddress string      `json:"deliveryAddress"`
	DeliveryType    string      `json:"deliveryType"`
	Items           []OrderItem `json:"items"`
}

type Order struct {
	ID              ID          `json:"id"`
	CustomerName    string      `json:"customerName"`
	City            string      `json:"city"`
	PhoneNumber     string      `json:"phoneNumber"`
	DeliveryAddress string      `json:"deliveryAddress"`
	DeliveryType    string      `json:"deliveryType"`
	Items           []OrderItem `json:"items"`
	Status          string      `json:"status"`
	Subtotal        float64     `json:"subtotal"`
	DeliveryFee     float64     `json:"deliveryFee"`
	Total           float64     `json:"total"`
	CreatedAt       time.Time   `json:"createdAt"`
}

func orderPath(id ID) string { return "/orders/" + url.PathEscape(string(id)) }

func (c *Client) CreateOrder(ctx context.Context, in OrderInput) (Order, error) {
	var out Order
	err := c.do(ctx, http.MethodPost, "/orders", in, &out)
	return out, err
}

func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := c.do(ctx, http.MethodGet, "/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id ID, status string) (Order, error) {
	var out Order
	err := c.do(ctx, http.MethodPut, orderPath(id), map[string]string{"status": status}, &out)
	return out, err
}

func (c *Client) DeleteOrder(ctx context.Context, id ID) error {
	return c.do(ctx, http.MethodDelete, orderPath(id), nil, nil)
}
