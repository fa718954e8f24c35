package storefront

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/onyxia-store/onyxia/pkg/apiclient"
	"github.com/onyxia-store/onyxia/pkg/cart"
	"github.com/onyxia-store/onyxia/pkg/logger"
)

// ConfirmationDelay is how long the confirmation stays up before returning
// to the home page.
const ConfirmationDelay = 3 * time.Second

var ErrIncompleteForm = errors.New("storefront: name, city and phone number are required")

// OrderForm is the customer part of the order.
type OrderForm struct {
	CustomerName    string
	City            string
	PhoneNumber     string
	DeliveryAddress string
	DeliveryType    string
}

type OrderView interface {
	View
	ShowConfirmation(order apiclient.Order)
}

// OrderPage submits the cart as an order.
type OrderPage struct {
	Cart   *cart.Manager
	Orders OrderSink
	View   OrderView
	// Delay before navigating home; ConfirmationDelay when zero, none when
	// negative.
	Delay time.Duration
}

// Submit sends the cart and form. On success the cart and summary are
// cleared, the confirmation shown, and the page navigates home after the
// delay. Failures leave the cart intact.
func (p *OrderPage) Submit(ctx context.Context, form OrderForm) (apiclient.Order, error) {
	log := logger.WithCtx(ctx)

	items := p.Cart.Items()
	if len(items) == 0 {
		toast(p.View, cart.Error, "Error", "No products in cart")
		return apiclient.Order{}, cart.ErrEmptyCart
	}

	form = form.normalized()
	if form.CustomerName == "" || form.City == "" || form.PhoneNumber == "" {
		toast(p.View, cart.Error, "Error", "Please fill in your name, city and phone number.")
		return apiclient.Order{}, ErrIncompleteForm
	}

	in := apiclient.OrderInput{
		CustomerName:    form.CustomerName,
		City:            form.City,
		PhoneNumber:     form.PhoneNumber,
		DeliveryAddress: form.DeliveryAddress,
		DeliveryType:    form.DeliveryType,
		Items:           make([]apiclient.OrderItem, 0, len(items)),
	}
	for _, it := range items {
		id := it.ID
		if id == "" {
			id = "N/A"
		}
		in.Items = append(in.Items, apiclient.OrderItem{
			ID:       apiclient.ID(id),
			Name:     it.Name,
			Price:    it.Price,
			Quantity: it.Quantity,
			Image:    it.Image,
		})
	}

	order, err := p.Orders.CreateOrder(ctx, in)
	if err != nil {
		log.Error("order submission failed", "error", err)
		toast(p.View, cart.Error, "Error", humanMessage(err, "Failed to submit order. Please try again."))
		return apiclient.Order{}, err
	}

	if err := p.Cart.Clear(); err != nil {
		log.Warn("clearing cart after order failed", "error", err)
	}
	log.Info("order submitted", "order_id", order.ID.String(), "total", order.Total)
	p.View.SetCartCount(0)
	p.View.ShowConfirmation(order)

	if err := wait(ctx, p.delay()); err != nil {
		return order, nil
	}
	p.View.Navigate(PageIndex)
	return order, nil
}

func (p *OrderPage) delay() time.Duration {
	if p.Delay == 0 {
		return ConfirmationDelay
	}
	if p.Delay < 0 {
		return 0
	}
	return p.Delay
}

func (f OrderForm) normalized() OrderForm {
	f.CustomerName = strings.TrimSpace(f.CustomerName)
	f.City = strings.TrimSpace(f.City)
	f.PhoneNumber = strings.TrimSpace(f.PhoneNumber)
	f.DeliveryAddress = strings.TrimSpace(f.DeliveryAddress)
	f.DeliveryType = strings.ToLower(strings.TrimSpace(f.DeliveryType))
	if f.DeliveryType == "" {
		f.DeliveryType = "home"
	}
	return f
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
