// Package storefront holds the page controllers of the public shop: home,
// shop grid, cart and order form. Pages never touch markup; each one drives
// a View, so the same logic backs the browser scripts and the tests.
package storefront

import (
	"context"
	"errors"

	"github.com/onyxia-store/onyxia/pkg/apiclient"
	"github.com/onyxia-store/onyxia/pkg/cart"
)

// Pages the controllers navigate to.
const (
	PageIndex    = "index.html"
	PageCheckout = "order-index.html"
	PageOrder    = "order.html"
)

// PlaceholderImage replaces product images that cannot be resolved.
const PlaceholderImage = "img/logo.png"

// View is what every page needs from its presentation layer. Toasts arrive
// through cart.Notifier so the cart manager can report quota trimming on the
// same channel.
type View interface {
	cart.Notifier
	Navigate(page string)
	SetCartCount(n int)
}

// ProductSource is the read side of the catalogue API.
type ProductSource interface {
	GetHomeProducts(ctx context.Context) ([]apiclient.Product, error)
	GetProduct(ctx context.Context, id apiclient.ID) (apiclient.Product, error)
}

// OrderSink submits orders.
type OrderSink interface {
	CreateOrder(ctx context.Context, in apiclient.OrderInput) (apiclient.Order, error)
}

var (
	_ ProductSource = (*apiclient.Client)(nil)
	_ OrderSink     = (*apiclient.Client)(nil)
)

// humanMessage picks the text shown to shoppers for a failed API call.
func humanMessage(err error, fallback string) string {
	var httpErr *apiclient.HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	return fallback
}

func toast(v View, kind cart.Kind, title, message string) {
	v.Notify(cart.Notice{Kind: kind, Title: title, Message: message})
}
