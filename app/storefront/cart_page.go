package storefront

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/onyxia-store/onyxia/pkg/apiclient"
	"github.com/onyxia-store/onyxia/pkg/cart"
	"github.com/onyxia-store/onyxia/pkg/logger"
)

const imageLookups = 4

type CartView interface {
	View
	RenderCart(items []cart.Item, totals cart.Totals)
	RenderEmptyCart()
	UpdateTotals(totals cart.Totals)
}

// CartPage drives cart.html.
type CartPage struct {
	Cart     *cart.Manager
	Products ProductSource
	View     CartView
}

// Load expires a stale cart, then renders the lines with images refreshed
// from the catalogue.
func (p *CartPage) Load(ctx context.Context) {
	log := logger.WithCtx(ctx)
	if _, err := p.Cart.CheckExpiry(); err != nil {
		log.Warn("cart expiry check failed", "error", err)
	}

	items := p.Cart.Items()
	if len(items) == 0 {
		p.View.SetCartCount(0)
		p.View.RenderEmptyCart()
		return
	}

	p.enrichImages(ctx, items)
	totals := cart.ComputeTotals(items)
	p.View.SetCartCount(totals.ItemCount)
	p.View.RenderCart(items, totals)
}

// enrichImages replaces each line's image with the catalogue's current one,
// or the placeholder when the product cannot be fetched. Display only; the
// stored cart keeps its own references.
func (p *CartPage) enrichImages(ctx context.Context, items []cart.Item) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageLookups)
	for i := range items {
		i := i
		g.Go(func() error {
			product, err := p.Products.GetProduct(gctx, apiclient.ID(items[i].ID))
			switch {
			case err != nil:
				logger.WithCtx(ctx).Debug("product image lookup failed", "product_id", items[i].ID, "error", err)
				items[i].Image = PlaceholderImage
			case product.Image != "":
				items[i].Image = product.Image
			default:
				items[i].Image = PlaceholderImage
			}
			return nil
		})
	}
	_ = g.Wait()
}

// OnQuantityChange stores n (clamped to 1) and updates the summary.
func (p *CartPage) OnQuantityChange(ctx context.Context, id string, n int) error {
	totals, err := p.Cart.SetQuantity(id, n)
	if err != nil {
		return p.failed(ctx, "update quantity", err)
	}
	p.View.SetCartCount(totals.ItemCount)
	p.View.UpdateTotals(totals)
	return nil
}

func (p *CartPage) OnIncrement(ctx context.Context, id string) error {
	return p.step(ctx, id, +1)
}

// OnDecrement never goes below one; removing is explicit.
func (p *CartPage) OnDecrement(ctx context.Context, id string) error {
	return p.step(ctx, id, -1)
}

func (p *CartPage) step(ctx context.Context, id string, delta int) error {
	for _, it := range p.Cart.Items() {
		if it.ID == id {
			return p.OnQuantityChange(ctx, id, it.Quantity+delta)
		}
	}
	return p.failed(ctx, "update quantity", cart.ErrItemNotFound)
}

// OnRemove deletes the line and re-renders, showing the empty state when it
// was the last one.
func (p *CartPage) OnRemove(ctx context.Context, id string) error {
	items, err := p.Cart.Remove(id)
	if err != nil {
		return p.failed(ctx, "remove item", err)
	}
	totals := cart.ComputeTotals(items)
	p.View.SetCartCount(totals.ItemCount)
	if len(items) == 0 {
		p.View.RenderEmptyCart()
		return nil
	}
	p.View.RenderCart(items, totals)
	return nil
}

// OnProceedToCheckout stores the order summary and opens the checkout page.
func (p *CartPage) OnProceedToCheckout(ctx context.Context) error {
	if _, err := p.Cart.Checkout(); err != nil {
		if errors.Is(err, cart.ErrEmptyCart) {
			toast(p.View, cart.Warning, "Empty Cart", "Add a product before checking out.")
			return err
		}
		return p.failed(ctx, "checkout", err)
	}
	p.View.Navigate(PageCheckout)
	return nil
}

// failed reloads the cart from storage so the page shows what was actually
// saved, and reports the error.
func (p *CartPage) failed(ctx context.Context, op string, err error) error {
	logger.WithCtx(ctx).Warn("cart "+op+" failed", "error", err)
	toast(p.View, cart.Error, "Error", "Your cart could not be updated.")

	items := p.Cart.Items()
	if len(items) == 0 {
		p.View.RenderEmptyCart()
	} else {
		p.View.RenderCart(items, cart.ComputeTotals(items))
	}
	return err
}
