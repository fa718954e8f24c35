package storefront

import (
	"context"

	"github.com/onyxia-store/onyxia/pkg/apiclient"
	"github.com/onyxia-store/onyxia/pkg/cart"
	"github.com/onyxia-store/onyxia/pkg/logger"
)

type HomeView interface {
	View
	RenderProducts(products []apiclient.Product)
	RenderEmpty()
}

// HomePage shows the featured products.
type HomePage struct {
	Products ProductSource
	Cart     *cart.Manager
	View     HomeView
}

// Load renders the featured grid, or the empty state when nothing is
// featured or the catalogue is unreachable.
func (p *HomePage) Load(ctx context.Context) {
	p.View.SetCartCount(p.Cart.Count())

	products, err := p.Products.GetHomeProducts(ctx)
	if err != nil {
		logger.WithCtx(ctx).Warn("home products unavailable", "error", err)
	}
	if len(products) == 0 {
		p.View.RenderEmpty()
		return
	}
	for i := range products {
		if products[i].Image == "" {
			products[i].Image = PlaceholderImage
		}
	}
	p.View.RenderProducts(products)
}
