package storefront

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/onyxia-store/onyxia/pkg/cart"
	"github.com/onyxia-store/onyxia/pkg/logger"
)

// ProductCard is what a product tile carries: the id and image attributes
// and the displayed name and price text.
type ProductCard struct {
	ID        string
	Name      string
	PriceText string
	Image     string
}

// Item converts the card to a cart line, parsing the displayed price.
func (c ProductCard) Item() (cart.Item, error) {
	price, err := ParsePrice(c.PriceText)
	if err != nil {
		return cart.Item{}, err
	}
	img := c.Image
	if img == "" {
		img = PlaceholderImage
	}
	return cart.Item{
		ID:    strings.TrimSpace(c.ID),
		Name:  strings.TrimSpace(c.Name),
		Price: price,
		Image: img,
	}, nil
}

// ParsePrice reads a displayed price such as "2,450 DZD" or "1 200.50".
// A comma followed by exactly three digits groups thousands; any other comma
// is a decimal separator.
func ParsePrice(s string) (float64, error) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return 0, fmt.Errorf("storefront: no price in %q", s)
	}

	if i := strings.LastIndex(digits, ","); i >= 0 {
		decimal := !strings.Contains(digits, ".") && len(digits)-i-1 != 3
		if decimal {
			digits = digits[:i] + "." + digits[i+1:]
		}
		digits = strings.ReplaceAll(digits, ",", "")
	}
	return strconv.ParseFloat(digits, 64)
}

// ShopPage handles the product grid buttons.
type ShopPage struct {
	Cart *cart.Manager
	View View
}

// OnAddToCart adds one unit of the card's product.
func (p *ShopPage) OnAddToCart(ctx context.Context, card ProductCard) error {
	item, err := card.Item()
	if err == nil {
		var items []cart.Item
		items, err = p.Cart.Add(item)
		if err == nil {
			p.View.SetCartCount(cart.ComputeTotals(items).ItemCount)
			toast(p.View, cart.Success, "Added to Cart", item.Name+" was added to your cart")
			return nil
		}
	}

	logger.WithCtx(ctx).Warn("add to cart failed", "product_id", card.ID, "error", err)
	if !errors.Is(err, cart.ErrUnsavable) {
		toast(p.View, cart.Error, "Error", "Could not add this product to your cart.")
	}
	return err
}

// OnOrderNow replaces the cart with the card's product and opens the order
// form.
func (p *ShopPage) OnOrderNow(ctx context.Context, card ProductCard) error {
	item, err := card.Item()
	if err == nil {
		_, err = p.Cart.ReplaceWith(item)
	}
	if err != nil {
		logger.WithCtx(ctx).Warn("order now failed", "product_id", card.ID, "error", err)
		toast(p.View, cart.Error, "Error", "Could not start the order for this product.")
		return err
	}
	p.View.SetCartCount(1)
	p.View.Navigate(PageOrder)
	return nil
}
