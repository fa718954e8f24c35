package storefront_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onyxia-store/onyxia/app/storefront"
	"github.com/onyxia-store/onyxia/pkg/apiclient"
	"github.com/onyxia-store/onyxia/pkg/cart"
	"github.com/onyxia-store/onyxia/pkg/kvstore"
	"github.com/onyxia-store/onyxia/pkg/logger"
	"github.com/onyxia-store/onyxia/pkg/testkit"
)

func init() { logger.Discard() }

// view records every call a page makes.
type view struct {
	mu        sync.Mutex
	notices   []cart.Notice
	pages     []string
	count     int
	products  []apiclient.Product
	empty     bool
	items     []cart.Item
	totals    cart.Totals
	confirmed *apiclient.Order
}

func (v *view) Notify(n cart.Notice) { v.mu.Lock(); v.notices = append(v.notices, n); v.mu.Unlock() }
func (v *view) Navigate(p string)    { v.pages = append(v.pages, p) }
func (v *view) SetCartCount(n int)   { v.count = n }

func (v *view) RenderProducts(p []apiclient.Product) { v.products, v.empty = p, false }
func (v *view) RenderEmpty()                         { v.empty = true }

func (v *view) RenderCart(items []cart.Item, t cart.Totals) { v.items, v.totals, v.empty = items, t, false }
func (v *view) RenderEmptyCart()                            { v.items, v.empty = nil, true }
func (v *view) UpdateTotals(t cart.Totals)                  { v.totals = t }

func (v *view) ShowConfirmation(o apiclient.Order) { v.confirmed = &o }

func (v *view) titles() []string {
	out := make([]string, 0, len(v.notices))
	for _, n := range v.notices {
		out = append(out, n.Title)
	}
	return out
}

func client(mt *testkit.MockTransport) *apiclient.Client {
	return apiclient.New("http://api.test", apiclient.WithHTTPClient(mt.Client()), apiclient.WithFallbackDelay(0), apiclient.WithRetry(1, 0))
}

func newCart(store kvstore.Store, v *view) *cart.Manager {
	return cart.New(store, cart.WithNotifier(v))
}

// ─── Home ─────────────────────────────────────────────────────────────────────

func TestHomePage_RendersFeaturedWithPlaceholder(t *testing.T) {
	mt := testkit.NewMockTransport().
		On("GET", "/api/products/home", 200, `[{"id":1,"name":"Solitaire","price":2450,"image":""},{"id":2,"name":"Pearl","price":890,"image":"p.jpg"}]`)
	v := &view{}
	p := &storefront.HomePage{Products: client(mt), Cart: newCart(kvstore.NewMemory(0), v), View: v}

	p.Load(context.Background())

	require.Len(t, v.products, 2)
	assert.Equal(t, storefront.PlaceholderImage, v.products[0].Image)
	assert.Equal(t, "p.jpg", v.products[1].Image)
	assert.False(t, v.empty)
}

func TestHomePage_EmptyStateWhenCatalogueDown(t *testing.T) {
	mt := testkit.NewMockTransport().
		Fail("GET", "/api/products/home", testkit.ErrConnRefused).
		Fail("GET", "/api/products", testkit.ErrConnRefused)
	v := &view{}
	p := &storefront.HomePage{Products: client(mt), Cart: newCart(kvstore.NewMemory(0), v), View: v}

	p.Load(context.Background())

	assert.True(t, v.empty)
	assert.Empty(t, v.products)
}

// ─── Shop ─────────────────────────────────────────────────────────────────────

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"2,450 DZD", 2450},
		{"1 200.50 DZD", 1200.5},
		{"12,5", 12.5},
		{"1,234,567", 1234567},
		{"1,234.75", 1234.75},
		{"890", 890},
	}
	for _, tt := range tests {
		got, err := storefront.ParsePrice(tt.in)
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}

	_, err := storefront.ParsePrice("Price on request")
	assert.Error(t, err)
}

func TestShopPage_AddToCart(t *testing.T) {
	v := &view{}
	store := kvstore.NewMemory(0)
	p := &storefront.ShopPage{Cart: newCart(store, v), View: v}
	card := storefront.ProductCard{ID: "7", Name: "Ruby Passion", PriceText: "1,650 DZD"}

	require.NoError(t, p.OnAddToCart(context.Background(), card))
	require.NoError(t, p.OnAddToCart(context.Background(), card))

	assert.Equal(t, 2, v.count)
	assert.Equal(t, []string{"Added to Cart", "Added to Cart"}, v.titles())

	items := p.Cart.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 1650.0, items[0].Price)
	assert.Equal(t, storefront.PlaceholderImage, items[0].Image)
}

func TestShopPage_AddToCartRejectsZeroPrice(t *testing.T) {
	v := &view{}
	p := &storefront.ShopPage{Cart: newCart(kvstore.NewMemory(0), v), View: v}

	err := p.OnAddToCart(context.Background(), storefront.ProductCard{ID: "7", Name: "Free", PriceText: "0"})

	assert.ErrorIs(t, err, cart.ErrInvalidItem)
	assert.Equal(t, []string{"Error"}, v.titles())
	assert.Empty(t, p.Cart.Items())
}

func TestShopPage_OrderNowReplacesCart(t *testing.T) {
	v := &view{}
	store := kvstore.NewMemory(0)
	p := &storefront.ShopPage{Cart: newCart(store, v), View: v}
	require.NoError(t, p.OnAddToCart(context.Background(), storefront.ProductCard{ID: "1", Name: "A", PriceText: "10"}))
	require.NoError(t, p.OnAddToCart(context.Background(), storefront.ProductCard{ID: "2", Name: "B", PriceText: "20"}))

	require.NoError(t, p.OnOrderNow(context.Background(), storefront.ProductCard{ID: "3", Name: "C", PriceText: "30", Image: "c.jpg"}))

	items := p.Cart.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "3", items[0].ID)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, []string{storefront.PageOrder}, v.pages)
}

// ─── Cart ─────────────────────────────────────────────────────────────────────

func seedCart(t *testing.T, m *cart.Manager, items ...cart.Item) {
	t.Helper()
	for _, it := range items {
		_, err := m.Add(it)
		require.NoError(t, err)
	}
}

func TestCartPage_LoadEnrichesImages(t *testing.T) {
	mt := testkit.NewMockTransport().
		On("GET", "/api/products/1", 200, `{"id":1,"name":"A","price":10,"image":"fresh.jpg"}`).
		On("GET", "/api/products/2", 404, `{"message":"Product not found"}`).
		On("GET", "/api/products/3", 200, `{"id":3,"name":"C","price":30,"image":""}`)
	v := &view{}
	m := newCart(kvstore.NewMemory(0), v)
	seedCart(t, m,
		cart.Item{ID: "1", Name: "A", Price: 10, Image: "old.jpg"},
		cart.Item{ID: "2", Name: "B", Price: 20, Image: "b.jpg"},
		cart.Item{ID: "3", Name: "C", Price: 30},
	)
	p := &storefront.CartPage{Cart: m, Products: client(mt), View: v}

	p.Load(context.Background())

	require.Len(t, v.items, 3)
	assert.Equal(t, "fresh.jpg", v.items[0].Image)
	assert.Equal(t, storefront.PlaceholderImage, v.items[1].Image)
	assert.Equal(t, storefront.PlaceholderImage, v.items[2].Image)
	assert.Equal(t, cart.Totals{ItemCount: 3, Subtotal: 60}, v.totals)
	assert.Equal(t, 3, v.count)

	// display only
	assert.Equal(t, "old.jpg", m.Items()[0].Image)
	mt.AssertAllCalled(t)
}

func TestCartPage_LoadClearsExpiredCart(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := kvstore.NewMemory(0)
	v := &view{}
	m := cart.New(store, cart.WithNotifier(v), cart.WithClock(func() time.Time { return now }))
	seedCart(t, m, cart.Item{ID: "1", Name: "A", Price: 10})
	_, err := m.CheckExpiry()
	require.NoError(t, err)

	now = now.Add(48 * time.Hour)
	p := &storefront.CartPage{Cart: m, Products: client(testkit.NewMockTransport()), View: v}
	p.Load(context.Background())

	assert.True(t, v.empty)
	assert.Contains(t, v.titles(), "Cart Expired")
	assert.Equal(t, 0, v.count)
}

func TestCartPage_QuantityControls(t *testing.T) {
	v := &view{}
	m := newCart(kvstore.NewMemory(0), v)
	seedCart(t, m, cart.Item{ID: "1", Name: "A", Price: 10}, cart.Item{ID: "2", Name: "B", Price: 5})
	p := &storefront.CartPage{Cart: m, Products: client(testkit.NewMockTransport()), View: v}
	ctx := context.Background()

	require.NoError(t, p.OnIncrement(ctx, "1"))
	assert.Equal(t, cart.Totals{ItemCount: 3, Subtotal: 25}, v.totals)

	require.NoError(t, p.OnDecrement(ctx, "1"))
	require.NoError(t, p.OnDecrement(ctx, "1"))
	assert.Equal(t, 1, m.Items()[0].Quantity, "decrement stops at one")

	require.NoError(t, p.OnQuantityChange(ctx, "2", -4))
	assert.Equal(t, 1, m.Items()[1].Quantity)

	require.NoError(t, p.OnQuantityChange(ctx, "2", 4))
	assert.Equal(t, cart.Totals{ItemCount: 5, Subtotal: 30}, v.totals)
	assert.Equal(t, 5, v.count)

	err := p.OnIncrement(ctx, "missing")
	assert.ErrorIs(t, err, cart.ErrItemNotFound)
	assert.Contains(t, v.titles(), "Error")
}

func TestCartPage_RemoveLastShowsEmptyState(t *testing.T) {
	v := &view{}
	m := newCart(kvstore.NewMemory(0), v)
	seedCart(t, m, cart.Item{ID: "1", Name: "A", Price: 10}, cart.Item{ID: "2", Name: "B", Price: 5})
	p := &storefront.CartPage{Cart: m, Products: client(testkit.NewMockTransport()), View: v}

	require.NoError(t, p.OnRemove(context.Background(), "1"))
	require.Len(t, v.items, 1)
	assert.False(t, v.empty)

	require.NoError(t, p.OnRemove(context.Background(), "2"))
	assert.True(t, v.empty)
	assert.Equal(t, 0, v.count)
}

func TestCartPage_ProceedToCheckout(t *testing.T) {
	v := &view{}
	store := kvstore.NewMemory(0)
	m := newCart(store, v)
	p := &storefront.CartPage{Cart: m, Products: client(testkit.NewMockTransport()), View: v}

	err := p.OnProceedToCheckout(context.Background())
	assert.ErrorIs(t, err, cart.ErrEmptyCart)
	assert.Empty(t, v.pages)

	seedCart(t, m, cart.Item{ID: "1", Name: "A", Price: 10, Image: "a.jpg"})
	require.NoError(t, p.OnProceedToCheckout(context.Background()))
	assert.Equal(t, []string{storefront.PageCheckout}, v.pages)

	s, ok, err := m.LoadSummary()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, s.TotalItems)
	assert.Equal(t, 10.0, s.Subtotal)
}

// ─── Order ────────────────────────────────────────────────────────────────────

func TestOrderPage_SubmitClearsCartAndGoesHome(t *testing.T) {
	var sent apiclient.OrderInput
	mt := testkit.NewMockTransport().Handle("POST", "/api/orders", func(r *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &sent); err != nil {
			return nil, err
		}
		return testkit.JSONResponse(201, `{"id":41,"customerName":"Lina","status":"pending","subtotal":30,"deliveryFee":10,"total":40}`), nil
	})
	v := &view{}
	store := kvstore.NewMemory(0)
	m := newCart(store, v)
	seedCart(t, m, cart.Item{ID: "1", Name: "A", Price: 10}, cart.Item{ID: "1", Name: "A", Price: 10}, cart.Item{ID: "2", Name: "B", Price: 10})
	_, err := m.Checkout()
	require.NoError(t, err)

	p := &storefront.OrderPage{Cart: m, Orders: client(mt), View: v, Delay: -1}
	order, err := p.Submit(context.Background(), storefront.OrderForm{
		CustomerName: " Lina ", City: "Oran", PhoneNumber: "0550 00 00 00",
	})
	require.NoError(t, err)

	assert.Equal(t, apiclient.ID("41"), order.ID)
	assert.Equal(t, "Lina", sent.CustomerName)
	assert.Equal(t, "home", sent.DeliveryType)
	require.Len(t, sent.Items, 2)
	assert.Equal(t, 2, sent.Items[0].Quantity)

	assert.Empty(t, m.Items())
	_, ok, _ := m.LoadSummary()
	assert.False(t, ok)
	require.NotNil(t, v.confirmed)
	assert.Equal(t, 40.0, v.confirmed.Total)
	assert.Equal(t, []string{storefront.PageIndex}, v.pages)
}

func TestOrderPage_SubmitFailureKeepsCart(t *testing.T) {
	mt := testkit.NewMockTransport().
		On("POST", "/api/orders", 422, `{"status":422,"message":"Validation failed","errors":{"phoneNumber":"invalid"}}`)
	v := &view{}
	m := newCart(kvstore.NewMemory(0), v)
	seedCart(t, m, cart.Item{ID: "1", Name: "A", Price: 10})

	p := &storefront.OrderPage{Cart: m, Orders: client(mt), View: v, Delay: -1}
	_, err := p.Submit(context.Background(), storefront.OrderForm{CustomerName: "Lina", City: "Oran", PhoneNumber: "x"})

	var httpErr *apiclient.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 422, httpErr.Status)
	require.NotEmpty(t, v.notices)
	assert.Equal(t, "Validation failed", v.notices[len(v.notices)-1].Message)
	assert.Len(t, m.Items(), 1)
	assert.Empty(t, v.pages)
}

func TestOrderPage_SubmitGuards(t *testing.T) {
	mt := testkit.NewMockTransport()
	v := &view{}
	m := newCart(kvstore.NewMemory(0), v)
	p := &storefront.OrderPage{Cart: m, Orders: client(mt), View: v, Delay: -1}

	_, err := p.Submit(context.Background(), storefront.OrderForm{CustomerName: "Lina", City: "Oran", PhoneNumber: "1"})
	assert.ErrorIs(t, err, cart.ErrEmptyCart)

	seedCart(t, m, cart.Item{ID: "1", Name: "A", Price: 10})
	_, err = p.Submit(context.Background(), storefront.OrderForm{CustomerName: "Lina", City: "  "})
	assert.ErrorIs(t, err, storefront.ErrIncompleteForm)

	assert.Empty(t, mt.Calls())
}

func TestOrderPage_NetworkErrorMessage(t *testing.T) {
	mt := testkit.NewMockTransport().Fail("POST", "/api/orders", testkit.ErrConnRefused)
	v := &view{}
	m := newCart(kvstore.NewMemory(0), v)
	seedCart(t, m, cart.Item{ID: "1", Name: "A", Price: 10})

	p := &storefront.OrderPage{Cart: m, Orders: client(mt), View: v, Delay: -1}
	_, err := p.Submit(context.Background(), storefront.OrderForm{CustomerName: "Lina", City: "Oran", PhoneNumber: "1"})

	var netErr *apiclient.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "Failed to submit order. Please try again.", v.notices[len(v.notices)-1].Message)
}
