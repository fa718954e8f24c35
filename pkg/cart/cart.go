// Package cart owns the shopping cart persisted in a kvstore.Store: line
// items keyed by product id, totals, the 48 hour expiry and the checkout
// snapshot.
//
// A Manager is created per visitor and handed to the page controllers:
//
//	m := cart.New(store, cart.WithNotifier(view))
//	items, err := m.Add(cart.Item{ID: "12", Name: "Opal ring", Price: 4200})
package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/onyxia-store/onyxia/pkg/kvstore"
	"github.com/onyxia-store/onyxia/pkg/logger"
)

const (
	// ExpiryWindow is measured from the last cart page visit.
	ExpiryWindow = 48 * time.Hour

	trimAbove  = 0.9
	trimTarget = 0.5
)

var (
	ErrItemNotFound = errors.New("cart: item not found")
	ErrInvalidItem  = errors.New("cart: item needs an id, a name and a positive price")
	ErrEmptyCart    = errors.New("cart: no products in cart")
	// ErrUnsavable means even a one-item cart does not fit in storage.
	ErrUnsavable = errors.New("cart: unable to save even a single item, storage is full")
)

// Item is one cart line. Timestamps are Unix milliseconds.
type Item struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Image       string  `json:"image,omitempty"`
	AddedAt     int64   `json:"addedAt,omitempty"`
	LastUpdated int64   `json:"lastUpdated,omitempty"`
}

// Totals is derived from the items, never stored.
type Totals struct {
	ItemCount int     `json:"itemCount"`
	Subtotal  float64 `json:"subtotal"`
}

// ComputeTotals sums price×quantity and quantities.
func ComputeTotals(items []Item) Totals {
	var t Totals
	for _, it := range items {
		t.ItemCount += it.Quantity
		t.Subtotal += it.Price * float64(it.Quantity)
	}
	return t
}

type Manager struct {
	store  kvstore.Store
	now    func() time.Time
	notify Notifier
	budget int
	log    *slog.Logger
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithNotifier(n Notifier) Option { return func(m *Manager) { m.notify = n } }

// WithBudget overrides the byte budget the trimming thresholds apply to.
func WithBudget(bytes int) Option { return func(m *Manager) { m.budget = bytes } }

func New(store kvstore.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		now:    time.Now,
		notify: NopNotifier{},
		budget: kvstore.DefaultQuota,
		log:    logger.L.With("component", "cart"),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Items returns the stored cart. A missing or unreadable cart is empty.
func (m *Manager) Items() []Item {
	raw, ok, err := m.store.Get(kvstore.KeyCart)
	if err != nil || !ok || raw == "" {
		return []Item{}
	}
	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		m.log.Warn("discarding unreadable cart", "error", err)
		return []Item{}
	}
	// legacy carts may carry quantity 0
	for i := range items {
		if items[i].Quantity < 1 {
			items[i].Quantity = 1
		}
	}
	return items
}

// Count is the navbar badge value.
func (m *Manager) Count() int { return ComputeTotals(m.Items()).ItemCount }

func (m *Manager) Totals() Totals { return ComputeTotals(m.Items()) }

func (m *Manager) stamp() int64 { return m.now().UnixMilli() }

// Add increments the line for in.ID or appends a new line with quantity 1.
func (m *Manager) Add(in Item) ([]Item, error) {
	if in.ID == "" || in.Name == "" || in.Price <= 0 {
		return nil, ErrInvalidItem
	}

	items := m.Items()
	now := m.stamp()

	var touched Item
	found := false
	for i := range items {
		if items[i].ID == in.ID {
			items[i].Quantity++
			items[i].LastUpdated = now
			touched = items[i]
			found = true
			break
		}
	}
	if !found {
		touched = Item{
			ID:          in.ID,
			Name:        in.Name,
			Price:       in.Price,
			Quantity:    1,
			Image:       in.Image,
			AddedAt:     now,
			LastUpdated: now,
		}
		items = append(items, touched)
	}

	if size(items) > int(float64(m.budget)*trimAbove) {
		trimmed := trimLRU(items, int(float64(m.budget)*trimTarget), touched.ID)
		if len(trimmed) < len(items) {
			m.notify.Notify(Notice{Kind: Warning, Title: "Cart Trimmed", Message: "Older items were removed to keep your cart within storage limits."})
		}
		items = trimmed
	}

	return m.persistWithFallback(items, touched)
}

// persistWithFallback implements the quota ladder: save, else drop least
// recently updated lines down to half the budget, else keep only touched.
func (m *Manager) persistWithFallback(items []Item, touched Item) ([]Item, error) {
	err := m.save(items)
	if err == nil {
		return items, nil
	}
	if !errors.Is(err, kvstore.ErrQuotaExceeded) {
		return nil, err
	}

	m.log.Warn("cart hit storage quota, trimming", "items", len(items), "error", err)
	trimmed := trimLRU(items, int(float64(m.budget)*trimTarget), touched.ID)
	if len(trimmed) < len(items) {
		if err = m.save(trimmed); err == nil {
			m.notify.Notify(Notice{Kind: Warning, Title: "Cart Trimmed", Message: "Some older items were removed from your cart to make room."})
			return trimmed, nil
		}
		if !errors.Is(err, kvstore.ErrQuotaExceeded) {
			return nil, err
		}
	}

	single := []Item{touched}
	if err = m.save(single); err == nil {
		m.notify.Notify(Notice{Kind: Warning, Title: "Cart Reset", Message: "Your cart was reset because storage is full. Only the latest item was kept."})
		return single, nil
	}
	if errors.Is(err, kvstore.ErrQuotaExceeded) {
		m.notify.Notify(Notice{Kind: Error, Title: "Storage Full", Message: ErrUnsavable.Error()})
		return nil, fmt.Errorf("%w: %v", ErrUnsavable, err)
	}
	return nil, err
}

// SetQuantity clamps n to at least 1 and returns the new totals.
func (m *Manager) SetQuantity(id string, n int) (Totals, error) {
	if n < 1 {
		n = 1
	}
	items := m.Items()
	idx := indexOf(items, id)
	if idx < 0 {
		return Totals{}, ErrItemNotFound
	}
	items[idx].Quantity = n
	items[idx].LastUpdated = m.stamp()
	if err := m.save(items); err != nil {
		return Totals{}, err
	}
	return ComputeTotals(items), nil
}

// Remove deletes the line and returns what is left.
func (m *Manager) Remove(id string) ([]Item, error) {
	items := m.Items()
	idx := indexOf(items, id)
	if idx < 0 {
		return items, ErrItemNotFound
	}
	items = append(items[:idx], items[idx+1:]...)
	if err := m.save(items); err != nil {
		return nil, err
	}
	return items, nil
}

// ReplaceWith makes in the only line, for "order now".
func (m *Manager) ReplaceWith(in Item) ([]Item, error) {
	if in.ID == "" || in.Name == "" || in.Price <= 0 {
		return nil, ErrInvalidItem
	}
	now := m.stamp()
	in.Quantity = 1
	in.AddedAt, in.LastUpdated = now, now

	items := []Item{in}
	if err := m.save(items); err != nil {
		return nil, err
	}
	return items, nil
}

// CheckExpiry clears a cart whose last visit is ExpiryWindow or more ago and
// always refreshes the visit timestamp.
func (m *Manager) CheckExpiry() (bool, error) {
	now := m.now()
	expired := false

	if raw, ok, err := m.store.Get(kvstore.KeyCartTimestamp); err == nil && ok {
		if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			if now.Sub(time.UnixMilli(ms)) >= ExpiryWindow {
				if err := m.store.Remove(kvstore.KeyCart); err != nil {
					return false, err
				}
				expired = true
				m.notify.Notify(Notice{Kind: Info, Title: "Cart Expired", Message: "Your cart was cleared after 48 hours of inactivity."})
			}
		}
	}

	if err := m.store.Set(kvstore.KeyCartTimestamp, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		return expired, err
	}
	return expired, nil
}

// Clear removes the cart and any checkout snapshot.
func (m *Manager) Clear() error {
	if err := m.store.Remove(kvstore.KeyCart); err != nil {
		return err
	}
	return m.store.Remove(kvstore.KeyOrderSummary)
}

func (m *Manager) save(items []Item) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("cart: encode: %w", err)
	}
	return m.store.Set(kvstore.KeyCart, string(raw))
}

func indexOf(items []Item, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func size(items []Item) int {
	raw, _ := json.Marshal(items)
	return len(raw)
}

// trimLRU drops the least recently updated lines, never keep, until the
// encoded cart fits in limit. Display order is preserved.
func trimLRU(items []Item, limit int, keep string) []Item {
	out := append([]Item(nil), items...)
	for size(out) > limit && len(out) > 1 {
		victim := -1
		for i := range out {
			if out[i].ID == keep {
				continue
			}
			if victim < 0 || out[i].LastUpdated < out[victim].LastUpdated {
				victim = i
			}
		}
		if victim < 0 {
			break
		}
		out = append(out[:victim], out[victim+1:]...)
	}
	return out
}
