package cart

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/onyxia-store/onyxia/pkg/kvstore"
)

// SummaryItem is one line of the checkout snapshot.
type SummaryItem struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	HasImage  *bool   `json:"hasImage,omitempty"`
	ItemTotal float64 `json:"itemTotal"`
}

// Summary is stored under kvstore.KeyOrderSummary between the cart page and
// the order page.
type Summary struct {
	TotalItems int           `json:"totalItems"`
	Subtotal   float64       `json:"subtotal"`
	Items      []SummaryItem `json:"items"`
}

// Checkout snapshots the cart. When the full snapshot exceeds the storage
// quota an essential form without image flags is stored instead.
func (m *Manager) Checkout() (Summary, error) {
	items := m.Items()
	if len(items) == 0 {
		return Summary{}, ErrEmptyCart
	}

	totals := ComputeTotals(items)
	full := Summary{TotalItems: totals.ItemCount, Subtotal: totals.Subtotal}
	essential := full
	for _, it := range items {
		hasImage := it.Image != ""
		line := SummaryItem{
			ID:        it.ID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			ItemTotal: it.Price * float64(it.Quantity),
		}
		essential.Items = append(essential.Items, line)
		line.HasImage = &hasImage
		full.Items = append(full.Items, line)
	}

	err := m.saveSummary(full)
	if err == nil {
		return full, nil
	}
	if !errors.Is(err, kvstore.ErrQuotaExceeded) {
		return Summary{}, err
	}

	m.log.Warn("order summary too large, storing essential form", "error", err)
	if err := m.saveSummary(essential); err != nil {
		return Summary{}, err
	}
	return essential, nil
}

// LoadSummary returns the stored checkout snapshot, if any.
func (m *Manager) LoadSummary() (Summary, bool, error) {
	raw, ok, err := m.store.Get(kvstore.KeyOrderSummary)
	if err != nil || !ok || raw == "" {
		return Summary{}, false, err
	}
	var s Summary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Summary{}, false, fmt.Errorf("cart: decode summary: %w", err)
	}
	return s, true, nil
}

func (m *Manager) saveSummary(s Summary) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("cart: encode summary: %w", err)
	}
	return m.store.Set(kvstore.KeyOrderSummary, string(raw))
}
