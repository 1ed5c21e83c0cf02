// Package cart manages the register's in-progress carts on top of the
// session cache. Discounts are stored as amounts in cents; percent
// inputs are converted on the way in and derived on the way out.
package cart

import (
	"context"
	"fmt"
	"time"

	"retailpos/backend/internal/cache"
	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/pricing"
	"retailpos/backend/internal/store"
)

const defaultTTL = 12 * time.Hour

type Manager struct {
	sessions cache.SessionCache
	ttl      time.Duration
}

func NewManager(sessions cache.SessionCache) *Manager {
	return &Manager{sessions: sessions, ttl: defaultTTL}
}

// Get returns the session's cart, or a fresh empty one. An empty cart
// is never written back; it only exists once something touches it.
func (m *Manager) Get(ctx context.Context, sessionID string) (*domain.Cart, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", store.ErrInvalidSale)
	}
	cart, ok, err := m.sessions.GetCart(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if !ok {
		return &domain.Cart{SessionID: sessionID}, nil
	}
	return cart, nil
}

// AddItem merges quantity into an existing line for the same product,
// otherwise appends a new line snapshotting the product's current
// price and cost.
func (m *Manager) AddItem(ctx context.Context, sessionID string, product domain.Product, qty int) (*domain.Cart, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidSale)
	}
	cart, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	merged := false
	for i := range cart.Lines {
		if cart.Lines[i].ProductID == product.ID {
			cart.Lines[i].Quantity += qty
			merged = true
			break
		}
	}
	if !merged {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductID:      product.ID,
			Barcode:        product.Barcode,
			Name:           product.Name,
			UnitPriceCents: product.PriceCents,
			UnitCostCents:  product.CostCents,
			Quantity:       qty,
		})
	}
	return cart, m.save(ctx, cart)
}

// SetQuantity replaces a line's quantity; zero or below removes the line.
func (m *Manager) SetQuantity(ctx context.Context, sessionID string, productID string, qty int) (*domain.Cart, error) {
	cart, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	idx := lineIndex(cart, productID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: product %s not in cart", store.ErrNotFound, productID)
	}
	if qty <= 0 {
		cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)
	} else {
		cart.Lines[idx].Quantity = qty
		// Shrinking a line can strand a discount bigger than the line.
		lineTotal := cart.Lines[idx].UnitPriceCents * int64(qty)
		cart.Lines[idx].DiscountCents = pricing.ClampLineDiscount(cart.Lines[idx].DiscountCents, lineTotal)
	}
	return cart, m.save(ctx, cart)
}

// SetLineDiscount sets a line's discount from an amount or a percent of
// the line total. The stored value is always the amount.
func (m *Manager) SetLineDiscount(ctx context.Context, sessionID string, productID string, amountCents *int64, percent *float64) (*domain.Cart, error) {
	cart, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	idx := lineIndex(cart, productID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: product %s not in cart", store.ErrNotFound, productID)
	}
	lineTotal := cart.Lines[idx].UnitPriceCents * int64(cart.Lines[idx].Quantity)
	amount, err := resolveDiscount(amountCents, percent, lineTotal)
	if err != nil {
		return nil, err
	}
	cart.Lines[idx].DiscountCents = pricing.ClampLineDiscount(amount, lineTotal)
	return cart, m.save(ctx, cart)
}

// SetOrderDiscount sets the order-level discount from an amount or a
// percent of the subtotal after line discounts.
func (m *Manager) SetOrderDiscount(ctx context.Context, sessionID string, amountCents *int64, percent *float64) (*domain.Cart, error) {
	cart, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	base := discountedSubtotal(cart)
	amount, err := resolveDiscount(amountCents, percent, base)
	if err != nil {
		return nil, err
	}
	cart.OrderDiscountCents = pricing.ClampOrderDiscount(amount, base)
	return cart, m.save(ctx, cart)
}

// Clear drops the session's cart entirely.
func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", store.ErrInvalidSale)
	}
	if err := m.sessions.DeleteCart(ctx, sessionID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (m *Manager) save(ctx context.Context, cart *domain.Cart) error {
	cart.UpdatedAt = time.Now().UTC()
	if err := m.sessions.SetCart(ctx, cart, m.ttl); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func resolveDiscount(amountCents *int64, percent *float64, baseCents int64) (int64, error) {
	switch {
	case amountCents != nil:
		if *amountCents < 0 {
			return 0, fmt.Errorf("%w: discount cannot be negative", store.ErrInvalidSale)
		}
		return *amountCents, nil
	case percent != nil:
		return pricing.AmountFromPercent(*percent, baseCents), nil
	default:
		return 0, fmt.Errorf("%w: discount amount or percent is required", store.ErrInvalidSale)
	}
}

func lineIndex(cart *domain.Cart, productID string) int {
	for i := range cart.Lines {
		if cart.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func discountedSubtotal(cart *domain.Cart) int64 {
	var total int64
	for _, line := range cart.Lines {
		lineTotal := line.UnitPriceCents * int64(line.Quantity)
		total += lineTotal - pricing.ClampLineDiscount(line.DiscountCents, lineTotal)
	}
	return total
}
