package cart

import (
	"context"
	"errors"
	"testing"

	"retailpos/backend/internal/cache"
	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/store"
)

func newTestManager() *Manager {
	return NewManager(cache.NewMemorySessionCache())
}

func sampleProduct() domain.Product {
	return domain.Product{
		ID:         "prod-1",
		Barcode:    "8991002100012",
		Name:       "Instant Noodles",
		PriceCents: 350,
		CostCents:  200,
	}
}

func TestAddItemMergesQuantity(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.AddItem(ctx, "reg-1", sampleProduct(), 2); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	cart, err := m.AddItem(ctx, "reg-1", sampleProduct(), 3)
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if len(cart.Lines) != 1 {
		t.Fatalf("expected one merged line, got %d", len(cart.Lines))
	}
	if cart.Lines[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", cart.Lines[0].Quantity)
	}
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	m := newTestManager()

	_, err := m.AddItem(context.Background(), "reg-1", sampleProduct(), 0)
	if !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected ErrInvalidSale, got %v", err)
	}
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.AddItem(ctx, "reg-1", sampleProduct(), 2); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	cart, err := m.SetQuantity(ctx, "reg-1", "prod-1", 0)
	if err != nil {
		t.Fatalf("set quantity failed: %v", err)
	}
	if len(cart.Lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(cart.Lines))
	}
}

func TestSetQuantityNegativeRemovesLine(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.AddItem(ctx, "reg-1", sampleProduct(), 2); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	cart, err := m.SetQuantity(ctx, "reg-1", "prod-1", -3)
	if err != nil {
		t.Fatalf("set quantity failed: %v", err)
	}
	if len(cart.Lines) != 0 {
		t.Fatalf("expected line removed, got %d lines", len(cart.Lines))
	}
}

func TestSetQuantityReclampsDiscount(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.AddItem(ctx, "reg-1", sampleProduct(), 4); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	amount := int64(1000)
	if _, err := m.SetLineDiscount(ctx, "reg-1", "prod-1", &amount, nil); err != nil {
		t.Fatalf("set discount failed: %v", err)
	}
	cart, err := m.SetQuantity(ctx, "reg-1", "prod-1", 1)
	if err != nil {
		t.Fatalf("set quantity failed: %v", err)
	}
	if cart.Lines[0].DiscountCents != 350 {
		t.Fatalf("expected discount reclamped to 350, got %d", cart.Lines[0].DiscountCents)
	}
}

func TestSetLineDiscountFromPercent(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.AddItem(ctx, "reg-1", sampleProduct(), 2); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	percent := 10.0
	cart, err := m.SetLineDiscount(ctx, "reg-1", "prod-1", nil, &percent)
	if err != nil {
		t.Fatalf("set discount failed: %v", err)
	}
	// 10% of 700
	if cart.Lines[0].DiscountCents != 70 {
		t.Fatalf("expected discount 70, got %d", cart.Lines[0].DiscountCents)
	}
}

func TestSetLineDiscountUnknownProduct(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.AddItem(ctx, "reg-1", sampleProduct(), 1); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	amount := int64(50)
	_, err := m.SetLineDiscount(ctx, "reg-1", "missing", &amount, nil)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetOrderDiscountClampedToDiscountedSubtotal(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.AddItem(ctx, "reg-1", sampleProduct(), 2); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	lineDiscount := int64(100)
	if _, err := m.SetLineDiscount(ctx, "reg-1", "prod-1", &lineDiscount, nil); err != nil {
		t.Fatalf("set line discount failed: %v", err)
	}
	amount := int64(99999)
	cart, err := m.SetOrderDiscount(ctx, "reg-1", &amount, nil)
	if err != nil {
		t.Fatalf("set order discount failed: %v", err)
	}
	// subtotal 700 minus line discount 100
	if cart.OrderDiscountCents != 600 {
		t.Fatalf("expected order discount clamped to 600, got %d", cart.OrderDiscountCents)
	}
}

func TestDiscountRequiresAmountOrPercent(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.AddItem(ctx, "reg-1", sampleProduct(), 1); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	_, err := m.SetOrderDiscount(ctx, "reg-1", nil, nil)
	if !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected ErrInvalidSale, got %v", err)
	}
}

func TestClearDropsCart(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.AddItem(ctx, "reg-1", sampleProduct(), 1); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if err := m.Clear(ctx, "reg-1"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	cart, err := m.Get(ctx, "reg-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(cart.Lines) != 0 || cart.OrderDiscountCents != 0 {
		t.Fatalf("expected empty cart after clear, got %+v", cart)
	}
}
