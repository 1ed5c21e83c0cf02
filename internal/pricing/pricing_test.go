package pricing

import (
	"testing"

	"retailpos/backend/internal/domain"
)

func TestCalculateBasicTotals(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: "p1", UnitPriceCents: 1500, UnitCostCents: 900, Quantity: 2},
		{ProductID: "p2", UnitPriceCents: 500, UnitCostCents: 300, Quantity: 1, DiscountCents: 100},
	}

	totals := Calculate(lines, 0, 1000)

	if totals.SubtotalCents != 3500 {
		t.Fatalf("expected subtotal 3500, got %d", totals.SubtotalCents)
	}
	if totals.LineDiscountCents != 100 {
		t.Fatalf("expected line discount 100, got %d", totals.LineDiscountCents)
	}
	// tax on 3400 at 10% = 340
	if totals.TaxCents != 340 {
		t.Fatalf("expected tax 340, got %d", totals.TaxCents)
	}
	if totals.TotalCents != 3740 {
		t.Fatalf("expected total 3740, got %d", totals.TotalCents)
	}
	// profit = (3000-0-1800) + (500-100-300) = 1300
	if totals.ProfitCents != 1300 {
		t.Fatalf("expected profit 1300, got %d", totals.ProfitCents)
	}
	if totals.ItemCount != 3 {
		t.Fatalf("expected item count 3, got %d", totals.ItemCount)
	}
}

func TestCalculateOrderDiscountAfterLineDiscounts(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: "p1", UnitPriceCents: 1000, UnitCostCents: 400, Quantity: 2, DiscountCents: 500},
	}

	totals := Calculate(lines, 300, 0)

	if totals.DiscountedSubtotalCents != 1500 {
		t.Fatalf("expected discounted subtotal 1500, got %d", totals.DiscountedSubtotalCents)
	}
	if totals.OrderDiscountCents != 300 {
		t.Fatalf("expected order discount 300, got %d", totals.OrderDiscountCents)
	}
	if totals.TotalCents != 1200 {
		t.Fatalf("expected total 1200, got %d", totals.TotalCents)
	}
	if totals.EffectiveDiscountCents != 800 {
		t.Fatalf("expected effective discount 800, got %d", totals.EffectiveDiscountCents)
	}
	if totals.SubtotalCents-totals.EffectiveDiscountCents+totals.TaxCents != totals.TotalCents {
		t.Fatalf("totals do not reconcile: %+v", totals)
	}
}

func TestOrderDiscountDoesNotShrinkTaxBase(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: "p1", UnitPriceCents: 10000, UnitCostCents: 6000, Quantity: 1},
	}

	totals := Calculate(lines, 1000, 1000)

	// Tax is 10% of the full 10000; the order discount only reduces
	// what the customer pays.
	if totals.TaxCents != 1000 {
		t.Fatalf("expected tax 1000, got %d", totals.TaxCents)
	}
	if totals.TotalCents != 10000 {
		t.Fatalf("expected total 10000, got %d", totals.TotalCents)
	}
	if totals.SubtotalCents-totals.EffectiveDiscountCents+totals.TaxCents != totals.TotalCents {
		t.Fatalf("totals do not reconcile: %+v", totals)
	}
}

func TestCalculateClampsExcessDiscounts(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: "p1", UnitPriceCents: 1000, UnitCostCents: 600, Quantity: 1, DiscountCents: 5000},
	}

	totals := Calculate(lines, 9999, 1100)

	if totals.LineDiscountCents != 1000 {
		t.Fatalf("expected line discount clamped to 1000, got %d", totals.LineDiscountCents)
	}
	if totals.OrderDiscountCents != 0 {
		t.Fatalf("expected order discount clamped to 0, got %d", totals.OrderDiscountCents)
	}
	if totals.TotalCents != 0 {
		t.Fatalf("expected total 0, got %d", totals.TotalCents)
	}
}

func TestCalculateProfitFloorsAtZero(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: "p1", UnitPriceCents: 1000, UnitCostCents: 950, Quantity: 1},
	}

	totals := Calculate(lines, 200, 0)

	if totals.ProfitCents != 0 {
		t.Fatalf("expected profit floored at 0, got %d", totals.ProfitCents)
	}
}

func TestCalculateNegativeDiscountIgnored(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: "p1", UnitPriceCents: 1000, UnitCostCents: 500, Quantity: 1, DiscountCents: -200},
	}

	totals := Calculate(lines, -50, 0)

	if totals.LineDiscountCents != 0 || totals.OrderDiscountCents != 0 {
		t.Fatalf("expected negative discounts ignored, got %+v", totals)
	}
	if totals.TotalCents != 1000 {
		t.Fatalf("expected total 1000, got %d", totals.TotalCents)
	}
}

func TestTaxRounding(t *testing.T) {
	// 11% of 1005 = 110.55, rounds to 111
	if got := TaxOn(1005, 1100); got != 111 {
		t.Fatalf("expected tax 111, got %d", got)
	}
	if got := TaxOn(0, 1100); got != 0 {
		t.Fatalf("expected zero tax on zero base, got %d", got)
	}
	if got := TaxOn(1000, 0); got != 0 {
		t.Fatalf("expected zero tax at zero rate, got %d", got)
	}
}

func TestAmountFromPercent(t *testing.T) {
	if got := AmountFromPercent(10, 1550); got != 155 {
		t.Fatalf("expected 155, got %d", got)
	}
	// 12.5% of 999 = 124.875, rounds to 125
	if got := AmountFromPercent(12.5, 999); got != 125 {
		t.Fatalf("expected 125, got %d", got)
	}
	if got := AmountFromPercent(150, 1000); got != 1000 {
		t.Fatalf("expected clamp at 100%%, got %d", got)
	}
	if got := AmountFromPercent(-5, 1000); got != 0 {
		t.Fatalf("expected clamp at 0%%, got %d", got)
	}
}

func TestPercentFromAmount(t *testing.T) {
	if got := PercentFromAmount(250, 1000); got != 25 {
		t.Fatalf("expected 25, got %v", got)
	}
	if got := PercentFromAmount(333, 1000); got != 33.3 {
		t.Fatalf("expected 33.3, got %v", got)
	}
	if got := PercentFromAmount(100, 0); got != 0 {
		t.Fatalf("expected 0 on zero base, got %v", got)
	}
}
