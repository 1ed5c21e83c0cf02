package report

import (
	"testing"
	"time"

	"retailpos/backend/internal/domain"
)

func day(d int, hour int) time.Time {
	return time.Date(2026, time.February, d, hour, 0, 0, 0, time.UTC)
}

func sampleSales() []domain.Sale {
	return []domain.Sale{
		{
			ID: "s1", OrderID: "010220260001", Status: domain.SaleStatusCompleted,
			TotalCents: 5000, ProfitCents: 1500, CreatedAt: day(1, 9),
			Lines: []domain.SaleLine{
				{ProductID: "p1", Barcode: "111", Name: "Coffee", Category: "beverage", UnitPriceCents: 2500, Quantity: 2},
			},
		},
		{
			ID: "s2", OrderID: "010220260002", Status: domain.SaleStatusCompleted,
			TotalCents: 3000, ProfitCents: 900, CreatedAt: day(1, 15),
			Lines: []domain.SaleLine{
				{ProductID: "p2", Barcode: "222", Name: "Bread", Category: "bakery", UnitPriceCents: 1500, Quantity: 2},
				{ProductID: "p1", Barcode: "111", Name: "Coffee", Category: "beverage", UnitPriceCents: 2500, Quantity: 1},
			},
		},
		{
			ID: "s3", OrderID: "020220260001", Status: domain.SaleStatusRefunded,
			TotalCents: 9999, ProfitCents: 9999, CreatedAt: day(2, 10),
			Lines: []domain.SaleLine{
				{ProductID: "p3", Barcode: "333", Name: "Soap", Category: "household", UnitPriceCents: 9999, Quantity: 1},
			},
		},
		{
			ID: "s4", OrderID: "020220260002", Status: domain.SaleStatusCompleted,
			TotalCents: 2000, ProfitCents: 600, CreatedAt: day(2, 11),
			Lines: []domain.SaleLine{
				{ProductID: "p2", Barcode: "222", Name: "Bread", Category: "bakery", UnitPriceCents: 1500, Quantity: 1},
			},
		},
	}
}

func TestBuildDailySeries(t *testing.T) {
	rep := Build(sampleSales(), day(1, 0), day(4, 23), 5)

	// One bucket per calendar day in range, zero-sale days included.
	if len(rep.Daily) != 4 {
		t.Fatalf("expected 4 daily points, got %d", len(rep.Daily))
	}
	first := rep.Daily[0]
	if first.Date != "2026-02-01" || first.RevenueCents != 8000 || first.ProfitCents != 2400 || first.Orders != 2 {
		t.Fatalf("unexpected first day: %+v", first)
	}
	second := rep.Daily[1]
	if second.Date != "2026-02-02" || second.RevenueCents != 2000 || second.Orders != 1 {
		t.Fatalf("unexpected second day: %+v", second)
	}
	for _, empty := range rep.Daily[2:] {
		if empty.RevenueCents != 0 || empty.ProfitCents != 0 || empty.Orders != 0 {
			t.Fatalf("expected zero bucket for quiet day: %+v", empty)
		}
	}
	if rep.Daily[2].Date != "2026-02-03" || rep.Daily[3].Date != "2026-02-04" {
		t.Fatalf("quiet days mislabelled: %+v", rep.Daily[2:])
	}
}

func TestBuildExcludesRefundedSales(t *testing.T) {
	rep := Build(sampleSales(), day(1, 0), day(2, 23), 5)

	if rep.Stats.RevenueCents != 10000 {
		t.Fatalf("expected revenue 10000 without refunded sale, got %d", rep.Stats.RevenueCents)
	}
	for _, slice := range rep.Categories {
		if slice.Category == "household" {
			t.Fatalf("refunded sale leaked into categories: %+v", rep.Categories)
		}
	}
}

func TestBuildCategoryBreakdownSorted(t *testing.T) {
	rep := Build(sampleSales(), day(1, 0), day(2, 23), 5)

	if len(rep.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(rep.Categories))
	}
	// Quantities tie at 3, so the order falls back to the category name.
	if rep.Categories[0].Category != "bakery" || rep.Categories[0].Quantity != 3 {
		t.Fatalf("unexpected top category: %+v", rep.Categories[0])
	}
	if rep.Categories[1].Category != "beverage" || rep.Categories[1].Quantity != 3 {
		t.Fatalf("unexpected second category: %+v", rep.Categories[1])
	}
}

func TestBuildTopProductsPreDiscountRevenue(t *testing.T) {
	rep := Build(sampleSales(), day(1, 0), day(2, 23), 1)

	if len(rep.TopProducts) != 1 {
		t.Fatalf("expected top list truncated to 1, got %d", len(rep.TopProducts))
	}
	top := rep.TopProducts[0]
	// Coffee: qty 3, revenue 3*2500; Bread: qty 3, revenue 3*1500.
	// The quantity tie keeps first-seen order, and Coffee sold first.
	if top.Name != "Coffee" || top.Quantity != 3 || top.RevenueCents != 7500 {
		t.Fatalf("unexpected top product: %+v", top)
	}
}

func TestBuildStats(t *testing.T) {
	rep := Build(sampleSales(), day(1, 0), day(2, 23), 5)

	if rep.Stats.Orders != 3 {
		t.Fatalf("expected 3 orders, got %d", rep.Stats.Orders)
	}
	if rep.Stats.AverageOrderCents != 3333 {
		t.Fatalf("expected average 3333, got %d", rep.Stats.AverageOrderCents)
	}
	if rep.Stats.ItemsSold != 6 {
		t.Fatalf("expected 6 items sold, got %d", rep.Stats.ItemsSold)
	}
}

func TestBuildEmptyRange(t *testing.T) {
	rep := Build(nil, day(1, 0), day(2, 23), 5)

	if rep.Stats.AverageOrderCents != 0 {
		t.Fatalf("expected zero average on empty range, got %d", rep.Stats.AverageOrderCents)
	}
	if len(rep.Daily) != 2 {
		t.Fatalf("expected zero buckets for both days, got %+v", rep.Daily)
	}
	for _, point := range rep.Daily {
		if point.RevenueCents != 0 || point.Orders != 0 {
			t.Fatalf("expected empty bucket, got %+v", point)
		}
	}
	if len(rep.Categories) != 0 || len(rep.TopProducts) != 0 {
		t.Fatalf("expected no categories or top products, got %+v", rep)
	}
}
