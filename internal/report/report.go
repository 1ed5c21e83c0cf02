// Package report builds sales projections for the dashboard: the daily
// revenue/profit series, category breakdown, top sellers, and headline
// stats. Everything is computed in memory from the ledger rows.
package report

import (
	"sort"
	"time"

	"retailpos/backend/internal/domain"
)

const DefaultTopN = 5

// Build aggregates completed sales between from and to inclusive.
// Refunded sales are skipped regardless of what the caller passes in.
func Build(sales []domain.Sale, from time.Time, to time.Time, topN int) domain.SalesReport {
	if topN <= 0 {
		topN = DefaultTopN
	}

	rep := domain.SalesReport{
		From: from.Format("2006-01-02"),
		To:   to.Format("2006-01-02"),
	}

	// The series carries one bucket per calendar day in range, zero-sale
	// days included, so chart consumers never have to fill gaps.
	dayIdx := make(map[string]int)
	if !from.IsZero() && !to.Before(from) {
		for d := startOfDay(from); !d.After(to); d = d.AddDate(0, 0, 1) {
			key := d.Format("2006-01-02")
			dayIdx[key] = len(rep.Daily)
			rep.Daily = append(rep.Daily, domain.DailyPoint{Date: key})
		}
	}

	categoryQty := make(map[string]int)
	type productAgg struct {
		barcode  string
		name     string
		quantity int
		revenue  int64
	}
	products := make(map[string]*productAgg)
	var productOrder []string

	for _, sale := range sales {
		if sale.Status == domain.SaleStatusRefunded {
			continue
		}
		day := sale.CreatedAt.Format("2006-01-02")
		i, ok := dayIdx[day]
		if !ok {
			i = len(rep.Daily)
			dayIdx[day] = i
			rep.Daily = append(rep.Daily, domain.DailyPoint{Date: day})
		}
		rep.Daily[i].RevenueCents += sale.TotalCents
		rep.Daily[i].ProfitCents += sale.ProfitCents
		rep.Daily[i].Orders++

		rep.Stats.RevenueCents += sale.TotalCents
		rep.Stats.ProfitCents += sale.ProfitCents
		rep.Stats.Orders++

		for _, line := range sale.Lines {
			categoryQty[line.Category] += line.Quantity
			rep.Stats.ItemsSold += line.Quantity

			agg, ok := products[line.ProductID]
			if !ok {
				agg = &productAgg{barcode: line.Barcode, name: line.Name}
				products[line.ProductID] = agg
				productOrder = append(productOrder, line.ProductID)
			}
			agg.quantity += line.Quantity
			// Revenue here is the pre-discount line total so rankings
			// are not skewed by one-off markdowns.
			agg.revenue += line.UnitPriceCents * int64(line.Quantity)
		}
	}

	if rep.Stats.Orders > 0 {
		rep.Stats.AverageOrderCents = rep.Stats.RevenueCents / int64(rep.Stats.Orders)
	}

	sort.Slice(rep.Daily, func(i, j int) bool { return rep.Daily[i].Date < rep.Daily[j].Date })

	for category, qty := range categoryQty {
		rep.Categories = append(rep.Categories, domain.CategorySlice{Category: category, Quantity: qty})
	}
	sort.Slice(rep.Categories, func(i, j int) bool {
		if rep.Categories[i].Quantity != rep.Categories[j].Quantity {
			return rep.Categories[i].Quantity > rep.Categories[j].Quantity
		}
		return rep.Categories[i].Category < rep.Categories[j].Category
	})

	// Ranked by quantity; ties keep first-seen order.
	top := make([]domain.TopProduct, 0, len(productOrder))
	for _, id := range productOrder {
		agg := products[id]
		top = append(top, domain.TopProduct{
			Barcode:      agg.barcode,
			Name:         agg.name,
			Quantity:     agg.quantity,
			RevenueCents: agg.revenue,
		})
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Quantity > top[j].Quantity
	})
	if len(top) > topN {
		top = top[:topN]
	}
	rep.TopProducts = top

	return rep
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
