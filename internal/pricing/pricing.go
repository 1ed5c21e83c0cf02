// Package pricing holds the checkout arithmetic. Everything is integer
// cents; the only floating point is percent conversion at the edges.
package pricing

import (
	"math"

	"retailpos/backend/internal/domain"
)

// Calculate computes cart totals. Line discounts are clamped to their
// line total and the order discount to what remains after them, so the
// result is always internally consistent even if stored discounts have
// drifted from the lines they were set against.
//
// The recorded subtotal is the pre-discount figure and the recorded
// discount is the sum of line and order discounts; total reconciles as
// subtotal - discount + tax. Profit never goes below zero.
func Calculate(lines []domain.CartLine, orderDiscountCents int64, taxRateBP int64) domain.CartTotals {
	var totals domain.CartTotals
	var costCents int64
	for _, line := range lines {
		lineTotal := line.UnitPriceCents * int64(line.Quantity)
		lineDiscount := ClampLineDiscount(line.DiscountCents, lineTotal)
		totals.SubtotalCents += lineTotal
		totals.LineDiscountCents += lineDiscount
		totals.ItemCount += line.Quantity
		costCents += line.UnitCostCents * int64(line.Quantity)
	}
	totals.DiscountedSubtotalCents = totals.SubtotalCents - totals.LineDiscountCents
	totals.OrderDiscountCents = ClampOrderDiscount(orderDiscountCents, totals.DiscountedSubtotalCents)
	// Tax applies to the line-discounted subtotal; the order discount
	// comes off the total afterwards and does not shrink the tax base.
	totals.TaxCents = TaxOn(totals.DiscountedSubtotalCents, taxRateBP)
	totals.TotalCents = totals.DiscountedSubtotalCents - totals.OrderDiscountCents + totals.TaxCents
	totals.EffectiveDiscountCents = totals.LineDiscountCents + totals.OrderDiscountCents

	profit := totals.SubtotalCents - totals.LineDiscountCents - costCents - totals.OrderDiscountCents
	if profit < 0 {
		profit = 0
	}
	totals.ProfitCents = profit
	totals.OrderDiscountPercent = PercentFromAmount(totals.OrderDiscountCents, totals.DiscountedSubtotalCents)
	return totals
}

// TaxOn applies a basis-point rate to a cents amount, rounding half up.
func TaxOn(baseCents int64, rateBP int64) int64 {
	if baseCents <= 0 || rateBP <= 0 {
		return 0
	}
	return int64(math.Round(float64(baseCents) * float64(rateBP) / 10000))
}

func ClampLineDiscount(discountCents int64, lineTotalCents int64) int64 {
	if discountCents < 0 {
		return 0
	}
	if discountCents > lineTotalCents {
		return lineTotalCents
	}
	return discountCents
}

func ClampOrderDiscount(discountCents int64, discountedSubtotalCents int64) int64 {
	if discountCents < 0 {
		return 0
	}
	if discountCents > discountedSubtotalCents {
		return discountedSubtotalCents
	}
	return discountCents
}

// AmountFromPercent converts a percent input against a base amount into
// cents, rounding half up. Percent is clamped to [0, 100] first.
func AmountFromPercent(percent float64, baseCents int64) int64 {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if baseCents <= 0 {
		return 0
	}
	return int64(math.Round(float64(baseCents) * percent / 100))
}

// PercentFromAmount derives a display percent from the stored amount.
func PercentFromAmount(amountCents int64, baseCents int64) float64 {
	if baseCents <= 0 || amountCents <= 0 {
		return 0
	}
	return math.Round(float64(amountCents)/float64(baseCents)*10000) / 100
}
