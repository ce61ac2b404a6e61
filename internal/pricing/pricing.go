// Package pricing scales recorded order prices when an order fulfils a
// negotiated total.
package pricing

import (
	"github.com/shopspring/decimal"

	"omnistock/backend/internal/domain"
)

// Line is the monetary view of one resolved order line.
type Line struct {
	UnitPriceCents int64
	Quantity       int
}

// Ratio returns negotiatedTotal / sum(unit*qty). An empty or zero sum yields
// one so that prices pass through unchanged.
func Ratio(negotiatedTotalCents int64, lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(decimal.NewFromInt(line.UnitPriceCents).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	if sum.IsZero() {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(negotiatedTotalCents).Div(sum)
}

// NegotiatedRatio returns negotiated / original as agreed on a negotiation.
// A non-positive original yields one.
func NegotiatedRatio(negotiatedTotalCents int64, originalTotalCents int64) decimal.Decimal {
	if originalTotalCents <= 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(negotiatedTotalCents).Div(decimal.NewFromInt(originalTotalCents))
}

// Scale applies ratio to a unit price and returns the adjusted unit price and
// line total, both rounded half away from zero to whole cents.
func Scale(unitPriceCents int64, quantity int, ratio decimal.Decimal) (unitCents int64, totalCents int64) {
	unit := decimal.NewFromInt(unitPriceCents).Mul(ratio)
	total := unit.Mul(decimal.NewFromInt(int64(quantity)))
	return unit.Round(0).IntPart(), total.Round(0).IntPart()
}

// UnitPrices derives the per-unit price of each requested negotiation line
// from its line total. Lines with a non-positive quantity keep a zero price.
func UnitPrices(items []domain.NegotiationItemInput) []domain.NegotiationLine {
	out := make([]domain.NegotiationLine, 0, len(items))
	for _, item := range items {
		line := domain.NegotiationLine{
			Name:     item.Name,
			Brand:    item.Brand,
			Quantity: item.Quantity,
		}
		if item.Quantity > 0 {
			line.UnitPriceCents = decimal.NewFromInt(item.TotalCents).
				Div(decimal.NewFromInt(int64(item.Quantity))).
				Round(0).
				IntPart()
		}
		out = append(out, line)
	}
	return out
}

// Float converts a ratio for JSON responses.
func Float(ratio decimal.Decimal) float64 {
	f, _ := ratio.Float64()
	return f
}
