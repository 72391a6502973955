// Package trading provides trading calculation utilities.
package trading

import (
	"math"

	"github.com/shopspring/decimal"
)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// ResolveQuantity sizes a buy as floor(cash × risk / price), in whole shares.
// Non-positive inputs size to zero.
func ResolveQuantity(cash, risk, price float64) float64 {
	if cash <= 0 || risk <= 0 || price <= 0 {
		return 0
	}
	budget := decFromFloat(cash).Mul(decFromFloat(risk))
	qty := budget.Div(decFromFloat(price)).Floor()
	if qty.Sign() <= 0 {
		return 0
	}
	return decToFloat(qty)
}

// WeightedAverageCost blends an existing position with a new fill.
func WeightedAverageCost(oldQty, oldAvg, addQty, addPrice float64) float64 {
	if oldQty <= 0 {
		return addPrice
	}
	if addQty <= 0 {
		return oldAvg
	}
	oldCost := decFromFloat(oldQty).Mul(decFromFloat(oldAvg))
	addCost := decFromFloat(addQty).Mul(decFromFloat(addPrice))
	total := decFromFloat(oldQty).Add(decFromFloat(addQty))
	if total.Sign() == 0 {
		return 0
	}
	return decToFloat(oldCost.Add(addCost).Div(total))
}

// Cost returns qty × price without float drift.
func Cost(qty, price float64) float64 {
	return decToFloat(decFromFloat(qty).Mul(decFromFloat(price)))
}

// ProfitLoss returns (exit - avgCost) × qty.
func ProfitLoss(exit, avgCost, qty float64) float64 {
	return decToFloat(decFromFloat(exit).Sub(decFromFloat(avgCost)).Mul(decFromFloat(qty)))
}
