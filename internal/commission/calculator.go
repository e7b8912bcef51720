// Package commission computes the platform's cut of a settlement. The rate
// table is injected, so plan pricing changes never touch call sites.
package commission

import (
	"math"

	"github.com/altave/settlement-service/internal/model"
)

type LineItem struct {
	UnitPrice float64
	Quantity  int
}

type Totals struct {
	TotalAmount   float64
	CommissionFee float64
	NetPayout     float64
}

type Calculator struct {
	rates map[model.SellerPlan]float64
}

func NewCalculator(rates map[model.SellerPlan]float64) *Calculator {
	tbl := make(map[model.SellerPlan]float64, len(rates))
	for plan, rate := range rates {
		tbl[plan] = rate
	}
	return &Calculator{rates: tbl}
}

// Compute is deterministic and side-effect free. The fee is rounded to cents;
// the net payout is total minus fee, floored at zero. Sellers on an unknown
// plan are charged the free rate.
func (c *Calculator) Compute(items []LineItem, plan model.SellerPlan) Totals {
	var total float64
	for _, it := range items {
		total += it.UnitPrice * float64(it.Quantity)
	}

	rate, ok := c.rates[plan]
	if !ok {
		rate = c.rates[model.PlanFree]
	}

	fee := roundCents(total * rate)
	net := total - fee
	if net < 0 {
		net = 0
	}
	return Totals{TotalAmount: total, CommissionFee: fee, NetPayout: net}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
