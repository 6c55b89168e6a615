package engine

import (
	"fmt"
	"math"
	"time"
)

// weightTolerance how far the weight sum may drift from 1.0
const weightTolerance = 0.001

// Weights the scoring weight vector. Immutable by convention: the offline
// tuner produces a fresh snapshot with a bumped version and the host swaps
// the whole value; the engine never mutates it.
type Weights struct {
	Profitability  float64 `json:"profitability"`
	HoldingTime    float64 `json:"holding_time"`
	Distance       float64 `json:"distance"`
	BalanceImpact  float64 `json:"balance_impact"`
	MarketContext  float64 `json:"market_context"`
	RiskManagement float64 `json:"risk_management"`

	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// DefaultWeights starting vector before any tuning has happened
func DefaultWeights() Weights {
	return Weights{
		Profitability:  0.30,
		HoldingTime:    0.15,
		Distance:       0.15,
		BalanceImpact:  0.15,
		MarketContext:  0.10,
		RiskManagement: 0.15,
		Version:        1,
	}
}

// Sum total of all factor weights
func (w Weights) Sum() float64 {
	return w.Profitability + w.HoldingTime + w.Distance +
		w.BalanceImpact + w.MarketContext + w.RiskManagement
}

// Validate checks every factor is in [0,1] and the vector sums to 1
func (w Weights) Validate() error {
	for name, v := range w.factors() {
		if v < 0 || v > 1 {
			return fmt.Errorf("weight %s out of range: %.4f", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// Normalized returns a copy scaled so the factors sum to exactly 1.
// A zero vector normalizes to the defaults.
func (w Weights) Normalized() Weights {
	sum := w.Sum()
	if sum <= 0 {
		d := DefaultWeights()
		d.Version = w.Version
		d.UpdatedAt = w.UpdatedAt
		return d
	}
	w.Profitability /= sum
	w.HoldingTime /= sum
	w.Distance /= sum
	w.BalanceImpact /= sum
	w.MarketContext /= sum
	w.RiskManagement /= sum
	return w
}

func (w Weights) factors() map[string]float64 {
	return map[string]float64{
		"profitability":   w.Profitability,
		"holding_time":    w.HoldingTime,
		"distance":        w.Distance,
		"balance_impact":  w.BalanceImpact,
		"market_context":  w.MarketContext,
		"risk_management": w.RiskManagement,
	}
}
