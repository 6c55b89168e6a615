// Package tuner adjusts scoring weights offline from realized close
// outcomes. It never touches a live engine: each run reads history,
// produces a fresh validated weight snapshot with a bumped version, and
// the host decides when to swap it in.
package tuner

import (
	"time"

	"goldclose/engine"
	"goldclose/logger"
	"goldclose/store"
)

// MinSamples outcomes required before any adjustment happens
const MinSamples = 10

// Tuner nudges the weight vector toward whatever has been predicting
// profitable closes
type Tuner struct {
	store *store.Store
	rate  float64
}

// New builds a tuner over the outcome history
func New(st *store.Store) *Tuner {
	return &Tuner{store: st, rate: 0.05}
}

// AdjustSince reads outcomes closed since the given time and produces the
// next weight snapshot. With too little history the input is returned
// unchanged.
func (t *Tuner) AdjustSince(current engine.Weights, since time.Time) (engine.Weights, error) {
	outcomes, err := t.store.Outcome().ListSince(since)
	if err != nil {
		return current, err
	}
	return t.Adjust(current, outcomes), nil
}

// Adjust derives the next weight snapshot from a batch of outcomes
func (t *Tuner) Adjust(current engine.Weights, outcomes []*store.CloseOutcome) engine.Weights {
	if len(outcomes) < MinSamples {
		return current
	}

	wins := 0
	var winHold, lossHold float64
	winHoldN, lossHoldN := 0, 0
	for _, o := range outcomes {
		if o.Profit > 0 {
			wins++
			winHold += o.HoldHours
			winHoldN++
		} else {
			lossHold += o.HoldHours
			lossHoldN++
		}
	}
	winRate := float64(wins) / float64(len(outcomes))

	next := current
	switch {
	case winRate >= 0.6:
		// the profit signal is working; lean into it
		next.Profitability += t.rate
		next.RiskManagement -= t.rate / 2
		next.BalanceImpact -= t.rate / 2
	case winRate <= 0.4:
		// closes keep realizing losses; weigh safety higher
		next.Profitability -= t.rate
		next.RiskManagement += t.rate / 2
		next.BalanceImpact += t.rate / 2
	}

	if winHoldN > 0 && lossHoldN > 0 {
		avgWin := winHold / float64(winHoldN)
		avgLoss := lossHold / float64(lossHoldN)
		if avgWin < avgLoss {
			// winners close young here; reward acting on time pressure
			next.HoldingTime += t.rate / 2
			next.Distance -= t.rate / 2
		}
	}

	next = clampFactors(next).Normalized()
	next.Version = current.Version + 1
	next.UpdatedAt = time.Now().UTC()

	logger.Infof("✅ Weights v%d from %d outcomes (win rate %.0f%%)", next.Version, len(outcomes), winRate*100)
	return next
}

// clampFactors keeps every factor inside [0.05, 0.45] so one run can
// never zero out or dominate the vector
func clampFactors(w engine.Weights) engine.Weights {
	clamp := func(v float64) float64 {
		if v < 0.05 {
			return 0.05
		}
		if v > 0.45 {
			return 0.45
		}
		return v
	}
	w.Profitability = clamp(w.Profitability)
	w.HoldingTime = clamp(w.HoldingTime)
	w.Distance = clamp(w.Distance)
	w.BalanceImpact = clamp(w.BalanceImpact)
	w.MarketContext = clamp(w.MarketContext)
	w.RiskManagement = clamp(w.RiskManagement)
	return w
}
