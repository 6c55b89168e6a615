package engine

import (
	"errors"
	"fmt"
	"sync"

	"goldclose/logger"
	"goldclose/relation"
)

// Engine the closing decision engine. Decide calls are serialized by
// the caller, one per cycle; the weight snapshot is the only field
// mutated after construction and is guarded so status endpoints can
// read it while the loop swaps in a tuned one.
type Engine struct {
	cfg        Config
	evaluator  *Evaluator
	selector   *Selector
	strategies []Strategy
	rel        *relation.Store

	mu      sync.RWMutex
	weights Weights
	scorer  *Scorer
}

// New builds an engine. Collaborator wiring failures are the only errors
// this package ever returns; everything after construction degrades
// instead of failing.
func New(cfg Config, weights Weights, rel *relation.Store) (*Engine, error) {
	if rel == nil {
		return nil, errors.New("engine: relationship store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid config: %w", err)
	}

	scorer, err := NewScorer(weights, cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: invalid weights: %w", err)
	}

	e := &Engine{
		cfg:        cfg,
		weights:    weights,
		scorer:     scorer,
		rel:        rel,
		strategies: DefaultStrategies(cfg),
	}
	e.evaluator = NewEvaluator(cfg, rel)
	e.selector = NewSelector(cfg, e.strategies, e.evaluator)
	return e, nil
}

// SetWeights swaps in a new weight snapshot, typically after the offline
// tuner publishes one. Refreshed at most once per cycle by the host.
func (e *Engine) SetWeights(w Weights) error {
	scorer, err := NewScorer(w, e.cfg)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.weights = w
	e.scorer = scorer
	e.mu.Unlock()
	return nil
}

// Weights returns the weight snapshot currently in use
func (e *Engine) Weights() Weights {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weights
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Decide runs one full decision cycle over the snapshot. It never fails:
// bad input degrades to a hold decision with the reason attached.
func (e *Engine) Decide(snap *PortfolioSnapshot) ClosingDecision {
	if snap == nil || len(snap.Positions) == 0 {
		return ClosingDecision{
			ShouldClose: false,
			Reason:      "no open positions",
			GeneratedAt: snap.At(),
		}
	}
	now := snap.At()

	e.mu.RLock()
	scorer := e.scorer
	e.mu.RUnlock()

	health := AssessHealth(snap, e.cfg)
	params := DeriveParams(health, snap.Market, e.cfg)
	scores := scorer.ScoreAll(snap, health)

	ctx := &CycleContext{
		Snapshot: snap,
		Health:   health,
		Params:   params,
		Scores:   scores,
		Rel:      e.rel,
		Cfg:      e.cfg,
	}

	best, evaluated := e.selector.Select(ctx)
	if best == nil {
		logger.Debugf("engine: no viable close among %d candidates (risk %s, %d positions)",
			evaluated, health.RiskLevel, health.PositionCount)
		return ClosingDecision{
			ShouldClose: false,
			Reason:      fmt.Sprintf("no viable close combination (%d candidates evaluated)", evaluated),
			Evaluated:   evaluated,
			GeneratedAt: now,
		}
	}

	cand := best.Candidate
	decision := ClosingDecision{
		ShouldClose: true,
		Tickets:     cand.Tickets(),
		Method:      fmt.Sprintf("%s_%d", cand.Strategy, len(cand.Positions)),
		ExpectedPnL: cand.NetProfit(),
		Confidence:  e.confidence(best, snap),
		Reason:      e.reason(best, health),
		Score:       best.Score,
		Evaluated:   evaluated,
		GeneratedAt: now,
	}

	logger.Infof("✅ Close decision: %s → %d tickets, expected %.2f USD (score %.0f, confidence %.0f%%)",
		decision.Method, len(decision.Tickets), decision.ExpectedPnL, decision.Score, decision.Confidence)
	return decision
}

// confidence maps the winning score and market timing into [10, 95]
func (e *Engine) confidence(best *EvaluatedCandidate, snap *PortfolioSnapshot) float64 {
	conf := 60 + (best.Score-e.cfg.GoodScore)/10 + snap.Market.ConfidenceBonus()
	return clamp(conf, 10, 95)
}

func (e *Engine) reason(best *EvaluatedCandidate, health HealthReport) string {
	cand := best.Candidate
	losers := 0
	for _, p := range cand.Positions {
		if p.Profit < 0 {
			losers++
		}
	}
	return fmt.Sprintf("%s closes %d positions (%d losing), net %.2f USD after costs, account risk %s",
		cand.Strategy, len(cand.Positions), losers, cand.NetProfit(), health.RiskLevel)
}
