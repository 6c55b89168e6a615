package engine

import (
	"sort"

	"goldclose/logger"
)

// Selector drives the strategies in priority order under a hard
// evaluation budget. Work per cycle is bounded by the budget no matter
// how large the portfolio grows.
type Selector struct {
	cfg        Config
	strategies []Strategy
	evaluator  *Evaluator
}

// NewSelector builds a selector over the given strategy family
func NewSelector(cfg Config, strategies []Strategy, evaluator *Evaluator) *Selector {
	return &Selector{cfg: cfg, strategies: strategies, evaluator: evaluator}
}

// Budget the maximum candidate evaluations per cycle
func (s *Selector) Budget() int {
	return s.cfg.BudgetPerStrategy * len(s.strategies)
}

// Select runs every strategy size by size, keeps the best valid candidate
// and stops early on excellent results. A nil return means no viable
// close exists this cycle, which is a normal outcome.
func (s *Selector) Select(ctx *CycleContext) (*EvaluatedCandidate, int) {
	ordered := append([]Strategy(nil), s.strategies...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() > ordered[j].Priority()
	})

	budget := s.Budget()
	evaluated := 0
	var best *EvaluatedCandidate

	for _, strat := range ordered {
		minSize, maxSize := strat.SizeRange(ctx.Params)
		if maxSize > ctx.Params.MaxBatch {
			maxSize = ctx.Params.MaxBatch
		}

		for size := minSize; size <= maxSize; size++ {
			if budget <= 0 {
				logger.Debugf("selector: evaluation budget exhausted after %d candidates", evaluated)
				return best, evaluated
			}

			cand, ok := strat.Generate(ctx, size)
			if !ok {
				continue
			}

			budget--
			evaluated++
			result, valid, reason := s.evaluator.Evaluate(cand, ctx)
			if !valid {
				logger.Debugf("selector: %s size %d rejected: %s", strat.Name(), size, reason)
				continue
			}

			if best == nil || result.Score > best.Score {
				r := result
				best = &r
			}
			if result.Score >= s.cfg.ExcellentScore {
				break
			}
		}

		if best != nil && best.Score >= s.cfg.GoodScore {
			break
		}
	}
	return best, evaluated
}
