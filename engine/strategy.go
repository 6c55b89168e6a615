package engine

import (
	"sort"

	"goldclose/logger"
	"goldclose/relation"
)

// StrategyKind category a strategy belongs to. The evaluator keys two
// rules off it: which candidates must contain a losing member, and which
// profit floor applies.
type StrategyKind string

const (
	KindEdge       StrategyKind = "edge"
	KindProfitRank StrategyKind = "profit_rank"
	KindBalance    StrategyKind = "balance"
	KindRecovery   StrategyKind = "recovery"
	KindEmergency  StrategyKind = "emergency"
)

// CycleContext everything one decision cycle works from. Built once per
// Decide call and discarded with it.
type CycleContext struct {
	Snapshot *PortfolioSnapshot
	Health   HealthReport
	Params   DynamicParams
	Scores   map[int64]PositionScore
	Rel      *relation.Store
	Cfg      Config
}

// valid returns the scoreable positions, sorted by ticket for determinism
func (ctx *CycleContext) valid() []PositionRecord {
	out := make([]PositionRecord, 0, len(ctx.Snapshot.Positions))
	for _, p := range ctx.Snapshot.Positions {
		if p.Valid() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out
}

// Strategy proposes close batches of a given size. Implementations are
// pure: same cycle context and size, same candidate.
type Strategy interface {
	Name() string
	Kind() StrategyKind
	Priority() float64
	// SizeRange bounds the batch sizes this strategy proposes; the
	// selector additionally caps the upper bound by the cycle's dynamic
	// maximum.
	SizeRange(p DynamicParams) (int, int)
	// Generate builds the candidate of the given size, or reports that
	// the strategy has nothing to propose this cycle.
	Generate(ctx *CycleContext, size int) (CandidateSet, bool)
}

// DefaultStrategies the standard generator family in registration order
func DefaultStrategies(cfg Config) []Strategy {
	return []Strategy{
		&emergencyStrategy{},
		&pairCompletionStrategy{},
		&problemClearStrategy{},
		&balanceStrategy{},
		&edgeStrategy{mode: edgeMixed},
		&edgeStrategy{mode: edgeHigh},
		&edgeStrategy{mode: edgeLow},
		&profitRankStrategy{},
	}
}

// newCandidate assembles a candidate with its aggregate profit and cost
func newCandidate(s Strategy, ctx *CycleContext, members []PositionRecord) CandidateSet {
	c := CandidateSet{
		Strategy:  s.Name(),
		Kind:      s.Kind(),
		Priority:  s.Priority(),
		Positions: members,
	}
	var lots float64
	for _, p := range members {
		c.GrossProfit += p.Profit
		lots += p.Lots
	}
	c.Cost = ctx.Cfg.ClosingCost(lots, len(members))
	return c
}

// ----------------------------------------------------------------------
// profit ranking
// ----------------------------------------------------------------------

// profitRankStrategy takes the best payers outright. The only strategy
// allowed to close a single position.
type profitRankStrategy struct{}

func (s *profitRankStrategy) Name() string { return "profit_rank" }
func (s *profitRankStrategy) Kind() StrategyKind { return KindProfitRank }
func (s *profitRankStrategy) Priority() float64 { return 1.2 }
func (s *profitRankStrategy) SizeRange(p DynamicParams) (int, int) { return 1, p.MaxBatch }

func (s *profitRankStrategy) Generate(ctx *CycleContext, size int) (CandidateSet, bool) {
	var winners []PositionRecord
	for _, p := range ctx.valid() {
		if p.Profit > 0 {
			winners = append(winners, p)
		}
	}
	if len(winners) < size {
		return CandidateSet{}, false
	}
	sort.Slice(winners, func(i, j int) bool {
		if winners[i].Profit != winners[j].Profit {
			return winners[i].Profit > winners[j].Profit
		}
		return winners[i].Ticket < winners[j].Ticket
	})
	return newCandidate(s, ctx, winners[:size]), true
}

// ----------------------------------------------------------------------
// edge selection
// ----------------------------------------------------------------------

type edgeMode int

const (
	edgeHigh edgeMode = iota
	edgeLow
	edgeMixed
)

// edgeStrategy closes the most price-extreme positions, keeping direction
// counts balanced when it can
type edgeStrategy struct {
	mode edgeMode
}

func (s *edgeStrategy) Name() string {
	switch s.mode {
	case edgeHigh:
		return "edge_high"
	case edgeLow:
		return "edge_low"
	default:
		return "edge_mixed"
	}
}

func (s *edgeStrategy) Kind() StrategyKind { return KindEdge }

func (s *edgeStrategy) Priority() float64 {
	switch s.mode {
	case edgeHigh:
		return 1.4
	case edgeLow:
		return 1.3
	default:
		return 1.45
	}
}

func (s *edgeStrategy) SizeRange(p DynamicParams) (int, int) { return 2, p.MaxBatch }

func (s *edgeStrategy) Generate(ctx *CycleContext, size int) (CandidateSet, bool) {
	positions := ctx.valid()
	if len(positions) < size {
		return CandidateSet{}, false
	}

	ordered := append([]PositionRecord(nil), positions...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].OpenPrice != ordered[j].OpenPrice {
			return ordered[i].OpenPrice > ordered[j].OpenPrice
		}
		return ordered[i].Ticket < ordered[j].Ticket
	})

	var pool []PositionRecord
	switch s.mode {
	case edgeHigh:
		pool = ordered
	case edgeLow:
		pool = reversed(ordered)
	default:
		// alternate from both price extremes inward
		lo, hi := 0, len(ordered)-1
		for lo <= hi {
			pool = append(pool, ordered[hi])
			if lo != hi {
				pool = append(pool, ordered[lo])
			}
			lo++
			hi--
		}
	}

	if members, ok := balancedPick(pool, size); ok {
		return newCandidate(s, ctx, members), true
	}

	// balance not achievable from this pool; degrade to best-scored
	logger.Debugf("%s: direction balance unachievable for size %d, falling back to score ranking", s.Name(), size)
	byScore := append([]PositionRecord(nil), positions...)
	sort.Slice(byScore, func(i, j int) bool {
		si := ctx.Scores[byScore[i].Ticket].Composite
		sj := ctx.Scores[byScore[j].Ticket].Composite
		if si != sj {
			return si > sj
		}
		return byScore[i].Ticket < byScore[j].Ticket
	})
	return newCandidate(s, ctx, byScore[:size]), true
}

// balancedPick takes the first size positions from the pool while keeping
// long/short counts within one of each other; fails if the pool cannot
// support that split
func balancedPick(pool []PositionRecord, size int) ([]PositionRecord, bool) {
	if size <= 0 || len(pool) < size {
		return nil, false
	}
	targetLong := size / 2
	targetShort := size / 2
	if size%2 == 1 {
		// the most extreme position's side gets the odd slot
		if pool[0].Direction == Long {
			targetLong++
		} else {
			targetShort++
		}
	}

	var members []PositionRecord
	longs, shorts := 0, 0
	for _, p := range pool {
		switch p.Direction {
		case Long:
			if longs < targetLong {
				members = append(members, p)
				longs++
			}
		case Short:
			if shorts < targetShort {
				members = append(members, p)
				shorts++
			}
		}
		if len(members) == size {
			return members, true
		}
	}
	return nil, false
}

func reversed(in []PositionRecord) []PositionRecord {
	out := make([]PositionRecord, len(in))
	for i, p := range in {
		out[len(in)-1-i] = p
	}
	return out
}

// ----------------------------------------------------------------------
// balance correction
// ----------------------------------------------------------------------

// balanceStrategy trims the over-represented direction when exposure
// imbalance passes the threshold. Exempt from the losing-member rule:
// fixing a lopsided book is worth doing with pure winners.
type balanceStrategy struct{}

func (s *balanceStrategy) Name() string { return "balance_correction" }
func (s *balanceStrategy) Kind() StrategyKind { return KindBalance }
func (s *balanceStrategy) Priority() float64 { return 1.6 }
func (s *balanceStrategy) SizeRange(p DynamicParams) (int, int) { return 2, p.MaxBatch }

func (s *balanceStrategy) Generate(ctx *CycleContext, size int) (CandidateSet, bool) {
	if ctx.Health.Imbalance <= ctx.Cfg.ImbalanceThreshold {
		return CandidateSet{}, false
	}

	var majority []PositionRecord
	for _, p := range ctx.valid() {
		if p.Direction == ctx.Health.Majority {
			majority = append(majority, p)
		}
	}
	if len(majority) < size {
		return CandidateSet{}, false
	}

	sort.Slice(majority, func(i, j int) bool {
		si := ctx.Scores[majority[i].Ticket].Composite
		sj := ctx.Scores[majority[j].Ticket].Composite
		if si != sj {
			return si > sj
		}
		return majority[i].Ticket < majority[j].Ticket
	})
	return newCandidate(s, ctx, majority[:size]), true
}

// ----------------------------------------------------------------------
// relationship aware
// ----------------------------------------------------------------------

// pairCompletionStrategy closes an active drag-recovery pair whose
// combined profit has turned positive
type pairCompletionStrategy struct{}

func (s *pairCompletionStrategy) Name() string { return "pair_completion" }
func (s *pairCompletionStrategy) Kind() StrategyKind { return KindRecovery }
func (s *pairCompletionStrategy) Priority() float64 { return 2.0 }
func (s *pairCompletionStrategy) SizeRange(p DynamicParams) (int, int) { return 2, 2 }

func (s *pairCompletionStrategy) Generate(ctx *CycleContext, size int) (CandidateSet, bool) {
	if ctx.Rel == nil || size != 2 {
		return CandidateSet{}, false
	}

	var best []PositionRecord
	bestProfit := 0.0
	for _, pair := range ctx.Rel.ActivePairs() {
		primary, ok1 := ctx.Snapshot.Position(pair.PrimaryTicket)
		recovery, ok2 := ctx.Snapshot.Position(pair.RecoveryTicket)
		if !ok1 || !ok2 || !primary.Valid() || !recovery.Valid() {
			continue
		}
		combined := primary.Profit + recovery.Profit
		if combined > bestProfit {
			bestProfit = combined
			best = []PositionRecord{primary, recovery}
		}
	}
	if best == nil {
		return CandidateSet{}, false
	}
	return newCandidate(s, ctx, best), true
}

// problemClearStrategy pairs the worst problem position with the helpers
// most compatible with absorbing its loss
type problemClearStrategy struct{}

func (s *problemClearStrategy) Name() string { return "problem_clear" }
func (s *problemClearStrategy) Kind() StrategyKind { return KindRecovery }
func (s *problemClearStrategy) Priority() float64 { return 1.8 }
func (s *problemClearStrategy) SizeRange(p DynamicParams) (int, int) { return 2, p.MaxBatch }

func (s *problemClearStrategy) Generate(ctx *CycleContext, size int) (CandidateSet, bool) {
	positions := ctx.valid()

	var problem *PositionRecord
	for i := range positions {
		p := positions[i]
		if Classify(p, ctx.Rel, ctx.Cfg) != PurposeProblem {
			continue
		}
		if problem == nil || p.Profit < problem.Profit {
			problem = &positions[i]
		}
	}
	if problem == nil {
		return CandidateSet{}, false
	}

	now := ctx.Snapshot.At()
	var helpers []PositionRecord
	for _, p := range positions {
		if p.Ticket != problem.Ticket && p.Profit > 0 {
			helpers = append(helpers, p)
		}
	}
	if len(helpers) < size-1 {
		return CandidateSet{}, false
	}
	sort.Slice(helpers, func(i, j int) bool {
		ci := ScorePair(*problem, helpers[i], now).Total
		cj := ScorePair(*problem, helpers[j], now).Total
		if ci != cj {
			return ci > cj
		}
		return helpers[i].Ticket < helpers[j].Ticket
	})

	members := append([]PositionRecord{*problem}, helpers[:size-1]...)
	return newCandidate(s, ctx, members), true
}

// ----------------------------------------------------------------------
// emergency
// ----------------------------------------------------------------------

// emergencyStrategy frees margin when the account is in trouble: biggest
// lots first, worst losses breaking ties. Allowed to realize losses.
type emergencyStrategy struct{}

func (s *emergencyStrategy) Name() string { return "emergency_relief" }
func (s *emergencyStrategy) Kind() StrategyKind { return KindEmergency }
func (s *emergencyStrategy) Priority() float64 { return 2.5 }
func (s *emergencyStrategy) SizeRange(p DynamicParams) (int, int) { return 2, p.MaxBatch }

func (s *emergencyStrategy) Generate(ctx *CycleContext, size int) (CandidateSet, bool) {
	if !ctx.Health.Emergency {
		return CandidateSet{}, false
	}
	positions := ctx.valid()
	if len(positions) < size {
		return CandidateSet{}, false
	}
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].Lots != positions[j].Lots {
			return positions[i].Lots > positions[j].Lots
		}
		if positions[i].Profit != positions[j].Profit {
			return positions[i].Profit < positions[j].Profit
		}
		return positions[i].Ticket < positions[j].Ticket
	})
	return newCandidate(s, ctx, positions[:size]), true
}
