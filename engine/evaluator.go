package engine

import (
	"fmt"

	"goldclose/relation"
)

// Evaluator applies the rejection rules and ranks the survivors. It is
// the layer that actually enforces relationship protection; the store
// only answers queries.
type Evaluator struct {
	cfg Config
	rel *relation.Store
}

// NewEvaluator builds an evaluator bound to the relationship registry
func NewEvaluator(cfg Config, rel *relation.Store) *Evaluator {
	return &Evaluator{cfg: cfg, rel: rel}
}

// Evaluate checks a candidate against every rejection rule and, if it
// survives, scores it for ranking. The reject reason is for debug logs
// only; a rejected candidate is a filtered branch, not an error.
func (e *Evaluator) Evaluate(cand CandidateSet, ctx *CycleContext) (EvaluatedCandidate, bool, string) {
	if reason := e.reject(cand, ctx); reason != "" {
		return EvaluatedCandidate{}, false, reason
	}
	return EvaluatedCandidate{
		Candidate: cand,
		Score:     e.score(cand, ctx),
	}, true, ""
}

func (e *Evaluator) reject(cand CandidateSet, ctx *CycleContext) string {
	n := len(cand.Positions)
	if n == 0 {
		return "empty candidate"
	}
	// single-position closes are the profit-rank strategy's explicit
	// business; every combination strategy needs at least two members
	if n < e.cfg.MinBatch && cand.Kind != KindProfitRank {
		return fmt.Sprintf("too few members: %d", n)
	}
	if n > ctx.Params.MaxBatch {
		return fmt.Sprintf("batch size %d exceeds cycle limit %d", n, ctx.Params.MaxBatch)
	}

	net := cand.NetProfit()
	minNet := ctx.Params.MinNetProfit + ctx.Params.SafetyBuffer
	if cand.Kind == KindEmergency {
		minNet = -e.cfg.EmergencyMaxLoss
	}
	if net < minNet && net < -e.cfg.AllowedLoss {
		return fmt.Sprintf("net profit %.2f below minimum %.2f", net, minNet)
	}

	if reason := e.rejectRelationship(cand); reason != "" {
		return reason
	}

	// the losing-member rule: a generic profit-taking combination that
	// relieves no losses is uninteresting. Balance, emergency, recovery
	// and single-ticket profit taking are exempt.
	if cand.Kind == KindEdge {
		hasLoser := false
		for _, p := range cand.Positions {
			if p.Profit < 0 {
				hasLoser = true
				break
			}
		}
		if !hasLoser {
			return "no losing member in profit-taking combination"
		}
	}

	// degenerate lot guard against stale snapshot data
	var totalLots float64
	for _, p := range cand.Positions {
		if p.Lots < e.cfg.MinLot {
			return fmt.Sprintf("lot %.4f below instrument minimum", p.Lots)
		}
		totalLots += p.Lots
	}
	avgLot := totalLots / float64(n)
	for _, p := range cand.Positions {
		if p.Lots > avgLot*e.cfg.LotSpreadLimit {
			return fmt.Sprintf("lot %.2f dwarfs batch average %.2f", p.Lots, avgLot)
		}
	}
	return ""
}

// rejectRelationship enforces pair atomicity, group atomicity and the
// opposite-side requirement for special-purpose balance positions
func (e *Evaluator) rejectRelationship(cand CandidateSet) string {
	if e.rel == nil {
		return ""
	}

	for _, p := range cand.Positions {
		if pair, ok := e.rel.ActivePairFor(p.Ticket); ok {
			if !cand.Contains(pair.Other(p.Ticket)) {
				return fmt.Sprintf("splits active pair %s", pair.Key())
			}
		}

		if group, ok := e.rel.GroupFor(p.Ticket); ok {
			for _, member := range group.Tickets {
				if !cand.Contains(member) {
					return fmt.Sprintf("splits active group %s", group.ID)
				}
			}
		}

		if purpose, ok := e.rel.BalancePurpose(p.Ticket); ok {
			if purpose == relation.PurposeForceCounter || purpose == relation.PurposeZoneDefense {
				hasOpposite := false
				for _, other := range cand.Positions {
					if other.Ticket != p.Ticket && other.Direction == p.Direction.Opposite() {
						hasOpposite = true
						break
					}
				}
				if !hasOpposite {
					return fmt.Sprintf("%s position %d needs an opposite-direction member", purpose, p.Ticket)
				}
			}
		}
	}
	return ""
}

// score ranks a valid candidate. Only relative order matters; the terms
// reward realized profit, completed relationships, balance repair, book
// shrinkage and loss relief, then account risk and market timing scale
// the whole thing.
func (e *Evaluator) score(cand CandidateSet, ctx *CycleContext) float64 {
	score := cand.NetProfit() * 10

	score += cand.Priority * 20 * ctx.Params.PriorityMultiplier

	score += float64(e.pairsCompleted(cand)) * 25

	score += e.balanceImprovement(cand, ctx) * 8

	score += float64(len(cand.Positions)) * 5

	// loss clearing, capped per member and sloped gently so that a
	// shrinking loss never outweighs the profit gained
	for _, p := range cand.Positions {
		if p.Profit < 0 {
			bonus := -p.Profit * 5
			if bonus > 15 {
				bonus = 15
			}
			score += bonus
		}
	}

	score += float64(uniqueLots(cand.Positions)) * 3

	now := ctx.Snapshot.At()
	for _, p := range cand.Positions {
		age := p.AgeHours(now) / 24
		if age > 3 {
			age = 3
		}
		score += age * 2
	}

	return score * ctx.Health.RiskFactor() * ctx.Snapshot.Market.TimingFactor()
}

// pairsCompleted counts active pairs fully contained in the candidate
func (e *Evaluator) pairsCompleted(cand CandidateSet) int {
	if e.rel == nil {
		return 0
	}
	count := 0
	for _, pair := range e.rel.ActivePairs() {
		if cand.Contains(pair.PrimaryTicket) && cand.Contains(pair.RecoveryTicket) {
			count++
		}
	}
	return count
}

// balanceImprovement reduction in |long - short| position count
func (e *Evaluator) balanceImprovement(cand CandidateSet, ctx *CycleContext) float64 {
	closeLong, closeShort := 0, 0
	for _, p := range cand.Positions {
		if p.Direction == Long {
			closeLong++
		} else {
			closeShort++
		}
	}
	before := ctx.Health.LongCount - ctx.Health.ShortCount
	after := (ctx.Health.LongCount - closeLong) - (ctx.Health.ShortCount - closeShort)
	delta := abs(before) - abs(after)
	if delta < 0 {
		return 0
	}
	return float64(delta)
}

func uniqueLots(positions []PositionRecord) int {
	seen := make(map[float64]bool, len(positions))
	for _, p := range positions {
		seen[p.Lots] = true
	}
	return len(seen)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
