package engine

import (
	"time"

	"goldclose/market"
)

// Scorer computes multi-factor position scores. It is a total function:
// garbage input earns neutral sub-scores, never an error, because the
// decision cycle has to keep running on partial data.
type Scorer struct {
	weights Weights
	cfg     Config
}

// NewScorer builds a scorer after validating the weight vector
func NewScorer(w Weights, cfg Config) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w, cfg: cfg}, nil
}

// Score rates one position against the current portfolio and market state
func (s *Scorer) Score(pos PositionRecord, snap *PortfolioSnapshot, health HealthReport) PositionScore {
	score := PositionScore{
		Ticket:         pos.Ticket,
		Profitability:  50,
		HoldingTime:    50,
		Distance:       50,
		BalanceImpact:  50,
		MarketContext:  50,
		RiskManagement: 50,
	}

	if pos.Valid() && snap != nil {
		ctx := snap.Market
		score.Profitability = s.scoreProfitability(pos, ctx)
		score.HoldingTime = s.scoreHoldingTime(pos, snap.At(), ctx)
		score.Distance = s.scoreDistance(pos, ctx)
		score.BalanceImpact = s.scoreBalanceImpact(pos, snap.Account)
		score.MarketContext = s.scoreMarketContext(pos, ctx)
		score.RiskManagement = s.scoreRiskManagement(pos, health)
	}

	w := s.weights
	score.Composite = clamp(
		score.Profitability*w.Profitability+
			score.HoldingTime*w.HoldingTime+
			score.Distance*w.Distance+
			score.BalanceImpact*w.BalanceImpact+
			score.MarketContext*w.MarketContext+
			score.RiskManagement*w.RiskManagement,
		0, 100)

	closeNow, closeLater := s.AdjustedThresholds(pos, snap)
	switch {
	case score.Composite >= closeNow:
		score.Recommendation = CloseNow
	case score.Composite >= closeLater:
		score.Recommendation = CloseLater
	default:
		score.Recommendation = Hold
	}
	return score
}

// ScoreAll scores every position in the snapshot
func (s *Scorer) ScoreAll(snap *PortfolioSnapshot, health HealthReport) map[int64]PositionScore {
	scores := make(map[int64]PositionScore)
	if snap == nil {
		return scores
	}
	for _, pos := range snap.Positions {
		scores[pos.Ticket] = s.Score(pos, snap, health)
	}
	return scores
}

// AdjustedThresholds returns the close-now / close-later thresholds after
// the dynamic shift: calm markets soften the trigger, volatile markets and
// already-profitable positions harden it. The shift is clamped so tuning
// drift can never disable the ladder.
func (s *Scorer) AdjustedThresholds(pos PositionRecord, snap *PortfolioSnapshot) (float64, float64) {
	shift := 0.0
	if snap != nil && snap.Market.Valid() {
		if snap.Market.Volatility < 0.3 {
			shift -= 5
		} else if snap.Market.Volatility > 0.7 {
			shift += 5
		}
	}
	if pos.Profit > 0 {
		shift += 5
	}
	shift = clamp(shift, -s.cfg.MaxThresholdShift, s.cfg.MaxThresholdShift)

	closeNow := clamp(s.cfg.CloseNowThreshold+shift, 50, 95)
	closeLater := clamp(s.cfg.CloseLaterThreshold+shift, 35, closeNow-5)
	return closeNow, closeLater
}

// scoreProfitability maps net profit per lot through a piecewise-linear
// curve: steeper above zero, halved slope on losses, floored at a 100
// USD/lot drawdown. Volatility pushes the result toward the extremes.
func (s *Scorer) scoreProfitability(pos PositionRecord, ctx market.Context) float64 {
	perLot := pos.Profit/pos.Lots - s.cfg.CostPerLot()

	var raw float64
	switch {
	case perLot >= 50:
		raw = 100
	case perLot >= 0:
		raw = 50 + perLot
	case perLot > -100:
		raw = 50 + perLot*0.5
	default:
		raw = 0
	}

	if ctx.Valid() {
		factor := 1 + (ctx.Volatility-0.5)*0.4
		raw = 50 + (raw-50)*factor
	}
	return clamp(raw, 0, 100)
}

// scoreHoldingTime grows with holding duration; liquid sessions favor
// closing and push the score up
func (s *Scorer) scoreHoldingTime(pos PositionRecord, now time.Time, ctx market.Context) float64 {
	hours := pos.AgeHours(now)
	raw := 10 + hours*(90.0/24.0) // a full day reaches the top
	if raw > 100 {
		raw = 100
	}

	switch ctx.Session {
	case market.SessionLondon, market.SessionNewYork:
		raw *= 1.1
	case market.SessionQuiet:
		raw *= 0.9
	}
	return clamp(raw, 0, 100)
}

// scoreDistance grows with how far price has moved from the entry,
// adjusted for trend strength and volatility
func (s *Scorer) scoreDistance(pos PositionRecord, ctx market.Context) float64 {
	dist := pos.CurrentPrice - pos.OpenPrice
	if dist < 0 {
		dist = -dist
	}
	raw := dist * 5 // a 20 USD gold move saturates
	if raw > 100 {
		raw = 100
	}

	if ctx.Valid() {
		raw *= 1 + (ctx.Volatility-0.5)*0.2 + ctx.TrendStrength*0.1
	}
	return clamp(raw, 0, 100)
}

// scoreBalanceImpact rates profit relative to account size
func (s *Scorer) scoreBalanceImpact(pos PositionRecord, acct AccountState) float64 {
	if acct.Balance <= 0 {
		return 50
	}
	pct := pos.Profit / acct.Balance * 100
	return clamp(50+pct*10, 0, 100)
}

// scoreMarketContext rates how strongly current conditions argue for
// closing this particular position
func (s *Scorer) scoreMarketContext(pos PositionRecord, ctx market.Context) float64 {
	if !ctx.Valid() {
		return 50
	}
	raw := 50.0

	// positions fighting the trend should go first
	aligned := (pos.Direction == Long && ctx.TrendDirection == "up") ||
		(pos.Direction == Short && ctx.TrendDirection == "down")
	against := (pos.Direction == Long && ctx.TrendDirection == "down") ||
		(pos.Direction == Short && ctx.TrendDirection == "up")
	if aligned {
		raw -= 20 * ctx.TrendStrength
	} else if against {
		raw += 20 * ctx.TrendStrength
	}

	if ctx.Volatility >= 0.7 {
		raw += 10
	} else if ctx.Volatility <= 0.3 {
		raw -= 10
	}

	switch ctx.Session {
	case market.SessionLondon, market.SessionNewYork:
		raw += 5
	case market.SessionQuiet:
		raw -= 5
	}

	switch ctx.News {
	case market.NewsHigh:
		raw += 10
	case market.NewsMedium:
		raw += 5
	}
	return clamp(raw, 0, 100)
}

// scoreRiskManagement rates closing urgency from account pressure and
// exposure crowding. Large gains add urgency too: a win not taken is
// risk. Loss-side urgency lives in the evaluator's loss-clearing term so
// this score stays monotone in profit.
func (s *Scorer) scoreRiskManagement(pos PositionRecord, health HealthReport) float64 {
	var raw float64
	switch health.RiskLevel {
	case RiskEmergency:
		raw = 100
	case RiskCritical:
		raw = 85
	case RiskHigh:
		raw = 70
	case RiskMedium:
		raw = 55
	case RiskLow:
		raw = 40
	default:
		raw = 25
	}

	if health.Imbalance > s.cfg.ImbalanceThreshold && pos.Direction == health.Majority {
		raw += 15
	}

	if pos.Profit >= s.cfg.ProfitTakeThreshold*3 {
		raw += 15
	} else if pos.Profit >= s.cfg.ProfitTakeThreshold {
		raw += 8
	}
	return clamp(raw, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
