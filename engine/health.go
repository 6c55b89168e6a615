package engine

import (
	"goldclose/market"
)

// RiskLevel account risk tier derived from margin level
type RiskLevel string

const (
	RiskEmergency RiskLevel = "EMERGENCY"
	RiskCritical  RiskLevel = "CRITICAL"
	RiskHigh      RiskLevel = "HIGH"
	RiskMedium    RiskLevel = "MEDIUM"
	RiskLow       RiskLevel = "LOW"
	RiskSafe      RiskLevel = "SAFE"
)

// HealthReport portfolio-wide state computed once per cycle
type HealthReport struct {
	PositionCount int     `json:"position_count"`
	TotalProfit   float64 `json:"total_profit"`
	TotalLots     float64 `json:"total_lots"`
	AvgLot        float64 `json:"avg_lot"`

	LongCount  int     `json:"long_count"`
	ShortCount int     `json:"short_count"`
	LongLots   float64 `json:"long_lots"`
	ShortLots  float64 `json:"short_lots"`

	// Imbalance is |long - short| lots over total lots, in [0, 1]
	Imbalance float64   `json:"imbalance"`
	Majority  Direction `json:"majority"`

	MarginLevel  float64   `json:"margin_level"`
	RiskLevel    RiskLevel `json:"risk_level"`
	Emergency    bool      `json:"emergency"`
	ProblemCount int       `json:"problem_count"`
}

// AssessHealth summarizes the snapshot for strategy and parameter decisions
func AssessHealth(snap *PortfolioSnapshot, cfg Config) HealthReport {
	h := HealthReport{Majority: Long}
	if snap == nil {
		h.RiskLevel = RiskSafe
		return h
	}

	for _, p := range snap.Positions {
		h.PositionCount++
		h.TotalProfit += p.Profit
		if p.Lots > 0 {
			h.TotalLots += p.Lots
		}
		switch p.Direction {
		case Long:
			h.LongCount++
			h.LongLots += p.Lots
		case Short:
			h.ShortCount++
			h.ShortLots += p.Lots
		}
		if p.Profit <= cfg.ProblemLoss {
			h.ProblemCount++
		}
	}
	if h.PositionCount > 0 {
		h.AvgLot = h.TotalLots / float64(h.PositionCount)
	}
	if h.TotalLots > 0 {
		diff := h.LongLots - h.ShortLots
		if diff < 0 {
			diff = -diff
			h.Majority = Short
		}
		h.Imbalance = diff / h.TotalLots
	}

	h.MarginLevel = snap.Account.MarginLevel
	h.RiskLevel = riskLevelFor(h.MarginLevel, cfg)
	h.Emergency = h.RiskLevel == RiskEmergency ||
		(snap.Account.Balance > 0 && snap.Account.Equity < snap.Account.Balance*0.8) ||
		h.PositionCount > cfg.PositionCountCap
	return h
}

// riskLevelFor maps margin level to a tier. Zero margin level means no
// margin in use, which is the safest state there is.
func riskLevelFor(marginLevel float64, cfg Config) RiskLevel {
	switch {
	case marginLevel <= 0:
		return RiskSafe
	case marginLevel < cfg.MarginEmergency:
		return RiskEmergency
	case marginLevel < cfg.MarginCritical:
		return RiskCritical
	case marginLevel < cfg.MarginHigh:
		return RiskHigh
	case marginLevel < cfg.MarginMedium:
		return RiskMedium
	case marginLevel < cfg.MarginSafe:
		return RiskLow
	default:
		return RiskSafe
	}
}

// RiskFactor score multiplier: worse account risk makes closing relatively
// more attractive across all candidates
func (h HealthReport) RiskFactor() float64 {
	switch h.RiskLevel {
	case RiskEmergency:
		return 1.3
	case RiskCritical:
		return 1.2
	case RiskHigh:
		return 1.1
	case RiskMedium:
		return 1.05
	default:
		return 1.0
	}
}

// DynamicParams per-cycle limits derived from portfolio health
type DynamicParams struct {
	MaxBatch           int     `json:"max_batch"`
	MinNetProfit       float64 `json:"min_net_profit"`
	SafetyBuffer       float64 `json:"safety_buffer"` // USD added to cost estimates
	PriorityMultiplier float64 `json:"priority_multiplier"`
}

// DeriveParams computes the cycle's close limits. Margin pressure widens
// the batch and lowers (eventually inverts) the profit floor; calm
// conditions demand well-paid closes only.
func DeriveParams(h HealthReport, ctx market.Context, cfg Config) DynamicParams {
	p := DynamicParams{
		MaxBatch:           cfg.MaxBatch,
		MinNetProfit:       cfg.MinNetProfit + 2.0,
		SafetyBuffer:       2.0,
		PriorityMultiplier: 1.0,
	}

	switch h.RiskLevel {
	case RiskEmergency:
		p.MaxBatch = minInt(h.PositionCount, cfg.MaxBatch*2)
		p.MinNetProfit = -cfg.EmergencyMaxLoss
		p.SafetyBuffer = 0.5
		p.PriorityMultiplier = 2.0
	case RiskCritical:
		p.MaxBatch = minInt(h.PositionCount, cfg.MaxBatch*3/2)
		p.MinNetProfit = 0
		p.SafetyBuffer = 1.0
		p.PriorityMultiplier = 1.5
	case RiskHigh:
		p.MinNetProfit = cfg.MinNetProfit
		p.SafetyBuffer = 1.5
	case RiskMedium:
		p.MinNetProfit = cfg.MinNetProfit + 1.0
		p.SafetyBuffer = 1.5
	}

	if h.Imbalance > cfg.ImbalanceSevere && h.RiskLevel != RiskEmergency && h.RiskLevel != RiskCritical {
		p.MaxBatch = minInt(h.PositionCount, cfg.MaxBatch+2)
		if p.PriorityMultiplier < 1.3 {
			p.PriorityMultiplier = 1.3
		}
	}

	// volatile markets close smaller and more carefully, quiet ones allow more
	if ctx.Valid() {
		if ctx.Volatility > 0.8 {
			p.MaxBatch = int(float64(p.MaxBatch) * 0.8)
			p.SafetyBuffer *= 1.2
		} else if ctx.Volatility < 0.3 {
			p.MaxBatch = int(float64(p.MaxBatch) * 1.2)
			p.SafetyBuffer *= 0.9
		}
	}

	if p.MaxBatch < cfg.MinBatch {
		p.MaxBatch = cfg.MinBatch
	}
	return p
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
