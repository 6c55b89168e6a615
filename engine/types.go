// Package engine implements the position closing decision engine: given a
// portfolio snapshot and the relationship registry, it scores every open
// position, generates candidate close batches through a set of prioritized
// strategies, evaluates them under a hard budget and returns the single best
// closing decision for this cycle.
package engine

import (
	"sort"
	"time"

	"goldclose/market"
)

// Direction side of a position
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Opposite returns the other side
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

// Valid reports whether the direction is a known side
func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// PositionRecord immutable snapshot of one open broker position
type PositionRecord struct {
	Ticket       int64     `json:"ticket"`
	Direction    Direction `json:"direction"`
	Lots         float64   `json:"lots"`
	OpenPrice    float64   `json:"open_price"`
	CurrentPrice float64   `json:"current_price"`
	Profit       float64   `json:"profit"`
	OpenedAt     time.Time `json:"opened_at"`
	Comment      string    `json:"comment,omitempty"`
}

// Valid reports whether the record carries enough data to score properly
func (p PositionRecord) Valid() bool {
	return p.Ticket > 0 && p.Direction.Valid() && p.Lots > 0 &&
		p.OpenPrice > 0 && p.CurrentPrice > 0
}

// AgeHours holding duration at the given time
func (p PositionRecord) AgeHours(now time.Time) float64 {
	if p.OpenedAt.IsZero() || now.Before(p.OpenedAt) {
		return 0
	}
	return now.Sub(p.OpenedAt).Hours()
}

// AccountState read-only account metrics
type AccountState struct {
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	Margin      float64 `json:"margin"`
	FreeMargin  float64 `json:"free_margin"`
	MarginLevel float64 `json:"margin_level"` // percent; 0 means no margin in use
}

// PortfolioSnapshot one cycle's full input, created fresh by the host loop
type PortfolioSnapshot struct {
	Positions []PositionRecord `json:"positions"`
	Account   AccountState     `json:"account"`
	Market    market.Context   `json:"market"`
	Time      time.Time        `json:"time"`
}

// At returns the snapshot time, defaulting to now for ad-hoc snapshots
func (s *PortfolioSnapshot) At() time.Time {
	if s == nil || s.Time.IsZero() {
		return time.Now().UTC()
	}
	return s.Time
}

// Position finds a position by ticket
func (s *PortfolioSnapshot) Position(ticket int64) (PositionRecord, bool) {
	if s == nil {
		return PositionRecord{}, false
	}
	for _, p := range s.Positions {
		if p.Ticket == ticket {
			return p, true
		}
	}
	return PositionRecord{}, false
}

// Recommendation scorer output label
type Recommendation string

const (
	CloseNow   Recommendation = "CLOSE_NOW"
	CloseLater Recommendation = "CLOSE_LATER"
	Hold       Recommendation = "HOLD"
)

// PositionScore multi-factor score for one position, recomputed every cycle
type PositionScore struct {
	Ticket         int64          `json:"ticket"`
	Composite      float64        `json:"composite"`
	Profitability  float64        `json:"profitability"`
	HoldingTime    float64        `json:"holding_time"`
	Distance       float64        `json:"distance"`
	BalanceImpact  float64        `json:"balance_impact"`
	MarketContext  float64        `json:"market_context"`
	RiskManagement float64        `json:"risk_management"`
	Recommendation Recommendation `json:"recommendation"`
}

// CandidateSet a proposed close batch, tagged with its producing strategy
type CandidateSet struct {
	Strategy    string           `json:"strategy"`
	Kind        StrategyKind     `json:"kind"`
	Priority    float64          `json:"priority"`
	Positions   []PositionRecord `json:"positions"`
	GrossProfit float64          `json:"gross_profit"`
	Cost        float64          `json:"cost"`
}

// NetProfit expected realized profit after estimated transaction costs
func (c CandidateSet) NetProfit() float64 {
	return c.GrossProfit - c.Cost
}

// Tickets member tickets in ascending order
func (c CandidateSet) Tickets() []int64 {
	out := make([]int64, 0, len(c.Positions))
	for _, p := range c.Positions {
		out = append(out, p.Ticket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains reports whether the candidate closes the given ticket
func (c CandidateSet) Contains(ticket int64) bool {
	for _, p := range c.Positions {
		if p.Ticket == ticket {
			return true
		}
	}
	return false
}

// EvaluatedCandidate a candidate that passed all rejection rules
type EvaluatedCandidate struct {
	Candidate CandidateSet `json:"candidate"`
	Score     float64      `json:"score"`
}

// ClosingDecision the engine's output for one cycle
type ClosingDecision struct {
	ShouldClose bool      `json:"should_close"`
	Tickets     []int64   `json:"tickets,omitempty"`
	Method      string    `json:"method,omitempty"`
	ExpectedPnL float64   `json:"expected_pnl"`
	Confidence  float64   `json:"confidence"`
	Reason      string    `json:"reason"`
	Score       float64   `json:"score"`
	Evaluated   int       `json:"evaluated"`
	GeneratedAt time.Time `json:"generated_at"`
}
