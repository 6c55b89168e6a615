package engine

import "fmt"

// Config engine tunables. All thresholds live here rather than scattered
// through the strategies so the host can recalibrate per broker.
type Config struct {
	// recommendation thresholds (composite score points)
	CloseNowThreshold   float64 `json:"close_now_threshold"`
	CloseLaterThreshold float64 `json:"close_later_threshold"`
	MaxThresholdShift   float64 `json:"max_threshold_shift"` // clamp on dynamic adjustment

	// combination constraints
	MinBatch         int     `json:"min_batch"`
	MaxBatch         int     `json:"max_batch"` // base; pressure widens it, see DeriveParams
	MinNetProfit     float64 `json:"min_net_profit"`     // USD, base dynamic minimum
	AllowedLoss      float64 `json:"allowed_loss"`       // USD, hard loss ceiling for any candidate
	EmergencyMaxLoss float64 `json:"emergency_max_loss"` // USD, ceiling under emergency margin pressure
	MinLot           float64 `json:"min_lot"`
	LotSpreadLimit   float64 `json:"lot_spread_limit"` // max lot / batch average ratio

	// margin level ladders (percent)
	MarginEmergency float64 `json:"margin_emergency"`
	MarginCritical  float64 `json:"margin_critical"`
	MarginHigh      float64 `json:"margin_high"`
	MarginMedium    float64 `json:"margin_medium"`
	MarginSafe      float64 `json:"margin_safe"`

	// exposure imbalance (fraction of total lots)
	ImbalanceThreshold float64 `json:"imbalance_threshold"`
	ImbalanceSevere    float64 `json:"imbalance_severe"`

	// transaction cost estimate, USD per lot
	SpreadCostPerLot  float64 `json:"spread_cost_per_lot"`
	CommissionPerLot  float64 `json:"commission_per_lot"`
	SlippagePerLot    float64 `json:"slippage_per_lot"`
	FallbackCostEach  float64 `json:"fallback_cost_each"` // per position when lots unknown

	// purpose classification
	ProblemLoss         float64 `json:"problem_loss"`          // USD, at or below is a problem position
	ProfitTakeThreshold float64 `json:"profit_take_threshold"` // USD, at or above is a profit taker

	// selector
	BudgetPerStrategy int     `json:"budget_per_strategy"`
	ExcellentScore    float64 `json:"excellent_score"` // stop the size loop
	GoodScore         float64 `json:"good_score"`      // stop the strategy loop
	PositionCountCap  int     `json:"position_count_cap"` // emergency trigger
}

// DefaultConfig returns the tuned defaults for gold on a retail account
func DefaultConfig() Config {
	return Config{
		CloseNowThreshold:   80,
		CloseLaterThreshold: 60,
		MaxThresholdShift:   10,

		MinBatch:         2,
		MaxBatch:         8,
		MinNetProfit:     0.5,
		AllowedLoss:      2.0,
		EmergencyMaxLoss: 10.0,
		MinLot:           0.01,
		LotSpreadLimit:   5.0,

		MarginEmergency: 120,
		MarginCritical:  150,
		MarginHigh:      300,
		MarginMedium:    500,
		MarginSafe:      1000,

		ImbalanceThreshold: 0.70,
		ImbalanceSevere:    0.80,

		SpreadCostPerLot: 0.8,
		CommissionPerLot: 0.3,
		SlippagePerLot:   1.0,
		FallbackCostEach: 2.0,

		ProblemLoss:         -5.0,
		ProfitTakeThreshold: 5.0,

		BudgetPerStrategy: 8,
		ExcellentScore:    300,
		GoodScore:         200,
		PositionCountCap:  100,
	}
}

// Validate rejects configurations that cannot produce sane decisions
func (c Config) Validate() error {
	if c.CloseNowThreshold <= c.CloseLaterThreshold {
		return fmt.Errorf("close-now threshold %.1f must exceed close-later threshold %.1f",
			c.CloseNowThreshold, c.CloseLaterThreshold)
	}
	if c.MinBatch < 1 || c.MaxBatch < c.MinBatch {
		return fmt.Errorf("invalid batch bounds [%d, %d]", c.MinBatch, c.MaxBatch)
	}
	if c.MinLot <= 0 {
		return fmt.Errorf("minimum lot must be positive, got %.4f", c.MinLot)
	}
	if c.LotSpreadLimit <= 1 {
		return fmt.Errorf("lot spread limit must exceed 1, got %.2f", c.LotSpreadLimit)
	}
	if !(c.MarginEmergency < c.MarginCritical && c.MarginCritical < c.MarginHigh &&
		c.MarginHigh < c.MarginMedium && c.MarginMedium < c.MarginSafe) {
		return fmt.Errorf("margin ladder must be strictly increasing")
	}
	if c.ImbalanceThreshold <= 0 || c.ImbalanceThreshold >= c.ImbalanceSevere || c.ImbalanceSevere > 1 {
		return fmt.Errorf("invalid imbalance thresholds %.2f/%.2f", c.ImbalanceThreshold, c.ImbalanceSevere)
	}
	if c.BudgetPerStrategy < 1 {
		return fmt.Errorf("budget per strategy must be at least 1, got %d", c.BudgetPerStrategy)
	}
	if c.ExcellentScore <= c.GoodScore {
		return fmt.Errorf("excellent score %.0f must exceed good score %.0f", c.ExcellentScore, c.GoodScore)
	}
	return nil
}

// CostPerLot combined per-lot transaction cost estimate
func (c Config) CostPerLot() float64 {
	return c.SpreadCostPerLot + c.CommissionPerLot + c.SlippagePerLot
}

// ClosingCost estimated cost of closing the given total volume.
// Falls back to a flat per-position charge when lot data is unusable.
func (c Config) ClosingCost(totalLots float64, count int) float64 {
	if totalLots > 0 {
		return totalLots * c.CostPerLot()
	}
	return float64(count) * c.FallbackCostEach
}
