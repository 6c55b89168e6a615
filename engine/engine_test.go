package engine

import (
	"reflect"
	"strings"
	"testing"

	"goldclose/relation"
)

func newTestEngine(t *testing.T, rel *relation.Store) *Engine {
	t.Helper()
	if rel == nil {
		rel = relation.NewStore(t.TempDir() + "/rel.json")
	}
	eng, err := New(DefaultConfig(), DefaultWeights(), rel)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

// TestDecideEmptyPortfolio 空仓是正常结果，不平仓不报错
func TestDecideEmptyPortfolio(t *testing.T) {
	eng := newTestEngine(t, nil)

	for _, snap := range []*PortfolioSnapshot{nil, testSnapshot(nil)} {
		decision := eng.Decide(snap)
		if decision.ShouldClose {
			t.Error("empty portfolio must not produce a close")
		}
		if decision.Reason != "no open positions" {
			t.Errorf("reason = %q", decision.Reason)
		}
		if len(decision.Tickets) != 0 {
			t.Errorf("tickets = %v, want none", decision.Tickets)
		}
	}
}

// TestDecideTakesLoneWinner 一盈一亏且亏损可保留时，单独平掉盈利仓
func TestDecideTakesLoneWinner(t *testing.T) {
	eng := newTestEngine(t, nil)
	snap := testSnapshot([]PositionRecord{
		testPosition(1, Long, 0.1, 12),
		testPosition(2, Short, 0.1, -3),
	})

	decision := eng.Decide(snap)
	if !decision.ShouldClose {
		t.Fatalf("expected a close, got hold: %s", decision.Reason)
	}
	if !reflect.DeepEqual(decision.Tickets, []int64{1}) {
		t.Fatalf("tickets = %v, want [1]", decision.Tickets)
	}
	if decision.Method != "profit_rank_1" {
		t.Errorf("method = %q, want profit_rank_1", decision.Method)
	}

	// expected P&L is the gross profit minus the estimated closing cost
	wantPnL := 12 - 0.1*eng.Config().CostPerLot()
	if decision.ExpectedPnL < wantPnL-0.001 || decision.ExpectedPnL > wantPnL+0.001 {
		t.Errorf("ExpectedPnL = %.4f, want %.4f", decision.ExpectedPnL, wantPnL)
	}
	if decision.Confidence < 10 || decision.Confidence > 95 {
		t.Errorf("confidence %.1f outside [10, 95]", decision.Confidence)
	}
}

// TestDecideCompletesPair 配对合计转正时整对平仓，拆单被拒
func TestDecideCompletesPair(t *testing.T) {
	rel := relation.NewStore(t.TempDir() + "/rel.json")
	if err := rel.AddPair(relation.Pair{PrimaryTicket: 10, RecoveryTicket: 11, Type: relation.PairBuyDrag}); err != nil {
		t.Fatalf("AddPair: %v", err)
	}
	eng := newTestEngine(t, rel)

	snap := testSnapshot([]PositionRecord{
		testPosition(10, Long, 0.1, -4),
		testPosition(11, Short, 0.1, 12),
	})

	decision := eng.Decide(snap)
	if !decision.ShouldClose {
		t.Fatalf("expected a close, got hold: %s", decision.Reason)
	}
	if !reflect.DeepEqual(decision.Tickets, []int64{10, 11}) {
		t.Fatalf("tickets = %v, want the whole pair [10 11]", decision.Tickets)
	}
	if decision.Method != "pair_completion_2" {
		t.Errorf("method = %q, want pair_completion_2", decision.Method)
	}
}

// TestDecideEmergencyWidensLimits 保证金紧急时允许更大批量和亏损出场
func TestDecideEmergencyWidensLimits(t *testing.T) {
	eng := newTestEngine(t, nil)

	var positions []PositionRecord
	for i := int64(1); i <= 12; i++ {
		dir := Long
		if i%2 == 0 {
			dir = Short
		}
		positions = append(positions, testPosition(i, dir, 0.2, -1.5))
	}
	snap := testSnapshot(positions)
	snap.Account.MarginLevel = 90
	snap.Account.Equity = 600

	decision := eng.Decide(snap)
	if !decision.ShouldClose {
		t.Fatalf("emergency account must shed exposure: %s", decision.Reason)
	}
	if len(decision.Tickets) < 2 {
		t.Errorf("emergency close of %d tickets, want a real batch", len(decision.Tickets))
	}
	if decision.ExpectedPnL >= 0 {
		t.Errorf("ExpectedPnL = %.2f, emergency close should be realizing losses here", decision.ExpectedPnL)
	}

	// the same book under a comfortable margin holds instead
	for i := range snap.Positions {
		snap.Positions[i].Profit = -1.5
	}
	snap.Account.MarginLevel = 2000
	snap.Account.Equity = 1000
	calm := eng.Decide(snap)
	if calm.ShouldClose {
		t.Errorf("calm account closed %v at a loss", calm.Tickets)
	}
}

// TestDecideBalanceCorrection 严重失衡的账本用纯盈利成员修平衡
func TestDecideBalanceCorrection(t *testing.T) {
	eng := newTestEngine(t, nil)

	var positions []PositionRecord
	for i := int64(1); i <= 6; i++ {
		positions = append(positions, testPosition(i, Long, 0.1, 6))
	}
	positions = append(positions, testPosition(7, Short, 0.1, 1))
	snap := testSnapshot(positions)

	decision := eng.Decide(snap)
	if !decision.ShouldClose {
		t.Fatalf("imbalanced book must trim the majority side: %s", decision.Reason)
	}
	for _, ticket := range decision.Tickets {
		pos, ok := snap.Position(ticket)
		if !ok {
			t.Fatalf("decision names unknown ticket %d", ticket)
		}
		if pos.Direction != Long {
			t.Errorf("ticket %d is %s, balance correction should only trim the majority", ticket, pos.Direction)
		}
		if pos.Profit < 0 {
			t.Errorf("ticket %d is losing; this book has no losers to include", ticket)
		}
	}
	if !strings.HasPrefix(decision.Method, "balance_correction") {
		t.Errorf("method = %q, want a balance_correction batch", decision.Method)
	}
}

// TestDecideIdempotent 同一快照重复决策结果完全一致
func TestDecideIdempotent(t *testing.T) {
	rel := relation.NewStore(t.TempDir() + "/rel.json")
	if err := rel.AddPair(relation.Pair{PrimaryTicket: 2, RecoveryTicket: 3, Type: relation.PairSellDrag}); err != nil {
		t.Fatalf("AddPair: %v", err)
	}
	eng := newTestEngine(t, rel)

	snap := testSnapshot([]PositionRecord{
		testPosition(1, Long, 0.1, 12),
		testPosition(2, Short, 0.2, -6),
		testPosition(3, Long, 0.1, 9),
		testPosition(4, Short, 0.1, 2),
		testPosition(5, Long, 0.3, -1),
	})

	first := eng.Decide(snap)
	for i := 0; i < 5; i++ {
		again := eng.Decide(snap)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("decision changed on repeat %d:\nfirst: %+v\nagain: %+v", i, first, again)
		}
	}
}

// TestDecideBudgetBound 评估次数受预算硬性约束
func TestDecideBudgetBound(t *testing.T) {
	eng := newTestEngine(t, nil)

	var positions []PositionRecord
	for i := int64(1); i <= 40; i++ {
		dir := Long
		if i%3 == 0 {
			dir = Short
		}
		positions = append(positions, testPosition(i, dir, 0.1, float64(i%7)-3))
	}
	snap := testSnapshot(positions)

	decision := eng.Decide(snap)
	budget := eng.Config().BudgetPerStrategy * len(DefaultStrategies(eng.Config()))
	if decision.Evaluated > budget {
		t.Errorf("evaluated %d candidates, budget is %d", decision.Evaluated, budget)
	}
}

// TestDecideTimestampFromSnapshot 决策时间取自快照，保证可重放
func TestDecideTimestampFromSnapshot(t *testing.T) {
	eng := newTestEngine(t, nil)
	snap := testSnapshot([]PositionRecord{testPosition(1, Long, 0.1, 12)})

	decision := eng.Decide(snap)
	if !decision.GeneratedAt.Equal(snap.Time) {
		t.Errorf("GeneratedAt = %v, want snapshot time %v", decision.GeneratedAt, snap.Time)
	}
}

func TestSetWeights(t *testing.T) {
	eng := newTestEngine(t, nil)

	w := DefaultWeights()
	w.Profitability = 0.25
	w.HoldingTime = 0.20
	w.Version = 2
	if err := eng.SetWeights(w); err != nil {
		t.Fatalf("SetWeights: %v", err)
	}
	if eng.Weights().Version != 2 {
		t.Errorf("weights version = %d, want 2", eng.Weights().Version)
	}

	bad := DefaultWeights()
	bad.Profitability = 0.9
	if err := eng.SetWeights(bad); err == nil {
		t.Error("invalid weights must be refused")
	}
	if eng.Weights().Version != 2 {
		t.Error("failed swap must leave the previous weights in place")
	}
}

func TestNewValidation(t *testing.T) {
	rel := relation.NewStore(t.TempDir() + "/rel.json")

	if _, err := New(DefaultConfig(), DefaultWeights(), nil); err == nil {
		t.Error("nil relationship store must be refused")
	}

	badCfg := DefaultConfig()
	badCfg.CloseNowThreshold = 50
	badCfg.CloseLaterThreshold = 60
	if _, err := New(badCfg, DefaultWeights(), rel); err == nil {
		t.Error("inverted thresholds must be refused")
	}

	badW := DefaultWeights()
	badW.Profitability = 0
	if _, err := New(DefaultConfig(), badW, rel); err == nil {
		t.Error("weights not summing to 1 must be refused")
	}
}
