package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSystemConfig(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetSystemConfig("missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetSystemConfig("cycle_interval", "15s"))
	v, err = s.GetSystemConfig("cycle_interval")
	require.NoError(t, err)
	assert.Equal(t, "15s", v)

	// upsert overwrites
	require.NoError(t, s.SetSystemConfig("cycle_interval", "30s"))
	v, err = s.GetSystemConfig("cycle_interval")
	require.NoError(t, err)
	assert.Equal(t, "30s", v)
}

func TestDecisionLogAndQuery(t *testing.T) {
	s := newTestStore(t)

	latest, err := s.Decision().Latest()
	require.NoError(t, err)
	assert.Nil(t, latest, "empty log has no latest record")

	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	records := []*DecisionRecord{
		{Timestamp: base, ShouldClose: false, Reason: "no viable close combination (12 candidates evaluated)", Evaluated: 12, PositionCount: 4, MarginLevel: 800, RiskLevel: "LOW"},
		{Timestamp: base.Add(15 * time.Second), ShouldClose: true, Tickets: []int64{3, 7}, Method: "pair_completion_2", ExpectedPnL: 6.4, Confidence: 72, Evaluated: 9, PositionCount: 4, MarginLevel: 810, RiskLevel: "LOW"},
		{Timestamp: base.Add(30 * time.Second), ShouldClose: false, Reason: "no open positions", PositionCount: 0, RiskLevel: "SAFE"},
	}
	for _, rec := range records {
		require.NoError(t, s.Decision().LogDecision(rec))
		assert.NotEmpty(t, rec.ID, "LogDecision must assign an id")
	}

	latest, err = s.Decision().Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "no open positions", latest.Reason)

	recent, err := s.Decision().Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].Timestamp.After(recent[1].Timestamp), "newest first")
	assert.Equal(t, []int64{3, 7}, recent[1].Tickets, "ticket list must round-trip")
	assert.Equal(t, "pair_completion_2", recent[1].Method)

	stats, err := s.Decision().Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalCycles)
	assert.Equal(t, 1, stats.CloseCycles)
	assert.Equal(t, 2, stats.HoldCycles)
}

func TestOutcomeRecordAndList(t *testing.T) {
	s := newTestStore(t)

	opened := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	closed := opened.Add(30 * time.Hour)

	o := &CloseOutcome{
		Ticket:     101,
		Direction:  "long",
		Lots:       0.1,
		Profit:     11.8,
		Strategy:   "profit_rank",
		Score:      83.5,
		OpenedAt:   opened,
		ClosedAt:   closed,
		DecisionID: "dec-1",
	}
	require.NoError(t, s.Outcome().Record(o))
	assert.NotZero(t, o.ID)
	assert.InDelta(t, 30.0, o.HoldHours, 0.001, "hold hours derived from the timestamps")

	require.NoError(t, s.Outcome().Record(&CloseOutcome{
		Ticket: 102, Direction: "short", Lots: 0.2, Profit: -3.1,
		Strategy: "emergency_relief", OpenedAt: opened, ClosedAt: closed.Add(time.Hour),
	}))

	outcomes, err := s.Outcome().ListSince(opened)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, int64(101), outcomes[0].Ticket, "oldest first")
	assert.Equal(t, "profit_rank", outcomes[0].Strategy)

	// window cuts off older closes
	outcomes, err = s.Outcome().ListSince(closed.Add(30 * time.Minute))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, int64(102), outcomes[0].Ticket)

	total, err := s.Outcome().TotalProfit()
	require.NoError(t, err)
	assert.InDelta(t, 8.7, total, 0.001)
}

func TestTransactionRollback(t *testing.T) {
	s := newTestStore(t)

	failure := errors.New("boom")
	err := s.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO system_config (key, value) VALUES ('k', 'v')`); err != nil {
			return err
		}
		return failure
	})
	assert.ErrorIs(t, err, failure)

	v, err := s.GetSystemConfig("k")
	require.NoError(t, err)
	assert.Empty(t, v, "rolled-back write must not be visible")

	require.NoError(t, s.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO system_config (key, value) VALUES ('k', 'v')`)
		return err
	}))
	v, err = s.GetSystemConfig("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}
