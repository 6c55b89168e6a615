package relation

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPairValidation(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "rel.json"))

	require.NoError(t, s.AddPair(Pair{PrimaryTicket: 1, RecoveryTicket: 2, Type: PairBuyDrag}))

	tests := []struct {
		name string
		pair Pair
	}{
		{"零票号", Pair{PrimaryTicket: 0, RecoveryTicket: 3, Type: PairBuyDrag}},
		{"自我配对", Pair{PrimaryTicket: 4, RecoveryTicket: 4, Type: PairSellDrag}},
		{"未知类型", Pair{PrimaryTicket: 5, RecoveryTicket: 6, Type: "hedge"}},
		{"票号已在活跃配对中", Pair{PrimaryTicket: 2, RecoveryTicket: 7, Type: PairSellDrag}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, s.AddPair(tt.pair))
		})
	}

	// finished pairs release their tickets
	require.NoError(t, s.CompletePair("1_2"))
	assert.NoError(t, s.AddPair(Pair{PrimaryTicket: 2, RecoveryTicket: 7, Type: PairSellDrag}))
}

func TestPairLifecycle(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "rel.json"))
	require.NoError(t, s.AddPair(Pair{PrimaryTicket: 1, RecoveryTicket: 2, Type: PairBuyDrag, TargetProfit: 3}))

	p, ok := s.ActivePairFor(1)
	require.True(t, ok)
	assert.Equal(t, int64(2), p.Other(1))
	assert.Equal(t, int64(1), p.Other(2))
	assert.Equal(t, StatusActive, p.Status)
	assert.False(t, p.CreatedAt.IsZero())

	_, ok = s.ActivePairFor(99)
	assert.False(t, ok)

	require.NoError(t, s.FailPair("1_2"))
	_, ok = s.ActivePairFor(1)
	assert.False(t, ok, "failed pair must not bind tickets")

	err := s.CompletePair("8_9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkClosed(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "rel.json"))
	require.NoError(t, s.AddPair(Pair{PrimaryTicket: 1, RecoveryTicket: 2, Type: PairBuyDrag}))
	require.NoError(t, s.AddBalancePosition(BalancePosition{Ticket: 3, Direction: "short", Purpose: PurposeBalance}))
	groupID, err := s.CreateGroup([]int64{4, 5, 6}, "recovery", 10, 2)
	require.NoError(t, err)

	s.MarkClosed([]int64{1, 3, 4})

	// the touched pair completes
	_, ok := s.ActivePairFor(2)
	assert.False(t, ok)
	sum := s.Summarize()
	assert.Equal(t, 1, sum.CompletedPairs)

	// balance tracking dropped
	_, ok = s.BalancePurpose(3)
	assert.False(t, ok)

	// group sheds the member but stays active with two left
	g, ok := s.GroupFor(5)
	require.True(t, ok)
	assert.Equal(t, groupID, g.ID)
	assert.Len(t, g.Tickets, 2)

	// one more close dissolves it
	s.MarkClosed([]int64{5})
	_, ok = s.GroupFor(6)
	assert.False(t, ok)
}

func TestPurgeStale(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "rel.json"))
	require.NoError(t, s.AddPair(Pair{PrimaryTicket: 1, RecoveryTicket: 2, Type: PairBuyDrag}))
	require.NoError(t, s.AddPair(Pair{PrimaryTicket: 3, RecoveryTicket: 4, Type: PairSellDrag}))
	require.NoError(t, s.AddBalancePosition(BalancePosition{Ticket: 5, Direction: "long", Purpose: PurposeBalance}))

	// tickets 2 and 5 vanished from the account
	live := map[int64]bool{1: true, 3: true, 4: true}
	removed := s.PurgeStale(live)
	assert.Equal(t, 2, removed)

	_, ok := s.ActivePairFor(1)
	assert.False(t, ok, "pair with a vanished ticket must be purged")
	_, ok = s.ActivePairFor(3)
	assert.True(t, ok, "fully live pair must survive")
	_, ok = s.BalancePurpose(5)
	assert.False(t, ok)

	assert.Zero(t, s.PurgeStale(live), "second purge finds nothing")
}

func TestGroupValidation(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "rel.json"))

	_, err := s.CreateGroup([]int64{1}, "recovery", 5, 3)
	assert.Error(t, err, "single-ticket group is meaningless")

	_, err = s.CreateGroup([]int64{1, 2}, "recovery", 5, 9)
	assert.Error(t, err, "priority outside 1..5")

	id, err := s.CreateGroup([]int64{1, 2, 3}, "recovery", 5, 4)
	require.NoError(t, err)
	require.NoError(t, s.DissolveGroup(id))
	_, ok := s.GroupFor(1)
	assert.False(t, ok)

	assert.ErrorIs(t, s.DissolveGroup("nope"), ErrNotFound)
}

func TestActiveGroupsOrder(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "rel.json"))
	_, err := s.CreateGroup([]int64{1, 2}, "recovery", 5, 1)
	require.NoError(t, err)
	_, err = s.CreateGroup([]int64{3, 4}, "recovery", 5, 5)
	require.NoError(t, err)
	_, err = s.CreateGroup([]int64{5, 6}, "recovery", 5, 3)
	require.NoError(t, err)

	groups := s.ActiveGroups()
	require.Len(t, groups, 3)
	assert.Equal(t, 5, groups[0].Priority, "urgent group first")
	assert.Equal(t, 1, groups[2].Priority)
}

func TestBalancePositionValidation(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "rel.json"))

	assert.Error(t, s.AddBalancePosition(BalancePosition{Ticket: 0, Direction: "long", Purpose: PurposeBalance}))
	assert.Error(t, s.AddBalancePosition(BalancePosition{Ticket: 1, Direction: "buy", Purpose: PurposeBalance}))
	assert.Error(t, s.AddBalancePosition(BalancePosition{Ticket: 1, Direction: "long", Purpose: "hedging"}))

	require.NoError(t, s.AddBalancePosition(BalancePosition{Ticket: 1, Direction: "long", Purpose: PurposeForceCounter}))
	purpose, ok := s.BalancePurpose(1)
	require.True(t, ok)
	assert.Equal(t, PurposeForceCounter, purpose)

	s.RemoveBalancePosition(1)
	_, ok = s.BalancePurpose(1)
	assert.False(t, ok)
}
