package relation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSaveLoadRoundTrip 保存再加载后所有区段完整还原
func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rel.json")

	s := NewStore(path)
	require.NoError(t, s.AddPair(Pair{PrimaryTicket: 1, RecoveryTicket: 2, Type: PairBuyDrag, TargetProfit: 3.5}))
	require.NoError(t, s.AddPair(Pair{PrimaryTicket: 3, RecoveryTicket: 4, Type: PairSellDrag}))
	require.NoError(t, s.CompletePair("3_4"))
	require.NoError(t, s.AddBalancePosition(BalancePosition{Ticket: 5, Direction: "short", Purpose: PurposeZoneDefense, TargetBalance: 0.5}))
	groupID, err := s.CreateGroup([]int64{6, 7, 8}, "recovery", 12, 4)
	require.NoError(t, err)
	require.NoError(t, s.Save())

	loaded := Load(path)

	pair, ok := loaded.ActivePairFor(1)
	require.True(t, ok)
	assert.Equal(t, PairBuyDrag, pair.Type)
	assert.Equal(t, 3.5, pair.TargetProfit)

	_, ok = loaded.ActivePairFor(3)
	assert.False(t, ok, "completed pair must stay completed after reload")

	purpose, ok := loaded.BalancePurpose(5)
	require.True(t, ok)
	assert.Equal(t, PurposeZoneDefense, purpose)

	group, ok := loaded.GroupFor(7)
	require.True(t, ok)
	assert.Equal(t, groupID, group.ID)
	assert.Equal(t, []int64{6, 7, 8}, group.Tickets)

	sum := loaded.Summarize()
	assert.Equal(t, 1, sum.ActivePairs)
	assert.Equal(t, 1, sum.CompletedPairs)
	assert.Equal(t, 1, sum.BalancePositions)
	assert.Equal(t, 1, sum.ActiveGroups)
}

// TestLoadMissingFile 文件不存在时以空关系启动
func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.json")
	s := Load(path)
	require.NotNil(t, s)
	assert.Zero(t, s.Summarize().ActivePairs)

	// and the store is usable immediately
	assert.NoError(t, s.AddPair(Pair{PrimaryTicket: 1, RecoveryTicket: 2, Type: PairBuyDrag}))
	assert.NoError(t, s.Save())
}

// TestLoadFallsBackToBackup 主文件损坏时从备份恢复
func TestLoadFallsBackToBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rel.json")

	s := NewStore(path)
	require.NoError(t, s.AddPair(Pair{PrimaryTicket: 1, RecoveryTicket: 2, Type: PairBuyDrag}))
	require.NoError(t, s.Save())
	// a second save rotates the first document into the backup
	require.NoError(t, s.AddBalancePosition(BalancePosition{Ticket: 9, Direction: "long", Purpose: PurposeBalance}))
	require.NoError(t, s.Save())

	require.NoError(t, os.WriteFile(path, []byte("{corrupt"), 0o644))

	loaded := Load(path)
	_, ok := loaded.ActivePairFor(1)
	assert.True(t, ok, "pair must be recovered from the backup")

	// both files broken: start empty rather than halt
	require.NoError(t, os.WriteFile(backupPath(path), []byte("also corrupt"), 0o644))
	empty := Load(path)
	require.NotNil(t, empty)
	assert.Zero(t, empty.Summarize().ActivePairs)
}

// TestUnknownSectionsSurvive 新版本写入的未知区段在读写循环中保留
func TestUnknownSectionsSurvive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rel.json")

	doc := map[string]any{
		"version":      2,
		"last_updated": "2025-06-01T00:00:00Z",
		"recovery_pairs": map[string]any{
			"1_2": map[string]any{
				"primary_ticket": 1, "recovery_ticket": 2,
				"pair_type": "buy_drag", "status": "active",
				"created_at": "2025-06-01T00:00:00Z",
			},
		},
		"zone_map": map[string]any{"2400": "defended"},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s := Load(path)
	_, ok := s.ActivePairFor(1)
	require.True(t, ok)
	require.NoError(t, s.Save())

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	var roundTripped map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &roundTripped))
	assert.Contains(t, roundTripped, "zone_map", "unknown section dropped on save")
	assert.JSONEq(t, `{"2400": "defended"}`, string(roundTripped["zone_map"]))
}

// TestSaveConcurrentWithMutation 保存与并发修改互不干扰（race 检测器负责把关）
func TestSaveConcurrentWithMutation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rel.json")
	s := NewStore(path)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticket := int64(1)
		for {
			select {
			case <-done:
				return
			default:
			}
			_ = s.AddPair(Pair{PrimaryTicket: ticket, RecoveryTicket: ticket + 1, Type: PairBuyDrag})
			s.MarkClosed([]int64{ticket})
			ticket += 2
		}
	}()

	for i := 0; i < 50; i++ {
		require.NoError(t, s.Save())
	}
	close(done)
	wg.Wait()

	// every snapshot on disk must be a parseable document
	loaded := Load(path)
	require.NotNil(t, loaded)
	assert.Equal(t, documentVersion, loaded.Summarize().Version)
}

// TestSaveAtomicLeavesBackup 保存后留下可恢复的备份文件
func TestSaveAtomicLeavesBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rel.json")
	s := NewStore(path)
	require.NoError(t, s.AddPair(Pair{PrimaryTicket: 1, RecoveryTicket: 2, Type: PairBuyDrag}))
	require.NoError(t, s.Save())

	_, err := os.Stat(backupPath(path))
	assert.True(t, os.IsNotExist(err), "first save has nothing to rotate")

	require.NoError(t, s.Save())
	_, err = os.Stat(backupPath(path))
	assert.NoError(t, err, "second save must rotate a backup")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not linger")
}
