package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"goldclose/engine"
	"goldclose/market"
)

// FileSnapshotProvider 从JSON文件读取组合快照
// 交易终端（EA）周期性覆盖写该文件，本进程只读
type FileSnapshotProvider struct {
	Path string
}

func NewFileSnapshotProvider(path string) *FileSnapshotProvider {
	return &FileSnapshotProvider{Path: path}
}

func (p *FileSnapshotProvider) Snapshot(ctx context.Context) (*engine.PortfolioSnapshot, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", p.Path, err)
	}

	var snap engine.PortfolioSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", p.Path, err)
	}

	if snap.Time.IsZero() {
		if info, err := os.Stat(p.Path); err == nil {
			snap.Time = info.ModTime()
		}
	}
	// 终端可能不提供市场上下文，用中性默认值补齐
	if snap.Market.Session == "" {
		m := market.DefaultContext()
		if !snap.Time.IsZero() {
			m.Session = market.SessionAt(snap.Time)
		}
		snap.Market = m
	}
	return &snap, nil
}
