package manager

import (
	"context"

	"goldclose/engine"
	"goldclose/logger"
)

// DryRunExecutor stands in when no broker executor is wired: it confirms
// every close and reports the unrealized profit as realized. Useful for
// watching decisions without touching an account.
type DryRunExecutor struct{}

// Close logs the would-be closes and confirms them all
func (DryRunExecutor) Close(_ context.Context, positions []engine.PositionRecord) ([]CloseResult, error) {
	results := make([]CloseResult, 0, len(positions))
	for _, p := range positions {
		logger.Infof("📝 Dry run: would close ticket %d (%s %.2f lots, %.2f USD)",
			p.Ticket, p.Direction, p.Lots, p.Profit)
		results = append(results, CloseResult{Ticket: p.Ticket, Success: true, Profit: p.Profit})
	}
	return results, nil
}
