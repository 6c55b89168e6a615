package engine

import (
	"goldclose/relation"
)

// Purpose why a position is being held, from the closing engine's view
type Purpose string

const (
	PurposeProblem        Purpose = "problem"
	PurposeProfitTaker    Purpose = "profit_taker"
	PurposeBalanceKeeper  Purpose = "balance_keeper"
	PurposeRecoveryHelper Purpose = "recovery_helper"
	PurposeTrendFollower  Purpose = "trend_follower"
)

// Classify assigns a purpose from relationship membership first, P&L second.
// Relationship knowledge wins: a balance keeper deep in loss is still a
// balance keeper until its tracking is removed.
func Classify(pos PositionRecord, rel *relation.Store, cfg Config) Purpose {
	if rel != nil {
		if _, ok := rel.BalancePurpose(pos.Ticket); ok {
			return PurposeBalanceKeeper
		}
		if pair, ok := rel.ActivePairFor(pos.Ticket); ok {
			if pair.RecoveryTicket == pos.Ticket {
				return PurposeRecoveryHelper
			}
			return PurposeProblem
		}
	}

	switch {
	case pos.Profit <= cfg.ProblemLoss:
		return PurposeProblem
	case pos.Profit >= cfg.ProfitTakeThreshold:
		return PurposeProfitTaker
	default:
		return PurposeTrendFollower
	}
}
