// Package relation tracks hedge relationships between open positions:
// drag-recovery pairs, special-purpose balance positions and multi-position
// recovery groups. The whole state round-trips through a versioned JSON
// document so a restart never loses pairing knowledge.
package relation

import (
	"fmt"
	"time"
)

// PairType direction of the drag-recovery pair
type PairType string

const (
	PairBuyDrag  PairType = "buy_drag"  // losing buy dragged by a recovery sell
	PairSellDrag PairType = "sell_drag" // losing sell dragged by a recovery buy
)

// Status lifecycle state shared by pairs and groups
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Purpose why a balance position was opened
type Purpose string

const (
	PurposeBalance      Purpose = "balance"
	PurposeForceCounter Purpose = "force_counter"
	PurposeZoneDefense  Purpose = "zone_defense"
)

// Pair links a losing position with the position opened to recover it
type Pair struct {
	PrimaryTicket  int64     `json:"primary_ticket"`
	RecoveryTicket int64     `json:"recovery_ticket"`
	Type           PairType  `json:"pair_type"`
	TargetProfit   float64   `json:"target_profit"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	ClosedAt       time.Time `json:"closed_at,omitzero"`
}

// Key identifies a pair by its two tickets
func (p Pair) Key() string {
	return fmt.Sprintf("%d_%d", p.PrimaryTicket, p.RecoveryTicket)
}

// Contains reports whether the pair involves the given ticket
func (p Pair) Contains(ticket int64) bool {
	return p.PrimaryTicket == ticket || p.RecoveryTicket == ticket
}

// Other returns the pair member opposite to the given ticket
func (p Pair) Other(ticket int64) int64 {
	if p.PrimaryTicket == ticket {
		return p.RecoveryTicket
	}
	return p.PrimaryTicket
}

// BalancePosition a position opened to correct portfolio exposure
type BalancePosition struct {
	Ticket        int64     `json:"ticket"`
	Direction     string    `json:"direction"` // long or short
	Purpose       Purpose   `json:"purpose"`
	TargetBalance float64   `json:"target_balance"`
	CreatedAt     time.Time `json:"created_at"`
}

// Group a set of positions managed toward one recovery target
type Group struct {
	ID           string    `json:"group_id"`
	Tickets      []int64   `json:"tickets"`
	Type         string    `json:"group_type"`
	TargetProfit float64   `json:"target_profit"`
	Priority     int       `json:"priority"` // 1 (low) .. 5 (urgent)
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Contains reports whether the group holds the given ticket
func (g Group) Contains(ticket int64) bool {
	for _, t := range g.Tickets {
		if t == ticket {
			return true
		}
	}
	return false
}

// Summary section counts for status reporting
type Summary struct {
	ActivePairs      int       `json:"active_pairs"`
	CompletedPairs   int       `json:"completed_pairs"`
	BalancePositions int       `json:"balance_positions"`
	ActiveGroups     int       `json:"active_groups"`
	Version          int       `json:"version"`
	UpdatedAt        time.Time `json:"updated_at"`
}
