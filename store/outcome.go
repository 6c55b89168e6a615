package store

import (
	"database/sql"
	"fmt"
	"time"
)

// OutcomeStore realized close outcome storage
// One row per closed position, used by the offline weight tuner
type OutcomeStore struct {
	db *sql.DB
}

// CloseOutcome realized result of closing one position
type CloseOutcome struct {
	ID         int64     `json:"id"`
	Ticket     int64     `json:"ticket"`
	Direction  string    `json:"direction"`
	Lots       float64   `json:"lots"`
	Profit     float64   `json:"profit"`
	Strategy   string    `json:"strategy"`
	Score      float64   `json:"score"` // composite position score at close time
	OpenedAt   time.Time `json:"opened_at"`
	ClosedAt   time.Time `json:"closed_at"`
	HoldHours  float64   `json:"hold_hours"`
	DecisionID string    `json:"decision_id"`
}

func (s *OutcomeStore) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS close_outcomes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticket INTEGER NOT NULL,
			direction TEXT DEFAULT '',
			lots REAL DEFAULT 0,
			profit REAL DEFAULT 0,
			strategy TEXT DEFAULT '',
			score REAL DEFAULT 0,
			opened_at DATETIME,
			closed_at DATETIME NOT NULL,
			hold_hours REAL DEFAULT 0,
			decision_id TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_close_outcomes_closed_at ON close_outcomes(closed_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_close_outcomes_ticket ON close_outcomes(ticket)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute SQL: %w", err)
		}
	}
	return nil
}

// Record stores one realized close outcome
func (s *OutcomeStore) Record(o *CloseOutcome) error {
	if o.ClosedAt.IsZero() {
		o.ClosedAt = time.Now().UTC()
	}
	if o.HoldHours == 0 && !o.OpenedAt.IsZero() {
		o.HoldHours = o.ClosedAt.Sub(o.OpenedAt).Hours()
	}

	result, err := s.db.Exec(`
		INSERT INTO close_outcomes (
			ticket, direction, lots, profit, strategy, score,
			opened_at, closed_at, hold_hours, decision_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.Ticket, o.Direction, o.Lots, o.Profit, o.Strategy, o.Score,
		o.OpenedAt.UTC().Format(time.RFC3339), o.ClosedAt.UTC().Format(time.RFC3339),
		o.HoldHours, o.DecisionID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert close outcome: %w", err)
	}
	o.ID, _ = result.LastInsertId()
	return nil
}

// ListSince returns outcomes closed at or after the given time, oldest first
func (s *OutcomeStore) ListSince(since time.Time) ([]*CloseOutcome, error) {
	rows, err := s.db.Query(`
		SELECT id, ticket, direction, lots, profit, strategy, score,
		       opened_at, closed_at, hold_hours, decision_id
		FROM close_outcomes
		WHERE closed_at >= ?
		ORDER BY closed_at ASC
	`, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query close outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*CloseOutcome
	for rows.Next() {
		var o CloseOutcome
		var openedAt, closedAt string
		if err := rows.Scan(
			&o.ID, &o.Ticket, &o.Direction, &o.Lots, &o.Profit, &o.Strategy,
			&o.Score, &openedAt, &closedAt, &o.HoldHours, &o.DecisionID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan close outcome: %w", err)
		}
		o.OpenedAt, _ = time.Parse(time.RFC3339, openedAt)
		o.ClosedAt, _ = time.Parse(time.RFC3339, closedAt)
		outcomes = append(outcomes, &o)
	}
	return outcomes, rows.Err()
}

// TotalProfit sums realized profit over all recorded closes
func (s *OutcomeStore) TotalProfit() (float64, error) {
	var total sql.NullFloat64
	if err := s.db.QueryRow(`SELECT SUM(profit) FROM close_outcomes`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum profits: %w", err)
	}
	return total.Float64, nil
}
