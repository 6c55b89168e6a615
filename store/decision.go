package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DecisionStore decision log storage
type DecisionStore struct {
	db *sql.DB
}

// DecisionRecord one engine cycle's outcome
type DecisionRecord struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	ShouldClose   bool      `json:"should_close"`
	Tickets       []int64   `json:"tickets"`
	Method        string    `json:"method"`
	ExpectedPnL   float64   `json:"expected_pnl"`
	Confidence    float64   `json:"confidence"`
	Reason        string    `json:"reason"`
	Evaluated     int       `json:"evaluated"`
	PositionCount int       `json:"position_count"`
	MarginLevel   float64   `json:"margin_level"`
	RiskLevel     string    `json:"risk_level"`
}

// CycleStats aggregate decision statistics
type CycleStats struct {
	TotalCycles  int     `json:"total_cycles"`
	CloseCycles  int     `json:"close_cycles"`
	HoldCycles   int     `json:"hold_cycles"`
	AvgEvaluated float64 `json:"avg_evaluated"`
}

func (s *DecisionStore) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS decision_records (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			should_close BOOLEAN DEFAULT 0,
			tickets TEXT DEFAULT '[]',
			method TEXT DEFAULT '',
			expected_pnl REAL DEFAULT 0,
			confidence REAL DEFAULT 0,
			reason TEXT DEFAULT '',
			evaluated INTEGER DEFAULT 0,
			position_count INTEGER DEFAULT 0,
			margin_level REAL DEFAULT 0,
			risk_level TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decision_records_timestamp ON decision_records(timestamp DESC)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute SQL: %w", err)
		}
	}
	return nil
}

// LogDecision logs one decision cycle
func (s *DecisionStore) LogDecision(record *DecisionRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	} else {
		record.Timestamp = record.Timestamp.UTC()
	}

	ticketsJSON, _ := json.Marshal(record.Tickets)

	_, err := s.db.Exec(`
		INSERT INTO decision_records (
			id, timestamp, should_close, tickets, method, expected_pnl,
			confidence, reason, evaluated, position_count, margin_level, risk_level
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID, record.Timestamp.Format(time.RFC3339), record.ShouldClose,
		string(ticketsJSON), record.Method, record.ExpectedPnL,
		record.Confidence, record.Reason, record.Evaluated,
		record.PositionCount, record.MarginLevel, record.RiskLevel,
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision record: %w", err)
	}
	return nil
}

// Latest gets the most recent decision record
func (s *DecisionStore) Latest() (*DecisionRecord, error) {
	records, err := s.Recent(1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Recent gets the latest N records sorted newest first
func (s *DecisionStore) Recent(n int) ([]*DecisionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp, should_close, tickets, method, expected_pnl,
		       confidence, reason, evaluated, position_count, margin_level, risk_level
		FROM decision_records
		ORDER BY timestamp DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query decision records: %w", err)
	}
	defer rows.Close()

	var records []*DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var ts, ticketsJSON string
		if err := rows.Scan(
			&rec.ID, &ts, &rec.ShouldClose, &ticketsJSON, &rec.Method,
			&rec.ExpectedPnL, &rec.Confidence, &rec.Reason, &rec.Evaluated,
			&rec.PositionCount, &rec.MarginLevel, &rec.RiskLevel,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision record: %w", err)
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339, ts)
		json.Unmarshal([]byte(ticketsJSON), &rec.Tickets)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Stats aggregates cycle statistics
func (s *DecisionStore) Stats() (*CycleStats, error) {
	var stats CycleStats
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN should_close THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(evaluated), 0)
		FROM decision_records
	`).Scan(&stats.TotalCycles, &stats.CloseCycles, &stats.AvgEvaluated)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle stats: %w", err)
	}
	stats.HoldCycles = stats.TotalCycles - stats.CloseCycles
	return &stats, nil
}
