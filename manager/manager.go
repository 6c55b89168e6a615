// Package manager runs the host trading loop around the decision engine:
// fetch a snapshot, purge stale relationships, decide, dispatch to the
// executor, and feed confirmed closes back into the relationship store
// and the outcome history. Cycles are serialized by a mutex and tickets
// already being closed are excluded from the next snapshot.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"goldclose/engine"
	"goldclose/logger"
	"goldclose/relation"
	"goldclose/store"
	"goldclose/tuner"
)

// SnapshotProvider supplies the portfolio state, refreshed every cycle
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*engine.PortfolioSnapshot, error)
}

// CloseResult per-ticket report from the executor
type CloseResult struct {
	Ticket  int64   `json:"ticket"`
	Success bool    `json:"success"`
	Profit  float64 `json:"profit"` // realized, valid when Success
	Error   string  `json:"error,omitempty"`
}

// Executor applies a close decision at the broker
type Executor interface {
	Close(ctx context.Context, positions []engine.PositionRecord) ([]CloseResult, error)
}

// Notifier receives executed close decisions (e.g. for Telegram alerts)
type Notifier interface {
	NotifyClose(decision engine.ClosingDecision, results []CloseResult)
}

// DecisionListener observes every logged decision cycle
type DecisionListener func(record *store.DecisionRecord)

// Manager the trading-loop host
type Manager struct {
	cycleMu sync.Mutex // one decision cycle at a time

	engine   *engine.Engine
	rel      *relation.Store
	st       *store.Store
	provider SnapshotProvider
	executor Executor

	notifier  Notifier
	listeners []DecisionListener

	// optional weight tuning, run from the loop goroutine only
	learn       *tuner.Tuner
	weightsFile string
	learnEvery  time.Duration
	lastLearn   time.Time

	inFlightMu sync.Mutex
	inFlight   map[int64]bool
}

// New wires the loop; every collaborator except the notifier is required
func New(eng *engine.Engine, rel *relation.Store, st *store.Store, provider SnapshotProvider, executor Executor) (*Manager, error) {
	if eng == nil || rel == nil || st == nil || provider == nil || executor == nil {
		return nil, fmt.Errorf("manager: all collaborators are required")
	}
	return &Manager{
		engine:   eng,
		rel:      rel,
		st:       st,
		provider: provider,
		executor: executor,
		inFlight: make(map[int64]bool),
	}, nil
}

// SetNotifier attaches an optional close notifier
func (m *Manager) SetNotifier(n Notifier) {
	m.notifier = n
}

// OnDecision registers a listener for every decision cycle
func (m *Manager) OnDecision(fn DecisionListener) {
	m.listeners = append(m.listeners, fn)
}

// EnableLearning turns on periodic weight tuning: every interval the
// outcome history since the previous pass is fed to the tuner and the
// resulting snapshot is persisted and swapped into the engine.
func (m *Manager) EnableLearning(tn *tuner.Tuner, weightsFile string, every time.Duration) error {
	if tn == nil || every <= 0 {
		return fmt.Errorf("manager: learning needs a tuner and a positive interval")
	}
	m.learn = tn
	m.weightsFile = weightsFile
	m.learnEvery = every
	m.lastLearn = time.Now().UTC()
	return nil
}

// Learn runs one tuning pass over outcomes closed since the given time
func (m *Manager) Learn(since time.Time) error {
	if m.learn == nil {
		return fmt.Errorf("manager: learning not enabled")
	}
	current := m.engine.Weights()
	next, err := m.learn.AdjustSince(current, since)
	if err != nil {
		return fmt.Errorf("tuning failed: %w", err)
	}
	if next.Version == current.Version {
		// not enough history yet
		return nil
	}
	if err := m.engine.SetWeights(next); err != nil {
		return fmt.Errorf("tuned weights rejected: %w", err)
	}
	if m.weightsFile != "" {
		if err := tuner.SaveWeights(m.weightsFile, next); err != nil {
			logger.Warnf("⚠️ Failed to persist tuned weights: %v", err)
		}
	}
	logger.Infof("✅ Engine weights swapped to v%d", next.Version)
	return nil
}

func (m *Manager) maybeLearn() {
	if m.learn == nil || time.Since(m.lastLearn) < m.learnEvery {
		return
	}
	since := m.lastLearn
	m.lastLearn = time.Now().UTC()
	if err := m.Learn(since); err != nil {
		logger.Warnf("⚠️ Weight tuning failed: %v", err)
	}
}

// Run executes decision cycles until the context is canceled
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	logger.Infof("✅ Trading loop started (interval %s)", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Trading loop stopped")
			return
		case <-ticker.C:
			if err := m.RunCycle(ctx); err != nil {
				logger.Errorf("❌ Decision cycle failed: %v", err)
			}
			m.maybeLearn()
		}
	}
}

// RunCycle performs one full decide-execute-record cycle
func (m *Manager) RunCycle(ctx context.Context) error {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	snap, err := m.provider.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot failed: %w", err)
	}

	m.purgeStale(snap)
	working := m.withoutInFlight(snap)

	decision := m.engine.Decide(working)
	record := m.logDecision(working, decision)

	for _, fn := range m.listeners {
		fn(record)
	}

	if !decision.ShouldClose {
		return nil
	}

	positions := make([]engine.PositionRecord, 0, len(decision.Tickets))
	for _, ticket := range decision.Tickets {
		if pos, ok := working.Position(ticket); ok {
			positions = append(positions, pos)
		}
	}

	m.markInFlight(decision.Tickets)
	results, err := m.executor.Close(ctx, positions)
	if err != nil {
		m.clearInFlight(decision.Tickets)
		return fmt.Errorf("executor failed: %w", err)
	}

	m.applyResults(decision, positions, results, record)
	m.clearInFlight(decision.Tickets)

	if m.notifier != nil {
		m.notifier.NotifyClose(decision, results)
	}
	return nil
}

// purgeStale drops relationships pointing at tickets the broker no
// longer reports
func (m *Manager) purgeStale(snap *engine.PortfolioSnapshot) {
	if snap == nil {
		return
	}
	live := make(map[int64]bool, len(snap.Positions))
	for _, p := range snap.Positions {
		live[p.Ticket] = true
	}
	if removed := m.rel.PurgeStale(live); removed > 0 {
		logger.Warnf("⚠️ Purged %d stale relationship entries", removed)
	}
}

// withoutInFlight filters out positions already being closed so two
// cycles can never select the same ticket
func (m *Manager) withoutInFlight(snap *engine.PortfolioSnapshot) *engine.PortfolioSnapshot {
	if snap == nil {
		return nil
	}
	m.inFlightMu.Lock()
	defer m.inFlightMu.Unlock()
	if len(m.inFlight) == 0 {
		return snap
	}

	filtered := *snap
	filtered.Positions = make([]engine.PositionRecord, 0, len(snap.Positions))
	for _, p := range snap.Positions {
		if !m.inFlight[p.Ticket] {
			filtered.Positions = append(filtered.Positions, p)
		}
	}
	return &filtered
}

func (m *Manager) logDecision(snap *engine.PortfolioSnapshot, d engine.ClosingDecision) *store.DecisionRecord {
	health := engine.AssessHealth(snap, m.engine.Config())
	record := &store.DecisionRecord{
		Timestamp:     d.GeneratedAt,
		ShouldClose:   d.ShouldClose,
		Tickets:       d.Tickets,
		Method:        d.Method,
		ExpectedPnL:   d.ExpectedPnL,
		Confidence:    d.Confidence,
		Reason:        d.Reason,
		Evaluated:     d.Evaluated,
		PositionCount: health.PositionCount,
		MarginLevel:   health.MarginLevel,
		RiskLevel:     string(health.RiskLevel),
	}
	if err := m.st.Decision().LogDecision(record); err != nil {
		logger.Warnf("⚠️ Failed to log decision: %v", err)
	}
	return record
}

// applyResults updates relationships and outcome history for confirmed
// closes, then persists the relationship document
func (m *Manager) applyResults(d engine.ClosingDecision, positions []engine.PositionRecord, results []CloseResult, record *store.DecisionRecord) {
	byTicket := make(map[int64]engine.PositionRecord, len(positions))
	for _, p := range positions {
		byTicket[p.Ticket] = p
	}

	var closed []int64
	for _, r := range results {
		if !r.Success {
			logger.Warnf("⚠️ Close failed for ticket %d: %s", r.Ticket, r.Error)
			continue
		}
		closed = append(closed, r.Ticket)

		pos := byTicket[r.Ticket]
		outcome := &store.CloseOutcome{
			Ticket:     r.Ticket,
			Direction:  string(pos.Direction),
			Lots:       pos.Lots,
			Profit:     r.Profit,
			Strategy:   d.Method,
			OpenedAt:   pos.OpenedAt,
			ClosedAt:   time.Now().UTC(),
			DecisionID: record.ID,
		}
		if err := m.st.Outcome().Record(outcome); err != nil {
			logger.Warnf("⚠️ Failed to record close outcome: %v", err)
		}
	}

	if len(closed) == 0 {
		return
	}

	m.rel.MarkClosed(closed)
	if err := m.rel.Save(); err != nil {
		logger.Errorf("❌ Failed to persist relationships: %v", err)
	}
	logger.Infof("✅ Closed %d/%d tickets via %s", len(closed), len(results), d.Method)
}

func (m *Manager) markInFlight(tickets []int64) {
	m.inFlightMu.Lock()
	defer m.inFlightMu.Unlock()
	for _, t := range tickets {
		m.inFlight[t] = true
	}
}

func (m *Manager) clearInFlight(tickets []int64) {
	m.inFlightMu.Lock()
	defer m.inFlightMu.Unlock()
	for _, t := range tickets {
		delete(m.inFlight, t)
	}
}
