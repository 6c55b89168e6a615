package relation

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store in-memory relationship registry with JSON file persistence.
// Safe for concurrent use; the decision engine reads it, the host
// trading loop mutates it after execution reports.
type Store struct {
	mu sync.RWMutex

	path    string
	pairs   map[string]*Pair
	balance map[int64]*BalancePosition
	groups  map[string]*Group

	// sections of the document we don't understand, kept for round-trip
	extra map[string]jsonRaw

	version   int
	updatedAt time.Time
}

// NewStore creates an empty store persisting to the given path
func NewStore(path string) *Store {
	return &Store{
		path:    path,
		pairs:   make(map[string]*Pair),
		balance: make(map[int64]*BalancePosition),
		groups:  make(map[string]*Group),
		extra:   make(map[string]jsonRaw),
		version: documentVersion,
	}
}

// AddPair registers a drag-recovery pair
func (s *Store) AddPair(p Pair) error {
	if p.PrimaryTicket <= 0 || p.RecoveryTicket <= 0 {
		return fmt.Errorf("invalid pair tickets: %d/%d", p.PrimaryTicket, p.RecoveryTicket)
	}
	if p.PrimaryTicket == p.RecoveryTicket {
		return fmt.Errorf("pair cannot link ticket %d to itself", p.PrimaryTicket)
	}
	if p.Type != PairBuyDrag && p.Type != PairSellDrag {
		return fmt.Errorf("unknown pair type: %s", p.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.pairs {
		if existing.Status != StatusActive {
			continue
		}
		if existing.Contains(p.PrimaryTicket) || existing.Contains(p.RecoveryTicket) {
			return fmt.Errorf("ticket already in active pair %s", existing.Key())
		}
	}

	if p.Status == "" {
		p.Status = StatusActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.pairs[p.Key()] = &p
	s.touch()
	return nil
}

// ActivePairFor returns the active pair containing the ticket, if any
func (s *Store) ActivePairFor(ticket int64) (Pair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.pairs {
		if p.Status == StatusActive && p.Contains(ticket) {
			return *p, true
		}
	}
	return Pair{}, false
}

// ActivePairs returns all active pairs sorted by creation time
func (s *Store) ActivePairs() []Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Pair
	for _, p := range s.pairs {
		if p.Status == StatusActive {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// CompletePair marks a pair completed
func (s *Store) CompletePair(key string) error {
	return s.finishPair(key, StatusCompleted)
}

// FailPair marks a pair failed
func (s *Store) FailPair(key string) error {
	return s.finishPair(key, StatusFailed)
}

func (s *Store) finishPair(key string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pairs[key]
	if !ok {
		return fmt.Errorf("pair %s: %w", key, ErrNotFound)
	}
	p.Status = status
	p.ClosedAt = time.Now().UTC()
	s.touch()
	return nil
}

// AddBalancePosition registers a special-purpose position
func (s *Store) AddBalancePosition(b BalancePosition) error {
	if b.Ticket <= 0 {
		return fmt.Errorf("invalid balance ticket: %d", b.Ticket)
	}
	if b.Direction != "long" && b.Direction != "short" {
		return fmt.Errorf("invalid balance direction: %s", b.Direction)
	}
	switch b.Purpose {
	case PurposeBalance, PurposeForceCounter, PurposeZoneDefense:
	default:
		return fmt.Errorf("unknown balance purpose: %s", b.Purpose)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	s.balance[b.Ticket] = &b
	s.touch()
	return nil
}

// BalancePurpose returns the purpose of a tracked balance position
func (s *Store) BalancePurpose(ticket int64) (Purpose, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.balance[ticket]
	if !ok {
		return "", false
	}
	return b.Purpose, true
}

// BalancePositions returns all tracked balance positions
func (s *Store) BalancePositions() []BalancePosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []BalancePosition
	for _, b := range s.balance {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out
}

// RemoveBalancePosition drops a balance position from tracking
func (s *Store) RemoveBalancePosition(ticket int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balance[ticket]; ok {
		delete(s.balance, ticket)
		s.touch()
	}
}

// CreateGroup registers a recovery group over the given tickets
func (s *Store) CreateGroup(tickets []int64, groupType string, targetProfit float64, priority int) (string, error) {
	if len(tickets) < 2 {
		return "", fmt.Errorf("group needs at least 2 tickets, got %d", len(tickets))
	}
	if priority < 1 || priority > 5 {
		return "", fmt.Errorf("group priority out of range: %d", priority)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g := &Group{
		ID:           uuid.New().String(),
		Tickets:      append([]int64(nil), tickets...),
		Type:         groupType,
		TargetProfit: targetProfit,
		Priority:     priority,
		Status:       StatusActive,
		CreatedAt:    time.Now().UTC(),
	}
	s.groups[g.ID] = g
	s.touch()
	return g.ID, nil
}

// GroupFor returns the active group containing the ticket, if any
func (s *Store) GroupFor(ticket int64) (Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if g.Status == StatusActive && g.Contains(ticket) {
			return *g, true
		}
	}
	return Group{}, false
}

// ActiveGroups returns all active groups sorted by priority, urgent first
func (s *Store) ActiveGroups() []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Group
	for _, g := range s.groups {
		if g.Status == StatusActive {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// DissolveGroup marks a group completed and releases its members
func (s *Store) DissolveGroup(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	g.Status = StatusCompleted
	s.touch()
	return nil
}

// MarkClosed updates relationship bookkeeping after tickets were closed:
// pairs touching a closed ticket complete, balance tracking for closed
// tickets is dropped, and groups shed closed members (dissolving when
// fewer than two remain).
func (s *Store) MarkClosed(tickets []int64) {
	if len(tickets) == 0 {
		return
	}
	closed := make(map[int64]bool, len(tickets))
	for _, t := range tickets {
		closed[t] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, p := range s.pairs {
		if p.Status == StatusActive && (closed[p.PrimaryTicket] || closed[p.RecoveryTicket]) {
			p.Status = StatusCompleted
			p.ClosedAt = now
		}
	}
	for t := range closed {
		delete(s.balance, t)
	}
	for _, g := range s.groups {
		if g.Status != StatusActive {
			continue
		}
		var remaining []int64
		for _, t := range g.Tickets {
			if !closed[t] {
				remaining = append(remaining, t)
			}
		}
		if len(remaining) == len(g.Tickets) {
			continue
		}
		g.Tickets = remaining
		if len(remaining) < 2 {
			g.Status = StatusCompleted
		}
	}
	s.touch()
}

// PurgeStale drops relationships whose tickets no longer exist on the
// account. Returns the number of entries removed.
func (s *Store) PurgeStale(live map[int64]bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, p := range s.pairs {
		if p.Status != StatusActive {
			continue
		}
		if !live[p.PrimaryTicket] || !live[p.RecoveryTicket] {
			delete(s.pairs, key)
			removed++
		}
	}
	for t := range s.balance {
		if !live[t] {
			delete(s.balance, t)
			removed++
		}
	}
	for id, g := range s.groups {
		if g.Status != StatusActive {
			continue
		}
		var remaining []int64
		for _, t := range g.Tickets {
			if live[t] {
				remaining = append(remaining, t)
			}
		}
		if len(remaining) == len(g.Tickets) {
			continue
		}
		g.Tickets = remaining
		if len(remaining) < 2 {
			delete(s.groups, id)
			removed++
		}
	}
	if removed > 0 {
		s.touch()
	}
	return removed
}

// Summarize reports section counts for status endpoints
func (s *Store) Summarize() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{
		BalancePositions: len(s.balance),
		Version:          s.version,
		UpdatedAt:        s.updatedAt,
	}
	for _, p := range s.pairs {
		switch p.Status {
		case StatusActive:
			sum.ActivePairs++
		case StatusCompleted:
			sum.CompletedPairs++
		}
	}
	for _, g := range s.groups {
		if g.Status == StatusActive {
			sum.ActiveGroups++
		}
	}
	return sum
}

// touch must be called with the write lock held
func (s *Store) touch() {
	s.updatedAt = time.Now().UTC()
}
