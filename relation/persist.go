package relation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"goldclose/logger"
)

// documentVersion is written on every save. Older documents load fine;
// unknown top-level sections survive a load/save round-trip untouched.
const documentVersion = 2

// ErrNotFound is returned when a pair or group key does not exist
var ErrNotFound = errors.New("relation: not found")

type jsonRaw = json.RawMessage

type document struct {
	Version          int                         `json:"version"`
	UpdatedAt        time.Time                   `json:"last_updated"`
	Pairs            map[string]*Pair            `json:"recovery_pairs"`
	BalancePositions map[string]*BalancePosition `json:"balance_positions"`
	Groups           map[string]*Group           `json:"recovery_groups"`
}

var knownSections = map[string]bool{
	"version":           true,
	"last_updated":      true,
	"recovery_pairs":    true,
	"balance_positions": true,
	"recovery_groups":   true,
}

// Load reads the relationship document from path. A missing or corrupt
// file falls back to the backup, and a broken backup yields an empty
// store: pairing knowledge is an optimization, never a reason to halt.
func Load(path string) *Store {
	s := NewStore(path)

	if err := s.loadFrom(path); err == nil {
		return s
	} else if !os.IsNotExist(err) {
		logger.Warnf("⚠️ Relationship file unreadable, trying backup: %v", err)
	}

	if err := s.loadFrom(backupPath(path)); err == nil {
		logger.Warnf("⚠️ Relationships restored from backup %s", backupPath(path))
		return s
	} else if !os.IsNotExist(err) {
		logger.Warnf("⚠️ Relationship backup unreadable, starting empty: %v", err)
	}

	return NewStore(path)
}

func (s *Store) loadFrom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse relationship document: %w", err)
	}

	// keep sections a newer version may have added
	var raw map[string]jsonRaw
	extra := make(map[string]jsonRaw)
	if err := json.Unmarshal(data, &raw); err == nil {
		for key, val := range raw {
			if !knownSections[key] {
				extra[key] = val
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pairs = make(map[string]*Pair)
	for key, p := range doc.Pairs {
		if p != nil {
			s.pairs[key] = p
		}
	}
	s.balance = make(map[int64]*BalancePosition)
	for _, b := range doc.BalancePositions {
		if b != nil && b.Ticket > 0 {
			s.balance[b.Ticket] = b
		}
	}
	s.groups = make(map[string]*Group)
	for id, g := range doc.Groups {
		if g != nil {
			if g.ID == "" {
				g.ID = id
			}
			s.groups[g.ID] = g
		}
	}
	s.extra = extra
	s.version = documentVersion
	s.updatedAt = doc.UpdatedAt
	return nil
}

// Save writes the document atomically: marshal to a temp file in the
// same directory, rotate the current file to backup, then rename.
func (s *Store) Save() error {
	data, path, err := s.encode()
	if err != nil {
		return err
	}

	if path == "" {
		return errors.New("relation: no persistence path configured")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create relationship dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp relationship file: %w", err)
	}

	// rotate current file to backup before the swap
	if _, err := os.Stat(path); err == nil {
		if current, err := os.ReadFile(path); err == nil {
			if err := os.WriteFile(backupPath(path), current, 0o644); err != nil {
				logger.Warnf("⚠️ Failed to rotate relationship backup: %v", err)
			}
		}
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to swap relationship file: %w", err)
	}
	return nil
}

// encode marshals the document while holding the read lock: the json
// encoder iterates the live maps, so mutators must be kept out until
// it finishes.
func (s *Store) encode() ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := document{
		Version:          s.version,
		UpdatedAt:        s.updatedAt,
		Pairs:            s.pairs,
		BalancePositions: make(map[string]*BalancePosition, len(s.balance)),
		Groups:           s.groups,
	}
	for t, b := range s.balance {
		doc.BalancePositions[fmt.Sprintf("%d", t)] = b
	}

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal relationship document: %w", err)
	}
	if len(s.extra) > 0 {
		if data, err = mergeSections(data, s.extra); err != nil {
			return nil, "", fmt.Errorf("failed to merge retained sections: %w", err)
		}
	}
	return data, s.path, nil
}

func mergeSections(data []byte, extra map[string]jsonRaw) ([]byte, error) {
	var m map[string]jsonRaw
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for key, val := range extra {
		if _, exists := m[key]; !exists {
			m[key] = val
		}
	}
	return json.MarshalIndent(m, "", "  ")
}

func backupPath(path string) string {
	return path + ".bak"
}
