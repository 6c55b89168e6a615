package tuner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"goldclose/engine"
	"goldclose/logger"
)

// LoadWeights reads a weight snapshot from disk. A missing file yields
// the defaults; a corrupt or invalid one yields the defaults with a
// warning, so a bad tuner run can never stop the bot.
func LoadWeights(path string) engine.Weights {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("⚠️ Weights file unreadable, using defaults: %v", err)
		}
		return engine.DefaultWeights()
	}

	var w engine.Weights
	if err := json.Unmarshal(data, &w); err != nil {
		logger.Warnf("⚠️ Weights file corrupt, using defaults: %v", err)
		return engine.DefaultWeights()
	}
	if err := w.Validate(); err != nil {
		logger.Warnf("⚠️ Stored weights invalid (%v), using defaults", err)
		return engine.DefaultWeights()
	}
	return w
}

// SaveWeights writes a weight snapshot atomically
func SaveWeights(path string, w engine.Weights) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid weights: %w", err)
	}

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create weights dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp weights file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to swap weights file: %w", err)
	}
	return nil
}
