// Package market describes the market backdrop the closing engine works
// against: volatility, trend and session state collapsed into timing tiers.
// No price feed lives here; the host supplies readings and everything
// degrades to neutral when it doesn't.
package market

import "time"

// Session trading session for gold (UTC based)
type Session string

const (
	SessionAsian   Session = "asian"
	SessionLondon  Session = "london"
	SessionNewYork Session = "newyork"
	SessionQuiet   Session = "quiet"
)

// TimingTier how favorable current conditions are for closing
type TimingTier string

const (
	TimingExcellent TimingTier = "excellent"
	TimingGood      TimingTier = "good"
	TimingFair      TimingTier = "fair"
	TimingPoor      TimingTier = "poor"
	TimingAvoid     TimingTier = "avoid"
)

// NewsImpact scheduled-news pressure tier
type NewsImpact string

const (
	NewsNone   NewsImpact = "none"
	NewsLow    NewsImpact = "low"
	NewsMedium NewsImpact = "medium"
	NewsHigh   NewsImpact = "high"
)

// Context market conditions snapshot; all ratios in [0, 1]
type Context struct {
	Volatility     float64    `json:"volatility"`
	TrendStrength  float64    `json:"trend_strength"`
	TrendDirection string     `json:"trend_direction"` // up, down, sideways
	VolumeQuality  float64    `json:"volume_quality"`
	Session        Session    `json:"session"`
	News           NewsImpact `json:"news"`
}

// DefaultContext returns the neutral backdrop used when no feed is attached
func DefaultContext() Context {
	return Context{
		Volatility:     0.5,
		TrendStrength:  0.5,
		TrendDirection: "sideways",
		VolumeQuality:  0.5,
		Session:        SessionAt(time.Now().UTC()),
		News:           NewsNone,
	}
}

// Valid reports whether all readings are inside expected ranges. The
// zero value fails it: an absent context must land on the neutral
// fallback, not pass as a perfectly calm market.
func (c Context) Valid() bool {
	switch c.Session {
	case SessionAsian, SessionLondon, SessionNewYork, SessionQuiet:
	default:
		return false
	}
	inUnit := func(v float64) bool { return v >= 0 && v <= 1 }
	return inUnit(c.Volatility) && inUnit(c.TrendStrength) && inUnit(c.VolumeQuality)
}

// TimingScore collapses conditions into one closing-favorability ratio.
// Calm markets with a clear trend and healthy volume score high.
func (c Context) TimingScore() float64 {
	if !c.Valid() {
		return 0.5
	}
	return (1-c.Volatility)*0.4 + c.TrendStrength*0.3 + c.VolumeQuality*0.3
}

// Timing buckets the timing score into tiers
func (c Context) Timing() TimingTier {
	score := c.TimingScore()
	switch {
	case score >= 0.8:
		return TimingExcellent
	case score >= 0.6:
		return TimingGood
	case score >= 0.4:
		return TimingFair
	case score >= 0.2:
		return TimingPoor
	default:
		return TimingAvoid
	}
}

// TimingFactor multiplier applied to combination scores
func (c Context) TimingFactor() float64 {
	switch c.Timing() {
	case TimingExcellent:
		return 1.1
	case TimingGood:
		return 1.05
	case TimingPoor:
		return 0.95
	case TimingAvoid:
		return 0.9
	default:
		return 1.0
	}
}

// ConfidenceBonus additive confidence adjustment per timing tier
func (c Context) ConfidenceBonus() float64 {
	switch c.Timing() {
	case TimingExcellent:
		return 20
	case TimingGood:
		return 10
	case TimingPoor:
		return -10
	case TimingAvoid:
		return -20
	default:
		return 0
	}
}

// SessionAt maps a UTC time to the dominant gold trading session
func SessionAt(t time.Time) Session {
	h := t.UTC().Hour()
	switch {
	case h >= 22 || h < 7:
		return SessionAsian
	case h < 12:
		return SessionLondon
	case h < 21:
		return SessionNewYork
	default:
		return SessionQuiet
	}
}
