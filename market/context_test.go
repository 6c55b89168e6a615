package market

import (
	"testing"
	"time"
)

func TestSessionAt(t *testing.T) {
	tests := []struct {
		hour int
		want Session
	}{
		{23, SessionAsian},
		{3, SessionAsian},
		{6, SessionAsian},
		{7, SessionLondon},
		{11, SessionLondon},
		{12, SessionNewYork},
		{20, SessionNewYork},
		{21, SessionQuiet},
		{22, SessionAsian},
	}
	for _, tt := range tests {
		ts := time.Date(2025, 6, 2, tt.hour, 30, 0, 0, time.UTC)
		if got := SessionAt(ts); got != tt.want {
			t.Errorf("SessionAt(%02d:30) = %s, want %s", tt.hour, got, tt.want)
		}
	}
}

func TestTimingTiers(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want TimingTier
	}{
		{
			name: "低波动强趋势_极佳",
			ctx:  Context{Volatility: 0.1, TrendStrength: 0.9, VolumeQuality: 0.9, Session: SessionLondon},
			want: TimingExcellent,
		},
		{
			name: "中性市场_一般",
			ctx:  Context{Volatility: 0.5, TrendStrength: 0.5, VolumeQuality: 0.5, Session: SessionLondon},
			want: TimingFair,
		},
		{
			name: "高波动弱趋势_较差",
			ctx:  Context{Volatility: 0.8, TrendStrength: 0.3, VolumeQuality: 0.3, Session: SessionNewYork},
			want: TimingPoor,
		},
		{
			name: "极端恶劣",
			ctx:  Context{Volatility: 1.0, TrendStrength: 0, VolumeQuality: 0, Session: SessionQuiet},
			want: TimingAvoid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.Timing(); got != tt.want {
				t.Errorf("Timing() = %s (score %.2f), want %s", got, tt.ctx.TimingScore(), tt.want)
			}
		})
	}
}

func TestInvalidContextIsNeutral(t *testing.T) {
	bad := Context{Volatility: 1.5, TrendStrength: 0.5, VolumeQuality: 0.5, Session: SessionLondon}
	if bad.Valid() {
		t.Fatal("volatility above 1 must be invalid")
	}
	if got := bad.TimingScore(); got != 0.5 {
		t.Errorf("invalid context TimingScore = %.2f, want neutral 0.5", got)
	}
	if got := bad.TimingFactor(); got != 1.0 {
		t.Errorf("invalid context TimingFactor = %.2f, want 1.0", got)
	}
}

// 零值 Context（无行情来源）必须走中性回退，而不是被当成零波动的平静市场
func TestZeroContextIsNeutral(t *testing.T) {
	var zero Context
	if zero.Valid() {
		t.Fatal("zero-value context must be invalid")
	}
	if got := zero.TimingScore(); got != 0.5 {
		t.Errorf("zero context TimingScore = %.2f, want neutral 0.5", got)
	}
	if got := zero.Timing(); got != TimingFair {
		t.Errorf("zero context Timing = %s, want fair", got)
	}
	if got := zero.ConfidenceBonus(); got != 0 {
		t.Errorf("zero context ConfidenceBonus = %.0f, want 0", got)
	}
	unknown := Context{Volatility: 0.5, TrendStrength: 0.5, VolumeQuality: 0.5, Session: "tokyo"}
	if unknown.Valid() {
		t.Fatal("unknown session must be invalid")
	}
}

func TestTimingFactorRange(t *testing.T) {
	for vol := 0.0; vol <= 1.0; vol += 0.1 {
		for trend := 0.0; trend <= 1.0; trend += 0.25 {
			ctx := Context{Volatility: vol, TrendStrength: trend, VolumeQuality: 0.5, Session: SessionLondon}
			f := ctx.TimingFactor()
			if f < 0.9 || f > 1.1 {
				t.Errorf("TimingFactor(vol=%.1f, trend=%.2f) = %.2f outside [0.9, 1.1]", vol, trend, f)
			}
			b := ctx.ConfidenceBonus()
			if b < -20 || b > 20 {
				t.Errorf("ConfidenceBonus = %.0f outside [-20, 20]", b)
			}
		}
	}
}

func TestDefaultContextIsValid(t *testing.T) {
	ctx := DefaultContext()
	if !ctx.Valid() {
		t.Fatal("default context must be valid")
	}
	if ctx.Timing() != TimingFair {
		t.Errorf("default context timing = %s, want fair", ctx.Timing())
	}
	if ctx.News != NewsNone {
		t.Errorf("default news = %s, want none", ctx.News)
	}
}
