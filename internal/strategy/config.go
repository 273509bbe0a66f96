package strategy

import (
	"fmt"

	"swing-engine/internal/indicators"
)

// OscillatorConfig parameterizes the RSI-style bounded oscillator.
type OscillatorConfig struct {
	Window     int                  `yaml:"window" json:"window"`
	Oversold   float64              `yaml:"oversold" json:"oversold"`
	Overbought float64              `yaml:"overbought" json:"overbought"`
	Weight     float64              `yaml:"weight" json:"weight"`
	Smoothing  indicators.Smoothing `yaml:"smoothing" json:"smoothing"`
}

// DivergenceConfig parameterizes the MACD-style divergence indicator.
type DivergenceConfig struct {
	Fast   int     `yaml:"fast" json:"fast"`
	Slow   int     `yaml:"slow" json:"slow"`
	Signal int     `yaml:"signal" json:"signal"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// ThresholdConfig bounds signal acceptance.
type ThresholdConfig struct {
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"`
	StrongSignal  float64 `yaml:"strong_signal" json:"strong_signal"`
}

// RiskConfig carries the per-instrument exit and sizing parameters.
type RiskConfig struct {
	ProfitTarget    float64 `yaml:"profit_target" json:"profit_target"`
	StopLoss        float64 `yaml:"stop_loss" json:"stop_loss"`
	MaxHoldDays     int     `yaml:"max_hold_days" json:"max_hold_days"`
	ExitOscillator  float64 `yaml:"exit_oscillator" json:"exit_oscillator"`
	PositionSizePct float64 `yaml:"position_size_pct" json:"position_size_pct"`
}

// InstrumentConfig is the fully resolved parameter set for one symbol.
// It is recomputed on every Resolve call and never mutated by callers.
type InstrumentConfig struct {
	Oscillator OscillatorConfig `yaml:"oscillator" json:"oscillator"`
	Divergence DivergenceConfig `yaml:"divergence" json:"divergence"`
	Thresholds ThresholdConfig  `yaml:"thresholds" json:"thresholds"`
	Risk       RiskConfig       `yaml:"risk" json:"risk"`
}

// MinBars is the shortest price history Evaluate accepts for this config.
func (c InstrumentConfig) MinBars() int {
	n := c.Oscillator.Window
	if c.Divergence.Slow > n {
		n = c.Divergence.Slow
	}
	return n + 2
}

// Validate rejects configs a live engine must never run with.
func (c InstrumentConfig) Validate() error {
	if c.Oscillator.Window < 1 {
		return fmt.Errorf("%w: oscillator window %d < 1", ErrConfigInvalid, c.Oscillator.Window)
	}
	if c.Oscillator.Oversold < 0 || c.Oscillator.Overbought > 100 {
		return fmt.Errorf("%w: oscillator thresholds outside [0,100]", ErrConfigInvalid)
	}
	if c.Oscillator.Oversold >= c.Oscillator.Overbought {
		return fmt.Errorf("%w: oversold %.1f >= overbought %.1f",
			ErrConfigInvalid, c.Oscillator.Oversold, c.Oscillator.Overbought)
	}
	if c.Divergence.Fast < 1 || c.Divergence.Slow < 1 || c.Divergence.Signal < 1 {
		return fmt.Errorf("%w: divergence periods must be >= 1", ErrConfigInvalid)
	}
	if c.Divergence.Fast >= c.Divergence.Slow {
		return fmt.Errorf("%w: divergence fast %d >= slow %d",
			ErrConfigInvalid, c.Divergence.Fast, c.Divergence.Slow)
	}
	if c.Thresholds.MinConfidence < 0 || c.Thresholds.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence %.2f outside [0,1]",
			ErrConfigInvalid, c.Thresholds.MinConfidence)
	}
	if c.Risk.ProfitTarget <= 0 || c.Risk.StopLoss <= 0 {
		return fmt.Errorf("%w: profit_target and stop_loss must be positive", ErrConfigInvalid)
	}
	if c.Risk.PositionSizePct <= 0 || c.Risk.PositionSizePct > 1 {
		return fmt.Errorf("%w: position_size_pct %.2f outside (0,1]",
			ErrConfigInvalid, c.Risk.PositionSizePct)
	}
	return nil
}

// DefaultConfig mirrors the parameters the strategy was backtested with.
func DefaultConfig() InstrumentConfig {
	return InstrumentConfig{
		Oscillator: OscillatorConfig{
			Window:     14,
			Oversold:   30,
			Overbought: 70,
			Weight:     0.4,
			Smoothing:  indicators.SmoothingSMA,
		},
		Divergence: DivergenceConfig{
			Fast:   12,
			Slow:   26,
			Signal: 9,
			Weight: 0.3,
		},
		Thresholds: ThresholdConfig{
			MinConfidence: 0.15,
			StrongSignal:  0.6,
		},
		Risk: RiskConfig{
			ProfitTarget:    0.05,
			StopLoss:        0.08,
			MaxHoldDays:     10,
			ExitOscillator:  70,
			PositionSizePct: 0.1,
		},
	}
}
