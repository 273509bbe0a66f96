package strategy

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"swing-engine/internal/indicators"
)

// ErrConfigInvalid marks a malformed override layer. Resolution falls back to
// the next-most-general layer instead of failing the engine.
var ErrConfigInvalid = errors.New("config invalid")

// Override is a partial configuration layer. Only fields present in the YAML
// document override the prior layer; nil pointers keep the inherited value.
type Override struct {
	Oscillator *OscillatorOverride `yaml:"oscillator,omitempty"`
	Divergence *DivergenceOverride `yaml:"divergence,omitempty"`
	Thresholds *ThresholdOverride  `yaml:"thresholds,omitempty"`
	Risk       *RiskOverride       `yaml:"risk,omitempty"`
}

type OscillatorOverride struct {
	Window     *int                  `yaml:"window,omitempty"`
	Oversold   *float64              `yaml:"oversold,omitempty"`
	Overbought *float64              `yaml:"overbought,omitempty"`
	Weight     *float64              `yaml:"weight,omitempty"`
	Smoothing  *indicators.Smoothing `yaml:"smoothing,omitempty"`
}

type DivergenceOverride struct {
	Fast   *int     `yaml:"fast,omitempty"`
	Slow   *int     `yaml:"slow,omitempty"`
	Signal *int     `yaml:"signal,omitempty"`
	Weight *float64 `yaml:"weight,omitempty"`
}

type ThresholdOverride struct {
	MinConfidence *float64 `yaml:"min_confidence,omitempty"`
	StrongSignal  *float64 `yaml:"strong_signal,omitempty"`
}

type RiskOverride struct {
	ProfitTarget    *float64 `yaml:"profit_target,omitempty"`
	StopLoss        *float64 `yaml:"stop_loss,omitempty"`
	MaxHoldDays     *int     `yaml:"max_hold_days,omitempty"`
	ExitOscillator  *float64 `yaml:"exit_oscillator,omitempty"`
	PositionSizePct *float64 `yaml:"position_size_pct,omitempty"`
}

// Document is the on-disk layout of the strategy configuration file. The
// offline parameter tuner rewrites this file; the engine only ever reads it.
type Document struct {
	Default       *Override           `yaml:"default,omitempty"`
	Sectors       map[string]Override `yaml:"sectors,omitempty"`
	Symbols       map[string]Override `yaml:"symbols,omitempty"`
	SymbolSectors map[string]string   `yaml:"symbol_sectors,omitempty"`
}

// Resolver merges default, sector and symbol layers into effective
// per-instrument configurations.
type Resolver struct {
	mu   sync.RWMutex
	path string
	doc  Document
	base InstrumentConfig
}

// NewResolver loads the layered configuration from path. A missing file is
// not an error: the resolver runs on built-in defaults until the file
// appears.
func NewResolver(path string) (*Resolver, error) {
	r := &Resolver{path: path, base: DefaultConfig()}
	if path == "" {
		return r, nil
	}
	if err := r.Reload(); err != nil {
		if os.IsNotExist(err) {
			log.Printf("strategy config %s not found, using defaults", path)
			return r, nil
		}
		return nil, err
	}
	return r, nil
}

// Reload re-reads the configuration file. The coordinator calls this at the
// top of every scan pass so external rewrites take effect without restart.
// On parse failure the previous document is kept.
func (r *Resolver) Reload() error {
	if r.path == "" {
		return nil
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrConfigInvalid, r.path, err)
	}

	base := DefaultConfig()
	if doc.Default != nil {
		base = merge(base, *doc.Default)
	}
	if err := base.Validate(); err != nil {
		return fmt.Errorf("default layer: %w", err)
	}

	r.mu.Lock()
	r.doc = doc
	r.base = base
	r.mu.Unlock()
	return nil
}

// Resolve returns the effective configuration for one symbol. It never
// fails: a layer that is absent or does not validate is skipped and the
// next-most-general layer wins.
func (r *Resolver) Resolve(symbol string) InstrumentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg := r.base

	if sector, ok := r.doc.SymbolSectors[symbol]; ok {
		if ov, ok := r.doc.Sectors[sector]; ok {
			cfg = applyIfValid(cfg, ov, "sector "+sector)
		}
	}
	if ov, ok := r.doc.Symbols[symbol]; ok {
		cfg = applyIfValid(cfg, ov, "symbol "+symbol)
	}
	return cfg
}

func applyIfValid(base InstrumentConfig, ov Override, layer string) InstrumentConfig {
	merged := merge(base, ov)
	if err := merged.Validate(); err != nil {
		log.Printf("ignoring %s override: %v", layer, err)
		return base
	}
	return merged
}

// merge applies a partial layer over a complete config. Instrument overrides
// always win over sector, sector over default; the caller controls order.
func merge(base InstrumentConfig, ov Override) InstrumentConfig {
	out := base
	if o := ov.Oscillator; o != nil {
		setInt(&out.Oscillator.Window, o.Window)
		setFloat(&out.Oscillator.Oversold, o.Oversold)
		setFloat(&out.Oscillator.Overbought, o.Overbought)
		setFloat(&out.Oscillator.Weight, o.Weight)
		if o.Smoothing != nil {
			out.Oscillator.Smoothing = *o.Smoothing
		}
	}
	if d := ov.Divergence; d != nil {
		setInt(&out.Divergence.Fast, d.Fast)
		setInt(&out.Divergence.Slow, d.Slow)
		setInt(&out.Divergence.Signal, d.Signal)
		setFloat(&out.Divergence.Weight, d.Weight)
	}
	if t := ov.Thresholds; t != nil {
		setFloat(&out.Thresholds.MinConfidence, t.MinConfidence)
		setFloat(&out.Thresholds.StrongSignal, t.StrongSignal)
	}
	if rk := ov.Risk; rk != nil {
		setFloat(&out.Risk.ProfitTarget, rk.ProfitTarget)
		setFloat(&out.Risk.StopLoss, rk.StopLoss)
		setInt(&out.Risk.MaxHoldDays, rk.MaxHoldDays)
		setFloat(&out.Risk.ExitOscillator, rk.ExitOscillator)
		setFloat(&out.Risk.PositionSizePct, rk.PositionSizePct)
	}
	return out
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
