// Package signal turns a price history into a buy/sell decision with a
// bounded confidence score. The engine is a pure function over its inputs;
// it holds no state between evaluations.
package signal

import (
	"time"

	"swing-engine/internal/broker"
	"swing-engine/internal/indicators"
	"swing-engine/internal/strategy"
)

// crossNorm normalizes the divergence-crossover magnitude into [0,1]. The
// constant comes from the parameter set the strategy was tuned with.
const crossNorm = 0.5

// Result is the outcome of evaluating one symbol at one point in time.
// Ephemeral: consumed by the coordinator, never persisted.
type Result struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Oscillator float64   `json:"oscillator"`
	Divergence float64   `json:"divergence"`
	SignalLine float64   `json:"signal_line"`
	Buy        bool      `json:"buy"`
	Sell       bool      `json:"sell"`
	Confidence float64   `json:"confidence"`
	Reasons    Reasons   `json:"reasons"`
	Time       time.Time `json:"time"`
}

// Reasons records which sub-conditions fired, for the audit snapshot.
type Reasons struct {
	OversoldOsc   bool `json:"oversold_osc"`
	OverboughtOsc bool `json:"overbought_osc"`
	BullishCross  bool `json:"bullish_cross"`
	BearishCross  bool `json:"bearish_cross"`
}

// Actionable reports whether the result clears the configured confidence bar
// in the buy direction.
func (r Result) Actionable(minConfidence float64) bool {
	return r.Buy && r.Confidence >= minConfidence
}

// Strong reports whether the confidence clears the strong-signal threshold.
// Strong entries take the full configured position slice; merely actionable
// ones are sized at half.
func (r Result) Strong(threshold float64) bool {
	return threshold > 0 && r.Confidence >= threshold
}

// Evaluate computes the oscillator and divergence indicator over bars and
// derives the combined decision. With fewer bars than the config's minimum
// window it returns a neutral result rather than an error.
func Evaluate(symbol string, bars []broker.Bar, cfg strategy.InstrumentConfig) Result {
	res := Result{Symbol: symbol, Time: time.Now().UTC()}
	if len(bars) > 0 {
		res.Price = bars[len(bars)-1].Close
	}
	if len(bars) < cfg.MinBars() {
		return res
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	res.Oscillator = indicators.RSI(closes, cfg.Oscillator.Window, cfg.Oscillator.Smoothing)

	macd := indicators.MACD(closes, cfg.Divergence.Fast, cfg.Divergence.Slow, cfg.Divergence.Signal)
	last := len(closes) - 1
	res.Divergence = macd.Line[last]
	res.SignalLine = macd.Signal[last]
	prevDiv := macd.Line[last-1]
	prevSig := macd.Signal[last-1]

	res.Reasons.OversoldOsc = res.Oscillator < cfg.Oscillator.Oversold
	res.Reasons.OverboughtOsc = res.Oscillator > cfg.Oscillator.Overbought
	res.Reasons.BullishCross = res.Divergence > res.SignalLine && prevDiv <= prevSig
	res.Reasons.BearishCross = res.Divergence < res.SignalLine && prevDiv >= prevSig

	res.Buy = res.Reasons.OversoldOsc || res.Reasons.BullishCross
	res.Sell = res.Reasons.OverboughtOsc || res.Reasons.BearishCross
	res.Confidence = confidence(res, cfg)
	return res
}

func confidence(r Result, cfg strategy.InstrumentConfig) float64 {
	c := 0.0

	// Contribution (a): distance past the oscillator threshold.
	if r.Reasons.OversoldOsc && cfg.Oscillator.Oversold > 0 {
		c += (cfg.Oscillator.Oversold - r.Oscillator) / cfg.Oscillator.Oversold
	} else if r.Reasons.OverboughtOsc && cfg.Oscillator.Overbought < 100 {
		c += (r.Oscillator - cfg.Oscillator.Overbought) / (100 - cfg.Oscillator.Overbought)
	}

	// Contribution (b): crossover magnitude.
	if r.Reasons.BullishCross || r.Reasons.BearishCross {
		hist := r.Divergence - r.SignalLine
		if hist < 0 {
			hist = -hist
		}
		b := hist / crossNorm
		if b > 1 {
			b = 1
		}
		c += b
	}

	// Double confirmation: both families agreeing pins confidence to 1.
	if (r.Reasons.OversoldOsc && r.Reasons.BullishCross) ||
		(r.Reasons.OverboughtOsc && r.Reasons.BearishCross) {
		return 1.0
	}

	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}
