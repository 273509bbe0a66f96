package indicators

// Smoothing selects how the oscillator averages gains and losses.
type Smoothing string

const (
	// SmoothingSMA averages gains/losses with a plain moving average. This is
	// the behavior the backtest was validated against; it reacts faster than
	// the textbook variant because old bars drop out of the window entirely.
	SmoothingSMA Smoothing = "sma"
	// SmoothingWilder applies Wilder's exponential smoothing (textbook RSI).
	SmoothingWilder Smoothing = "wilder"
)

// RSI computes a bounded 0-100 momentum oscillator over the last period bars.
// Returns 100 when there are no losses in the window. With fewer than
// period+1 values the result is 0.
func RSI(values []float64, period int, mode Smoothing) float64 {
	if period <= 0 || len(values) < period+1 {
		return 0
	}
	if mode == SmoothingWilder {
		return rsiWilder(values, period)
	}
	return rsiSMA(values, period)
}

func rsiSMA(values []float64, period int) float64 {
	gain := 0.0
	loss := 0.0
	for i := len(values) - period; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}

	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - (100 / (1 + rs))
}

func rsiWilder(values []float64, period int) float64 {
	// Seed with the mean of the first period deltas, then smooth.
	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
