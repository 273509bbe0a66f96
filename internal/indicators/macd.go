package indicators

// MACDResult holds the divergence line and its signal line, aligned with the
// input series.
type MACDResult struct {
	Line   []float64
	Signal []float64
}

// MACD computes the fast/slow EMA divergence and its EMA signal line.
// Histogram values are Line[i]-Signal[i]; callers derive them as needed.
func MACD(values []float64, fast, slow, signal int) MACDResult {
	if len(values) == 0 || fast <= 0 || slow <= 0 || signal <= 0 {
		return MACDResult{}
	}

	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)

	line := make([]float64, len(values))
	for i := range values {
		line[i] = fastEMA[i] - slowEMA[i]
	}

	return MACDResult{
		Line:   line,
		Signal: EMA(line, signal),
	}
}
