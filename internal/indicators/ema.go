package indicators

// EMA returns the exponential moving average series for the given period.
// The first value seeds the series, matching the pandas ewm default the
// original strategy parameters were tuned with.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	alpha := 2.0 / (float64(period) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// SMA calculates the simple moving average for the last period values.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}
