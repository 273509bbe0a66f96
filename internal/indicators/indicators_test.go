package indicators

import (
	"math"
	"testing"
)

func TestRSIBounds(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		period int
		mode   Smoothing
		want   float64
	}{
		{
			name:   "all gains pins to 100",
			values: []float64{1, 2, 3, 4, 5, 6},
			period: 5,
			mode:   SmoothingSMA,
			want:   100,
		},
		{
			name:   "short history returns 0",
			values: []float64{1, 2, 3},
			period: 5,
			mode:   SmoothingSMA,
			want:   0,
		},
		{
			name:   "zero period returns 0",
			values: []float64{1, 2, 3, 4, 5, 6},
			period: 0,
			mode:   SmoothingSMA,
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RSI(tt.values, tt.period, tt.mode)
			if got != tt.want {
				t.Fatalf("RSI=%v, expected %v", got, tt.want)
			}
		})
	}
}

func TestRSIBalancedMoves(t *testing.T) {
	// Equal gains and losses inside the window put RS at 1 and RSI at 50.
	values := []float64{10, 11, 10, 11, 10, 11, 10}
	got := RSI(values, 6, SmoothingSMA)
	if math.Abs(got-50) > 1e-9 {
		t.Fatalf("RSI=%v, expected 50", got)
	}
}

func TestRSISmoothingModesDiverge(t *testing.T) {
	// A large old loss followed by steady gains: the plain average forgets
	// the loss once it leaves the window, Wilder's smoothing still carries it.
	values := []float64{100, 80, 81, 82, 83, 84, 85, 86, 87, 88, 89, 90}
	period := 5

	sma := RSI(values, period, SmoothingSMA)
	wilder := RSI(values, period, SmoothingWilder)

	if sma != 100 {
		t.Fatalf("SMA mode RSI=%v, expected 100 with no losses in window", sma)
	}
	if wilder >= 100 {
		t.Fatalf("Wilder mode RSI=%v, expected < 100 (old loss still smoothed in)", wilder)
	}
}

func TestEMASeedsWithFirstValue(t *testing.T) {
	values := []float64{10, 20, 30}
	out := EMA(values, 3)
	if len(out) != len(values) {
		t.Fatalf("len=%d, expected %d", len(out), len(values))
	}
	if out[0] != 10 {
		t.Fatalf("out[0]=%v, expected first value 10", out[0])
	}
	// alpha = 0.5 for period 3
	if math.Abs(out[1]-15) > 1e-9 {
		t.Fatalf("out[1]=%v, expected 15", out[1])
	}
	if math.Abs(out[2]-22.5) > 1e-9 {
		t.Fatalf("out[2]=%v, expected 22.5", out[2])
	}
}

func TestMACDAlignedWithInput(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 100 + float64(i)
	}
	res := MACD(values, 12, 26, 9)
	if len(res.Line) != len(values) || len(res.Signal) != len(values) {
		t.Fatalf("lengths line=%d signal=%d, expected %d", len(res.Line), len(res.Signal), len(values))
	}
	// A steady uptrend keeps the fast EMA above the slow one.
	if res.Line[len(values)-1] <= 0 {
		t.Fatalf("divergence=%v, expected positive in an uptrend", res.Line[len(values)-1])
	}
}

func TestSMA(t *testing.T) {
	if got := SMA([]float64{1, 2, 3, 4}, 2); got != 3.5 {
		t.Fatalf("SMA=%v, expected 3.5", got)
	}
	if got := SMA([]float64{1}, 2); got != 0 {
		t.Fatalf("SMA=%v, expected 0 on short input", got)
	}
}
