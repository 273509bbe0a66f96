package broker

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"swing-engine/pkg/cache"
)

// Throttled wraps a Broker with a request budget so a wide watchlist cannot
// hammer the venue's API limits during a scan pass. Bar histories are cached
// briefly so a monitor pass right after a scan reuses the same data.
type Throttled struct {
	inner Broker
	lim   *rate.Limiter
	hist  *cache.Sharded[[]Bar]
}

// Throttle allows roughly rps venue calls per second with a small burst.
// historyTTL bounds how long fetched histories are reused; zero disables
// the cache.
func Throttle(b Broker, rps float64, historyTTL time.Duration) *Throttled {
	if rps <= 0 {
		rps = 5
	}
	t := &Throttled{
		inner: b,
		lim:   rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
	if historyTTL > 0 {
		t.hist = cache.New[[]Bar](historyTTL)
	}
	return t
}

func (t *Throttled) Connect(ctx context.Context) error { return t.inner.Connect(ctx) }
func (t *Throttled) Disconnect() error                 { return t.inner.Disconnect() }
func (t *Throttled) IsMarketOpen() bool                { return t.inner.IsMarketOpen() }

func (t *Throttled) FetchHistory(ctx context.Context, symbol string, lookback, barSize time.Duration) ([]Bar, error) {
	if t.hist != nil {
		if bars, ok := t.hist.Get(symbol); ok {
			return bars, nil
		}
	}
	if err := t.lim.Wait(ctx); err != nil {
		return nil, err
	}
	bars, err := t.inner.FetchHistory(ctx, symbol, lookback, barSize)
	if err != nil {
		return nil, err
	}
	if t.hist != nil {
		t.hist.Set(symbol, bars)
	}
	return bars, nil
}

func (t *Throttled) OpenPositions(ctx context.Context) (map[string]Position, error) {
	if err := t.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.OpenPositions(ctx)
}

func (t *Throttled) PlaceOrder(ctx context.Context, symbol string, side Side, qty float64) (Order, error) {
	if err := t.lim.Wait(ctx); err != nil {
		return Order{}, err
	}
	// A fill changes the market view; drop the cached history for the symbol.
	if t.hist != nil {
		t.hist.Delete(symbol)
	}
	return t.inner.PlaceOrder(ctx, symbol, side, qty)
}

func (t *Throttled) HealthCheck(ctx context.Context) error {
	return t.inner.HealthCheck(ctx)
}
