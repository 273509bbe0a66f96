package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"swing-engine/internal/broker"
	"swing-engine/internal/events"
	"swing-engine/internal/ledger"
	"swing-engine/internal/risk"
	"swing-engine/internal/strategy"
)

// scriptedBroker serves fixed histories and paper-fills orders at the last
// scripted close, so scan and monitor outcomes are fully deterministic.
type scriptedBroker struct {
	mu        sync.Mutex
	history   map[string][]broker.Bar
	positions map[string]broker.Position
	orders    []broker.Order
	connected bool
}

func newScriptedBroker() *scriptedBroker {
	return &scriptedBroker{
		history:   make(map[string][]broker.Bar),
		positions: make(map[string]broker.Position),
	}
}

func (s *scriptedBroker) setHistory(symbol string, closes []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bars := make([]broker.Bar, len(closes))
	base := time.Now().UTC().Add(-time.Duration(len(closes)) * 24 * time.Hour)
	for i, c := range closes {
		bars[i] = broker.Bar{Time: base.Add(time.Duration(i) * 24 * time.Hour), Open: c, High: c, Low: c, Close: c}
	}
	s.history[symbol] = bars
}

func (s *scriptedBroker) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *scriptedBroker) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *scriptedBroker) FetchHistory(ctx context.Context, symbol string, lookback, barSize time.Duration) ([]broker.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bars, ok := s.history[symbol]
	if !ok {
		return nil, broker.ErrDataUnavailable
	}
	return bars, nil
}

func (s *scriptedBroker) OpenPositions(ctx context.Context) (map[string]broker.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]broker.Position, len(s.positions))
	for k, v := range s.positions {
		out[k] = v
	}
	return out, nil
}

func (s *scriptedBroker) PlaceOrder(ctx context.Context, symbol string, side broker.Side, qty float64) (broker.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bars, ok := s.history[symbol]
	if !ok || len(bars) == 0 {
		return broker.Order{}, broker.ErrOrderRejected
	}
	price := bars[len(bars)-1].Close
	order := broker.Order{
		Ref:       uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Qty:       qty,
		FillPrice: price,
		FilledAt:  time.Now().UTC(),
	}
	s.orders = append(s.orders, order)
	return order, nil
}

func (s *scriptedBroker) IsMarketOpen() bool { return true }

func (s *scriptedBroker) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return broker.ErrConnectionLost
	}
	return nil
}

func declining(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start - step*float64(i)
	}
	return out
}

func flat(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

func newTestCoordinator(t *testing.T, b broker.Broker, maxPositions int) (*Coordinator, *ledger.Manager, *risk.Manager) {
	t.Helper()
	resolver, err := strategy.NewResolver("")
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	book := ledger.NewManager(nil)
	riskMgr := risk.NewManager(book, maxPositions, 100000)
	c := New(Config{
		Watchlist:       []string{"AAPL", "MSFT", "NVDA", "AMZN"},
		HistoryLookback: 60 * 24 * time.Hour,
		BarSize:         24 * time.Hour,
	}, b, resolver, book, riskMgr, nil)
	return c, book, riskMgr
}

func TestScanOpensOnOversoldSignal(t *testing.T) {
	b := newScriptedBroker()
	b.Connect(context.Background())

	// A steady decline leaves the oscillator deep in oversold territory;
	// everything else is flat and produces no signal.
	b.setHistory("AAPL", declining(40, 200, 2))
	b.setHistory("MSFT", flat(40, 300))
	b.setHistory("NVDA", flat(40, 400))
	b.setHistory("AMZN", flat(40, 150))

	c, book, riskMgr := newTestCoordinator(t, b, 5)
	c.setState(StateIdle)

	c.runScan(context.Background())

	pos, held := book.Position("AAPL")
	if !held {
		t.Fatal("expected a position opened on the oversold symbol")
	}
	entryPrice := declining(40, 200, 2)[39]
	if pos.AvgPrice != entryPrice {
		t.Fatalf("avg=%v, expected fill at last close %v", pos.AvgPrice, entryPrice)
	}
	wantQty := float64(riskMgr.PositionSize(entryPrice, 100000, 0.1))
	if pos.Qty != wantQty {
		t.Fatalf("qty=%v, expected sized %v", pos.Qty, wantQty)
	}
	if book.Count() != 1 {
		t.Fatalf("count=%d, expected exactly one position", book.Count())
	}
	if got := c.State(); got != StateIdle {
		t.Fatalf("state=%s, expected IDLE after scan", got)
	}
}

func TestScanSizesWeakSignalAtHalf(t *testing.T) {
	ctx := context.Background()
	b := newScriptedBroker()
	b.Connect(ctx)

	// Last fourteen deltas: four gains of +1 against ten losses of -1.6,
	// putting the oscillator near 20. Confidence lands around 0.33, past
	// the entry bar but short of the strong-signal level.
	closes := flat(20, 100)
	deltas := []float64{1, 1, -1.6, -1.6, -1.6, 1, -1.6, -1.6, 1, -1.6, -1.6, -1.6, -1.6, -1.6}
	price := 100.0
	for _, d := range deltas {
		price += d
		closes = append(closes, price)
	}
	b.setHistory("AAPL", closes)
	b.setHistory("MSFT", flat(40, 300))
	b.setHistory("NVDA", flat(40, 400))
	b.setHistory("AMZN", flat(40, 150))

	c, book, riskMgr := newTestCoordinator(t, b, 5)
	c.setState(StateIdle)

	c.runScan(ctx)

	pos, held := book.Position("AAPL")
	if !held {
		t.Fatal("expected a position on the weakly oversold symbol")
	}
	wantQty := float64(riskMgr.PositionSize(pos.AvgPrice, 100000, 0.05))
	if pos.Qty != wantQty {
		t.Fatalf("qty=%v, expected half-slice sizing %v", pos.Qty, wantQty)
	}
	fullQty := float64(riskMgr.PositionSize(pos.AvgPrice, 100000, 0.1))
	if pos.Qty >= fullQty {
		t.Fatalf("qty=%v, expected less than the full slice %v", pos.Qty, fullQty)
	}
}

func TestMonitorClosesOnProfitTarget(t *testing.T) {
	ctx := context.Background()
	b := newScriptedBroker()
	b.Connect(ctx)

	c, book, riskMgr := newTestCoordinator(t, b, 5)
	c.setState(StateIdle)

	// Position entered at 100; the market now marks it at 105.5 (+5.5%),
	// past the 5% profit target.
	if _, err := book.Open(ctx, "AAPL", 10, 100, nil, "ord-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	b.setHistory("AAPL", flat(40, 105.5))

	c.runMonitor(ctx)

	if _, held := book.Position("AAPL"); held {
		t.Fatal("position still open, expected profit-target close")
	}
	wantPnL := (105.5 - 100.0) * 10
	if got := riskMgr.AvailableCapital(); got != 100000+wantPnL {
		t.Fatalf("available=%v, expected %v after realized gain", got, 100000+wantPnL)
	}
}

func TestMonitorHoldsInsideLimits(t *testing.T) {
	ctx := context.Background()
	b := newScriptedBroker()
	b.Connect(ctx)

	c, book, _ := newTestCoordinator(t, b, 5)
	c.setState(StateIdle)

	if _, err := book.Open(ctx, "AAPL", 10, 100, nil, "ord-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	// Marks at 102 (+2%): inside every limit, and the declining shape keeps
	// the oscillator well under the indicator-exit level.
	b.setHistory("AAPL", declining(40, 180, 2))

	c.runMonitor(ctx)

	if _, held := book.Position("AAPL"); !held {
		t.Fatal("position closed, expected hold inside all limits")
	}
}

func TestMonitorCountsUnmarkedPositionsAtCost(t *testing.T) {
	ctx := context.Background()
	b := newScriptedBroker()
	b.Connect(ctx)

	resolver, err := strategy.NewResolver("")
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	book := ledger.NewManager(nil)
	riskMgr := risk.NewManager(book, 5, 100000)
	bus := events.NewBus()
	c := New(Config{
		Watchlist:       []string{"AAPL"},
		HistoryLookback: 60 * 24 * time.Hour,
		BarSize:         24 * time.Hour,
	}, b, resolver, book, riskMgr, bus)
	c.setState(StateIdle)

	// Most of the capital sits in a position the venue cannot price right
	// now. Its cost basis must still count toward portfolio value, or the
	// pass would report a phantom 85% drawdown.
	if _, err := book.Open(ctx, "AAPL", 100, 850, nil, "ord-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	alerts, unsub := bus.Subscribe(events.EventRiskAlert, 1)
	defer unsub()

	c.runMonitor(ctx)

	select {
	case alert := <-alerts:
		t.Fatalf("unexpected advisory %+v for an unpriced position", alert)
	default:
	}
	if _, held := book.Position("AAPL"); !held {
		t.Fatal("position lost during a pass that could not price it")
	}
}

func TestScanRefusesBeyondPositionLimit(t *testing.T) {
	ctx := context.Background()
	b := newScriptedBroker()
	b.Connect(ctx)

	// Two symbols with clear buy signals but room for only one position.
	b.setHistory("AAPL", declining(40, 200, 2))
	b.setHistory("MSFT", declining(40, 300, 3))
	b.setHistory("NVDA", flat(40, 400))
	b.setHistory("AMZN", flat(40, 150))

	c, book, _ := newTestCoordinator(t, b, 1)
	c.setState(StateIdle)

	c.runScan(ctx)

	if book.Count() != 1 {
		t.Fatalf("count=%d, expected the second buy refused at the limit", book.Count())
	}
	if _, held := book.Position("AAPL"); !held {
		t.Fatal("expected the first watchlist symbol to win the single slot")
	}

	// A whole pass at the limit is skipped outright.
	c.runScan(ctx)
	if book.Count() != 1 {
		t.Fatalf("count=%d, expected no new entries at the limit", book.Count())
	}
}

func TestScanSkipsHeldSymbols(t *testing.T) {
	ctx := context.Background()
	b := newScriptedBroker()
	b.Connect(ctx)
	b.setHistory("AAPL", declining(40, 200, 2))
	b.setHistory("MSFT", flat(40, 300))
	b.setHistory("NVDA", flat(40, 400))
	b.setHistory("AMZN", flat(40, 150))

	c, book, _ := newTestCoordinator(t, b, 5)
	c.setState(StateIdle)

	if _, err := book.Open(ctx, "AAPL", 5, 120, nil, "ord-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	c.runScan(ctx)

	pos, _ := book.Position("AAPL")
	if pos.Qty != 5 || pos.AvgPrice != 120 {
		t.Fatalf("position=%+v, expected untouched (no pyramiding)", pos)
	}
}

func TestHealthFailureMovesToReconnecting(t *testing.T) {
	ctx := context.Background()
	b := newScriptedBroker()

	c, _, _ := newTestCoordinator(t, b, 5)
	c.setState(StateIdle)

	// Broker never connected: the pre-scan health check fails.
	c.runScan(ctx)

	if got := c.State(); got != StateReconnecting {
		t.Fatalf("state=%s, expected RECONNECTING after failed health check", got)
	}
}

func TestManualCloseThroughSellPath(t *testing.T) {
	ctx := context.Background()
	b := newScriptedBroker()
	b.Connect(ctx)
	b.setHistory("AAPL", flat(40, 104))

	c, book, riskMgr := newTestCoordinator(t, b, 5)
	c.setState(StateIdle)

	if _, err := book.Open(ctx, "AAPL", 10, 100, nil, "ord-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	c.manualClose(ctx, "AAPL")

	if _, held := book.Position("AAPL"); held {
		t.Fatal("position still open after manual close")
	}
	if got := riskMgr.AvailableCapital(); got != 100040 {
		t.Fatalf("available=%v, expected 100040 after +40 realized", got)
	}
}

func TestReconcileAdoptsVenuePositions(t *testing.T) {
	ctx := context.Background()
	b := newScriptedBroker()
	b.Connect(ctx)
	b.mu.Lock()
	b.positions["GOOG"] = broker.Position{Symbol: "GOOG", Qty: 3, AvgCost: 140}
	b.mu.Unlock()

	c, book, _ := newTestCoordinator(t, b, 5)

	if err := c.reconcile(ctx); err != nil {
		t.Fatalf("reconcile returned error: %v", err)
	}
	pos, held := book.Position("GOOG")
	if !held {
		t.Fatal("venue-reported position not adopted")
	}
	if pos.Qty != 3 || pos.AvgPrice != 140 {
		t.Fatalf("adopted=%+v, expected qty=3 avg=140", pos)
	}
}
