// Package coordinator runs the engine's single control loop: periodic
// watchlist scans, open-position monitoring, and broker connectivity
// handling. Scanning and monitoring never run concurrently; the ledger and
// risk state are only touched from this loop, so they need no external
// locking protocol.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"swing-engine/internal/broker"
	"swing-engine/internal/events"
	"swing-engine/internal/ledger"
	"swing-engine/internal/risk"
	"swing-engine/internal/signal"
	"swing-engine/internal/strategy"
	"swing-engine/pkg/db"
)

// Config tunes the control loop.
type Config struct {
	Watchlist       []string
	ScanInterval    time.Duration
	MonitorInterval time.Duration
	HistoryLookback time.Duration
	BarSize         time.Duration
	ConnectAttempts int
	ConnectBackoff  time.Duration
	SettleDelay     time.Duration
}

func (c *Config) defaults() {
	if c.ScanInterval <= 0 {
		c.ScanInterval = 5 * time.Minute
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = time.Minute
	}
	if c.HistoryLookback <= 0 {
		c.HistoryLookback = 60 * 24 * time.Hour
	}
	if c.BarSize <= 0 {
		c.BarSize = 24 * time.Hour
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 5
	}
	if c.ConnectBackoff <= 0 {
		c.ConnectBackoff = 5 * time.Second
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
}

// Coordinator owns the engine context: resolver, ledger, risk manager and
// the broker collaborator, constructed once and passed in explicitly.
type Coordinator struct {
	cfg      Config
	broker   broker.Broker
	resolver *strategy.Resolver
	ledger   *ledger.Manager
	risk     *risk.Manager
	bus      *events.Bus

	mu    sync.RWMutex
	state State

	scanReq  chan struct{}
	closeReq chan string
}

// New wires the coordinator. The bus may be nil (tests).
func New(cfg Config, b broker.Broker, resolver *strategy.Resolver, lg *ledger.Manager, rk *risk.Manager, bus *events.Bus) *Coordinator {
	cfg.defaults()
	return &Coordinator{
		cfg:      cfg,
		broker:   b,
		resolver: resolver,
		ledger:   lg,
		risk:     rk,
		bus:      bus,
		state:    StateDisconnected,
		scanReq:  make(chan struct{}, 1),
		closeReq: make(chan string, 8),
	}
}

// State returns the current loop state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// RequestScan asks the loop to run a scan pass on its next iteration.
// Used by the control API; it re-enters the normal buy path.
func (c *Coordinator) RequestScan() {
	select {
	case c.scanReq <- struct{}{}:
	default:
	}
}

// RequestClose asks the loop to close one position through the normal sell
// path. The request is dropped if the queue is full.
func (c *Coordinator) RequestClose(symbol string) {
	select {
	case c.closeReq <- symbol:
	default:
		log.Printf("close request for %s dropped: queue full", symbol)
	}
}

// Run drives the state machine until ctx is cancelled or reconnect attempts
// are exhausted. It returns the fatal error, if any.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		c.setState(StateShuttingDown)
		return err
	}
	if err := c.reconcile(ctx); err != nil {
		log.Printf("startup reconciliation failed: %v", err)
	}
	c.setState(StateIdle)

	scanTicker := time.NewTicker(c.cfg.ScanInterval)
	defer scanTicker.Stop()
	monitorTicker := time.NewTicker(c.cfg.MonitorInterval)
	defer monitorTicker.Stop()

	// First scan shortly after start rather than a full interval later.
	c.RequestScan()

	for {
		select {
		case <-ctx.Done():
			return c.shutdown()

		case <-scanTicker.C:
			c.runScan(ctx)

		case <-c.scanReq:
			c.runScan(ctx)

		case <-monitorTicker.C:
			c.runMonitor(ctx)

		case symbol := <-c.closeReq:
			c.manualClose(ctx, symbol)
		}

		if c.State() == StateReconnecting {
			if err := c.reconnect(ctx); err != nil {
				c.setState(StateShuttingDown)
				_ = c.broker.Disconnect()
				return err
			}
		}
		if ctx.Err() != nil {
			return c.shutdown()
		}
	}
}

// runScan evaluates every watchlist symbol not already held and opens
// positions for actionable buy signals. Per-symbol failures are isolated.
func (c *Coordinator) runScan(ctx context.Context) {
	if !c.State().active() {
		return
	}
	if err := c.broker.HealthCheck(ctx); err != nil {
		log.Printf("health check failed before scan: %v", err)
		c.setState(StateReconnecting)
		return
	}
	if !c.broker.IsMarketOpen() {
		log.Printf("scan skipped: market closed")
		return
	}
	if n := c.ledger.Count(); n >= c.risk.MaxPositions() {
		log.Printf("scan skipped: position limit reached (%d)", n)
		return
	}

	c.setState(StateScanning)
	defer c.setState(StateIdle)

	// Pick up external rewrites of the strategy config (offline tuner).
	if err := c.resolver.Reload(); err != nil {
		log.Printf("config reload failed, keeping previous: %v", err)
	}

	for _, symbol := range c.cfg.Watchlist {
		if ctx.Err() != nil {
			return
		}
		if _, held := c.ledger.Position(symbol); held {
			continue
		}
		if err := c.scanSymbol(ctx, symbol); err != nil {
			if errors.Is(err, broker.ErrConnectionLost) {
				c.setState(StateReconnecting)
				return
			}
			log.Printf("scan %s: %v", symbol, err)
		}
	}
}

func (c *Coordinator) scanSymbol(ctx context.Context, symbol string) error {
	cfg := c.resolver.Resolve(symbol)

	bars, err := c.broker.FetchHistory(ctx, symbol, c.cfg.HistoryLookback, c.cfg.BarSize)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("%w: empty history", broker.ErrDataUnavailable)
	}

	res := signal.Evaluate(symbol, bars, cfg)
	if !res.Actionable(cfg.Thresholds.MinConfidence) {
		return nil
	}

	c.publish(events.EventSignal, events.SignalPayload{
		Symbol:     symbol,
		Side:       string(broker.SideBuy),
		Confidence: res.Confidence,
		Oscillator: res.Oscillator,
		Time:       res.Time,
	})

	// Recheck limits per buy: earlier buys in this same pass count.
	ok, reason := c.risk.CanOpen(symbol)
	if !ok {
		log.Printf("buy %s skipped: %s", symbol, reason)
		return nil
	}

	// Strong signals take the full configured slice, weaker ones half.
	sizePct := cfg.Risk.PositionSizePct
	if !res.Strong(cfg.Thresholds.StrongSignal) {
		sizePct /= 2
	}
	qty := c.risk.PositionSize(res.Price, c.risk.AvailableCapital(), sizePct)
	if qty < 1 {
		return nil
	}

	order, err := c.broker.PlaceOrder(ctx, symbol, broker.SideBuy, float64(qty))
	if err != nil {
		c.publish(events.EventOrderRejected, events.PositionPayload{Symbol: symbol, Qty: float64(qty)})
		return fmt.Errorf("buy order: %w", err)
	}
	c.settle(ctx)

	snapshot, _ := json.Marshal(res)
	if _, err := c.ledger.Open(ctx, symbol, order.Qty, order.FillPrice, snapshot, order.Ref); err != nil {
		// Order is live but the local write failed; reconciliation adopts it
		// on the next startup or reconnect.
		return fmt.Errorf("ledger open after fill: %w", err)
	}

	log.Printf("opened %s: %.0f @ %.2f (confidence %.2f)", symbol, order.Qty, order.FillPrice, res.Confidence)
	c.publish(events.EventPositionOpened, events.PositionPayload{
		Symbol: symbol,
		Qty:    order.Qty,
		Price:  order.FillPrice,
	})
	return nil
}

// runMonitor re-prices open positions and closes those matching an exit rule.
func (c *Coordinator) runMonitor(ctx context.Context) {
	if !c.State().active() {
		return
	}
	positions := c.ledger.Positions()
	if len(positions) == 0 {
		return
	}
	if err := c.broker.HealthCheck(ctx); err != nil {
		log.Printf("health check failed before monitor: %v", err)
		c.setState(StateReconnecting)
		return
	}

	c.setState(StateMonitoring)
	defer c.setState(StateIdle)

	totalValue := c.risk.AvailableCapital()

	for _, pos := range positions {
		if ctx.Err() != nil {
			return
		}
		price, osc, err := c.currentMark(ctx, pos.Symbol)
		if err != nil {
			if errors.Is(err, broker.ErrConnectionLost) {
				c.setState(StateReconnecting)
				return
			}
			log.Printf("monitor %s: %v", pos.Symbol, err)
			// No fresh mark: count the position at cost so the drawdown
			// advisory does not treat it as vanished value.
			totalValue += pos.AvgPrice * pos.Qty
			continue
		}
		totalValue += price * pos.Qty

		cfg := c.resolver.Resolve(pos.Symbol)
		event := c.risk.CheckExit(pos, price, osc, cfg.Risk)
		if event == nil {
			continue
		}
		if err := c.closePosition(ctx, pos, price, event.Reason); err != nil {
			if errors.Is(err, broker.ErrConnectionLost) {
				c.setState(StateReconnecting)
				return
			}
			log.Printf("close %s: %v", pos.Symbol, err)
		}
	}

	if adv := c.risk.CheckPortfolioLimits(totalValue, c.risk.InitialCapital()); adv != nil {
		log.Printf("portfolio advisory [%s]: %s", adv.Severity, adv.Reason)
		c.publish(events.EventRiskAlert, events.RiskAlertPayload{
			Severity: string(adv.Severity),
			Reason:   adv.Reason,
			Drawdown: (totalValue - c.risk.InitialCapital()) / c.risk.InitialCapital(),
		})
	}
}

// currentMark fetches the latest close and oscillator value for a symbol.
func (c *Coordinator) currentMark(ctx context.Context, symbol string) (price, oscillator float64, err error) {
	bars, err := c.broker.FetchHistory(ctx, symbol, c.cfg.HistoryLookback, c.cfg.BarSize)
	if err != nil {
		return 0, 0, err
	}
	if len(bars) == 0 {
		return 0, 0, fmt.Errorf("%w: empty history", broker.ErrDataUnavailable)
	}
	res := signal.Evaluate(symbol, bars, c.resolver.Resolve(symbol))
	return res.Price, res.Oscillator, nil
}

func (c *Coordinator) closePosition(ctx context.Context, pos db.Position, price float64, reason string) error {
	order, err := c.broker.PlaceOrder(ctx, pos.Symbol, broker.SideSell, pos.Qty)
	if err != nil {
		c.publish(events.EventOrderRejected, events.PositionPayload{Symbol: pos.Symbol, Qty: pos.Qty})
		return fmt.Errorf("sell order: %w", err)
	}
	c.settle(ctx)

	trade, err := c.ledger.Close(ctx, pos.Symbol, order.FillPrice, reason)
	if err != nil {
		return fmt.Errorf("ledger close after fill: %w", err)
	}
	c.risk.RecordRealized(trade.PnL)

	log.Printf("closed %s: %.0f @ %.2f pnl=%+.2f (%s)", pos.Symbol, trade.Qty, trade.Price, trade.PnL, reason)
	c.publish(events.EventPositionClosed, events.PositionPayload{
		Symbol: pos.Symbol,
		Qty:    trade.Qty,
		Price:  trade.Price,
		PnL:    trade.PnL,
		Reason: reason,
	})
	return nil
}

func (c *Coordinator) manualClose(ctx context.Context, symbol string) {
	pos, held := c.ledger.Position(symbol)
	if !held {
		log.Printf("manual close %s: no open position", symbol)
		return
	}
	price, _, err := c.currentMark(ctx, symbol)
	if err != nil {
		log.Printf("manual close %s: %v", symbol, err)
		return
	}
	if err := c.closePosition(ctx, pos, price, "manual close"); err != nil {
		log.Printf("manual close %s: %v", symbol, err)
	}
}

// connect performs the initial connection with bounded retries.
func (c *Coordinator) connect(ctx context.Context) error {
	c.setState(StateConnecting)
	for attempt := 1; attempt <= c.cfg.ConnectAttempts; attempt++ {
		err := c.broker.Connect(ctx)
		if err == nil {
			return nil
		}
		log.Printf("connect attempt %d/%d failed: %v", attempt, c.cfg.ConnectAttempts, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ConnectBackoff):
		}
	}
	return fmt.Errorf("%w: %d connect attempts exhausted", broker.ErrConnectionLost, c.cfg.ConnectAttempts)
}

// reconnect re-establishes the venue link and reconciles positions that may
// have changed while we were away.
func (c *Coordinator) reconnect(ctx context.Context) error {
	for attempt := 1; attempt <= c.cfg.ConnectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ConnectBackoff):
		}
		if err := c.broker.Connect(ctx); err != nil {
			log.Printf("reconnect attempt %d/%d failed: %v", attempt, c.cfg.ConnectAttempts, err)
			continue
		}
		if err := c.reconcile(ctx); err != nil {
			log.Printf("post-reconnect reconciliation failed: %v", err)
		}
		c.setState(StateIdle)
		log.Printf("reconnected to venue")
		return nil
	}
	return fmt.Errorf("%w: %d reconnect attempts exhausted", broker.ErrConnectionLost, c.cfg.ConnectAttempts)
}

func (c *Coordinator) reconcile(ctx context.Context) error {
	reported, err := c.broker.OpenPositions(ctx)
	if err != nil {
		return err
	}
	return c.ledger.Reconcile(ctx, reported)
}

func (c *Coordinator) shutdown() error {
	c.setState(StateShuttingDown)
	if err := c.broker.Disconnect(); err != nil {
		log.Printf("disconnect: %v", err)
	}
	log.Printf("coordinator stopped")
	return nil
}

// settle waits briefly after an order before trusting downstream state.
func (c *Coordinator) settle(ctx context.Context) {
	if c.cfg.SettleDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(c.cfg.SettleDelay):
	}
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s {
		c.publish(events.EventStateChange, events.StatePayload{From: string(prev), To: string(s)})
	}
}

func (c *Coordinator) publish(e events.Event, payload any) {
	if c.bus != nil {
		c.bus.Publish(e, payload)
	}
}
