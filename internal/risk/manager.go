// Package risk gates position entry and evaluates exit conditions against
// the ledger. All checks are read-only over a snapshot plus fresh market
// data; the coordinator decides what to do with the verdicts.
package risk

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"swing-engine/internal/ledger"
	"swing-engine/internal/strategy"
	"swing-engine/pkg/db"
)

// Drawdown thresholds over initial capital. Advisory only: no single
// instrument is implicated, so nothing is auto-executed.
const (
	drawdownWarning  = -0.10
	drawdownCritical = -0.20
)

// Manager enforces position and portfolio limits.
type Manager struct {
	maxPositions   int
	initialCapital float64
	ledger         *ledger.Manager

	mu       sync.Mutex
	realized float64
}

// NewManager wires the risk manager to the ledger it reads from.
func NewManager(ledger *ledger.Manager, maxPositions int, initialCapital float64) *Manager {
	if maxPositions < 1 {
		maxPositions = 1
	}
	m := &Manager{
		maxPositions:   maxPositions,
		initialCapital: initialCapital,
		ledger:         ledger,
	}
	log.Printf("risk manager initialized: max_positions=%d initial_capital=%.2f",
		maxPositions, initialCapital)
	return m
}

// CanOpen reports whether a new position in symbol is allowed right now.
// A false verdict is a silent skip for the coordinator, not an error.
func (m *Manager) CanOpen(symbol string) (bool, string) {
	if _, held := m.ledger.Position(symbol); held {
		return false, fmt.Sprintf("position already open on %s", symbol)
	}
	if n := m.ledger.Count(); n >= m.maxPositions {
		return false, fmt.Sprintf("position limit reached (%d/%d)", n, m.maxPositions)
	}
	return true, "OK"
}

// CheckExit evaluates the exit rules in fixed priority and returns the first
// match, or nil. Rules are never combined: one event per check.
func (m *Manager) CheckExit(pos db.Position, currentPrice, currentOscillator float64, cfg strategy.RiskConfig) *Event {
	if pos.AvgPrice <= 0 {
		return nil
	}
	pnlPct := (currentPrice - pos.AvgPrice) / pos.AvgPrice
	daysHeld := int(time.Since(pos.EntryTime).Hours() / 24)

	switch {
	case pnlPct >= cfg.ProfitTarget:
		return &Event{
			Kind:     KindProfitTarget,
			Symbol:   pos.Symbol,
			Qty:      pos.Qty,
			Reason:   fmt.Sprintf("profit target hit: %+.2f%% (threshold %.2f%%)", pnlPct*100, cfg.ProfitTarget*100),
			Severity: SeverityNormal,
		}
	case pnlPct <= -cfg.StopLoss:
		return &Event{
			Kind:     KindStopLoss,
			Symbol:   pos.Symbol,
			Qty:      pos.Qty,
			Reason:   fmt.Sprintf("stop loss hit: %+.2f%% (threshold -%.2f%%)", pnlPct*100, cfg.StopLoss*100),
			Severity: SeverityHigh,
		}
	case cfg.MaxHoldDays > 0 && daysHeld >= cfg.MaxHoldDays:
		return &Event{
			Kind:     KindMaxHold,
			Symbol:   pos.Symbol,
			Qty:      pos.Qty,
			Reason:   fmt.Sprintf("max hold exceeded: %dd (limit %dd)", daysHeld, cfg.MaxHoldDays),
			Severity: SeverityNormal,
		}
	case cfg.ExitOscillator > 0 && currentOscillator >= cfg.ExitOscillator:
		return &Event{
			Kind:     KindIndicatorExit,
			Symbol:   pos.Symbol,
			Qty:      pos.Qty,
			Reason:   fmt.Sprintf("oscillator exit: %.1f >= %.1f", currentOscillator, cfg.ExitOscillator),
			Severity: SeverityNormal,
		}
	}
	return nil
}

// CheckPortfolioLimits computes drawdown against initial capital and returns
// an advisory event when it breaches the warning or critical level.
func (m *Manager) CheckPortfolioLimits(totalValue, initialCapital float64) *Event {
	if initialCapital <= 0 {
		return nil
	}
	drawdown := (totalValue - initialCapital) / initialCapital

	switch {
	case drawdown <= drawdownCritical:
		return &Event{
			Kind:     KindDrawdown,
			Symbol:   "PORTFOLIO",
			Reason:   fmt.Sprintf("critical drawdown: %+.2f%%", drawdown*100),
			Severity: SeverityCritical,
		}
	case drawdown <= drawdownWarning:
		return &Event{
			Kind:     KindDrawdown,
			Symbol:   "PORTFOLIO",
			Reason:   fmt.Sprintf("elevated drawdown: %+.2f%%", drawdown*100),
			Severity: SeverityHigh,
		}
	}
	return nil
}

// PositionSize returns the share count for a new position: the configured
// slice of available capital at the current price, floored, minimum 1.
func (m *Manager) PositionSize(price, availableCapital, sizePct float64) int64 {
	if price <= 0 {
		return 0
	}
	qty := int64(math.Floor(availableCapital * sizePct / price))
	if qty < 1 {
		qty = 1
	}
	return qty
}

// RecordRealized accumulates realized P&L from closed trades so available
// capital tracks trading results across the run.
func (m *Manager) RecordRealized(pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.realized += pnl
}

// AvailableCapital is initial capital minus open cost basis plus realized
// P&L. The paper model ignores fees and slippage.
func (m *Manager) AvailableCapital() float64 {
	m.mu.Lock()
	realized := m.realized
	m.mu.Unlock()
	return m.initialCapital - m.ledger.InvestedValue() + realized
}

// InitialCapital exposes the drawdown baseline.
func (m *Manager) InitialCapital() float64 { return m.initialCapital }

// MaxPositions exposes the concurrency limit for status reporting.
func (m *Manager) MaxPositions() int { return m.maxPositions }
