// Package monitor aggregates engine activity into a portfolio summary for
// the read-only API and log-based alerting. It only observes; it never
// touches the ledger.
package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"swing-engine/internal/events"
)

// Summary is the current portfolio view exposed over the API.
type Summary struct {
	OpenPositions int       `json:"open_positions"`
	TradesTotal   int       `json:"trades_total"`
	RealizedPnL   float64   `json:"realized_pnl"`
	LastSignal    time.Time `json:"last_signal,omitempty"`
	LastAlert     string    `json:"last_alert,omitempty"`
	Drawdown      float64   `json:"drawdown"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Monitor subscribes to engine events and keeps rolling counters.
type Monitor struct {
	Bus *events.Bus

	mu      sync.RWMutex
	summary Summary
}

// Start launches the event consumers. It returns immediately.
func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil {
		log.Println("monitor: bus not set; skipping")
		return
	}
	go m.consume(ctx, events.EventSignal)
	go m.consume(ctx, events.EventPositionOpened)
	go m.consume(ctx, events.EventPositionClosed)
	go m.consume(ctx, events.EventRiskAlert)
}

func (m *Monitor) consume(ctx context.Context, topic events.Event) {
	stream, unsub := m.Bus.Subscribe(topic, 50)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-stream:
			if !ok {
				return
			}
			m.apply(topic, msg)
		}
	}
}

func (m *Monitor) apply(topic events.Event, msg any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary.UpdatedAt = time.Now().UTC()

	switch topic {
	case events.EventSignal:
		if p, ok := msg.(events.SignalPayload); ok {
			m.summary.LastSignal = p.Time
		}
	case events.EventPositionOpened:
		m.summary.OpenPositions++
		m.summary.TradesTotal++
	case events.EventPositionClosed:
		if m.summary.OpenPositions > 0 {
			m.summary.OpenPositions--
		}
		m.summary.TradesTotal++
		if p, ok := msg.(events.PositionPayload); ok {
			m.summary.RealizedPnL += p.PnL
		}
	case events.EventRiskAlert:
		if p, ok := msg.(events.RiskAlertPayload); ok {
			m.summary.LastAlert = p.Severity + ": " + p.Reason
			m.summary.Drawdown = p.Drawdown
			log.Printf("risk alert [%s] %s", p.Severity, p.Reason)
		}
	}
}

// Snapshot returns a copy of the current summary.
func (m *Monitor) Snapshot() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summary
}
