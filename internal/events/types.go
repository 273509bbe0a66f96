package events

import "time"

// Event enumerates high-level topics inside the engine.
type Event string

const (
	EventSignal         Event = "signal"
	EventPositionOpened Event = "position.opened"
	EventPositionClosed Event = "position.closed"
	EventOrderRejected  Event = "order.rejected"
	EventRiskAlert      Event = "risk.alert"
	EventStateChange    Event = "state.change"
)

// SignalPayload is published whenever the scan produces an actionable signal.
type SignalPayload struct {
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"` // BUY or SELL
	Confidence float64   `json:"confidence"`
	Oscillator float64   `json:"oscillator"`
	Time       time.Time `json:"time"`
}

// PositionPayload describes a ledger mutation.
type PositionPayload struct {
	Symbol string  `json:"symbol"`
	Qty    float64 `json:"qty"`
	Price  float64 `json:"price"`
	PnL    float64 `json:"pnl,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// RiskAlertPayload carries advisory portfolio-level warnings.
type RiskAlertPayload struct {
	Severity string  `json:"severity"` // HIGH or CRITICAL
	Reason   string  `json:"reason"`
	Drawdown float64 `json:"drawdown"`
}

// StatePayload announces coordinator state transitions.
type StatePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}
