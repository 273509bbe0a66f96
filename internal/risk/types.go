package risk

// EventKind classifies why a position should be closed or flagged.
type EventKind string

const (
	KindProfitTarget  EventKind = "profit_target"
	KindStopLoss      EventKind = "stop_loss"
	KindMaxHold       EventKind = "max_hold"
	KindIndicatorExit EventKind = "indicator_exit"
	KindDrawdown      EventKind = "drawdown"
)

// Severity grades advisory events.
type Severity string

const (
	SeverityNormal   Severity = "NORMAL"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Event is a transient exit or portfolio advisory. It is consumed the
// instant it is produced and never persisted on its own.
type Event struct {
	Kind     EventKind `json:"kind"`
	Symbol   string    `json:"symbol"`
	Qty      float64   `json:"qty"`
	Reason   string    `json:"reason"`
	Severity Severity  `json:"severity"`
}
