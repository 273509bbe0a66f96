package db

import (
	"encoding/json"
	"time"
)

// Position is one open holding as persisted.
type Position struct {
	Symbol     string          `json:"symbol"`
	Qty        float64         `json:"qty"`
	AvgPrice   float64         `json:"avg_price"`
	EntryTime  time.Time       `json:"entry_time"`
	OrderRef   string          `json:"order_ref"`
	SignalJSON json.RawMessage `json:"signal,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Trade is one append-only trade log entry. Never mutated after insert.
type Trade struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Action     string    `json:"action"` // BUY or SELL
	Qty        float64   `json:"qty"`
	Price      float64   `json:"price"`
	PnL        float64   `json:"pnl"`
	Reason     string    `json:"reason,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
}
