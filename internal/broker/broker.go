// Package broker defines the integration surface to the external trading
// venue. The engine depends only on this interface, never on venue-library
// object shapes.
package broker

import (
	"context"
	"errors"
	"time"
)

// Side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

var (
	// ErrDataUnavailable means the venue returned no (or not enough) history
	// for an instrument. Skip the instrument, never abort the pass.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrConnectionLost means the venue link is down; the coordinator moves
	// to its reconnect state.
	ErrConnectionLost = errors.New("connection lost")
	// ErrOrderRejected means the venue refused an order. The ledger stays
	// untouched.
	ErrOrderRejected = errors.New("order rejected")
)

// Bar is one sampled price interval, oldest-first in any returned sequence.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Position as reported by the venue. The venue's view is authoritative
// during reconciliation.
type Position struct {
	Symbol      string  `json:"symbol"`
	Qty         float64 `json:"qty"`
	AvgCost     float64 `json:"avg_cost"`
	MarketPrice float64 `json:"market_price"`
}

// Order is a filled order confirmation.
type Order struct {
	Ref       string    `json:"ref"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Qty       float64   `json:"qty"`
	FillPrice float64   `json:"fill_price"`
	FilledAt  time.Time `json:"filled_at"`
}

// Broker is the venue collaborator consumed by the coordinator and ledger.
type Broker interface {
	Connect(ctx context.Context) error
	Disconnect() error

	// FetchHistory returns bars for the lookback window, oldest first. An
	// empty result maps to ErrDataUnavailable at the call site.
	FetchHistory(ctx context.Context, symbol string, lookback, barSize time.Duration) ([]Bar, error)

	// OpenPositions returns the venue's authoritative open-position map.
	OpenPositions(ctx context.Context) (map[string]Position, error)

	// PlaceOrder submits a market order and reports the fill.
	PlaceOrder(ctx context.Context, symbol string, side Side, qty float64) (Order, error)

	IsMarketOpen() bool
	HealthCheck(ctx context.Context) error
}
