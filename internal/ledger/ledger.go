// Package ledger is the authoritative, persisted record of open positions
// and closed-trade history. It is the only component allowed to mutate
// either collection.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"swing-engine/internal/broker"
	"swing-engine/pkg/db"
)

var (
	// ErrAlreadyOpen is returned when opening a symbol that already has a
	// position. No pyramiding: a second buy on a held symbol is refused.
	ErrAlreadyOpen = errors.New("position already open")
	// ErrNotOpen is returned when closing a symbol with no open position.
	ErrNotOpen = errors.New("no open position")
	// ErrPersistence wraps storage failures. The in-memory state is not
	// authoritative until the write succeeds, so callers must treat the
	// mutation as not committed.
	ErrPersistence = errors.New("ledger persistence failed")
)

// Manager keeps an in-memory view of positions while persisting every
// mutation to SQLite before reporting success.
type Manager struct {
	mu        sync.RWMutex
	positions map[string]db.Position
	database  *db.Database
}

// NewManager creates a ledger backed by database. A nil database keeps the
// ledger memory-only (tests).
func NewManager(database *db.Database) *Manager {
	return &Manager{
		database:  database,
		positions: make(map[string]db.Position),
	}
}

// Load seeds in-memory state from storage on startup.
func (m *Manager) Load(ctx context.Context) error {
	if m.database == nil {
		return nil
	}
	positions, err := m.database.ListPositions(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range positions {
		m.positions[p.Symbol] = p
	}
	return nil
}

// Open records a new long position and its BUY trade. The write hits storage
// before memory: a crash after Open returns can never lose the position.
func (m *Manager) Open(ctx context.Context, symbol string, qty, price float64, signalSnapshot json.RawMessage, orderRef string) (db.Position, error) {
	if qty <= 0 {
		return db.Position{}, fmt.Errorf("open %s: quantity %.2f must be positive", symbol, qty)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, held := m.positions[symbol]; held {
		return db.Position{}, fmt.Errorf("open %s: %w", symbol, ErrAlreadyOpen)
	}

	if signalSnapshot == nil {
		signalSnapshot = json.RawMessage(`{}`)
	}
	now := time.Now().UTC()
	pos := db.Position{
		Symbol:     symbol,
		Qty:        qty,
		AvgPrice:   price,
		EntryTime:  now,
		OrderRef:   orderRef,
		SignalJSON: signalSnapshot,
	}
	trade := db.Trade{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Action:     "BUY",
		Qty:        qty,
		Price:      price,
		ExecutedAt: now,
	}

	if m.database != nil {
		if err := m.database.InsertOpen(ctx, pos, trade); err != nil {
			return db.Position{}, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}
	m.positions[symbol] = pos
	return pos, nil
}

// Close removes the position and appends the SELL trade with realized P&L.
func (m *Manager) Close(ctx context.Context, symbol string, exitPrice float64, reason string) (db.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, held := m.positions[symbol]
	if !held {
		return db.Trade{}, fmt.Errorf("close %s: %w", symbol, ErrNotOpen)
	}

	trade := db.Trade{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Action:     "SELL",
		Qty:        pos.Qty,
		Price:      exitPrice,
		PnL:        (exitPrice - pos.AvgPrice) * pos.Qty,
		Reason:     reason,
		ExecutedAt: time.Now().UTC(),
	}

	if m.database != nil {
		if err := m.database.DeleteClose(ctx, symbol, trade); err != nil {
			return db.Trade{}, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}
	delete(m.positions, symbol)
	return trade, nil
}

// Position returns the in-memory snapshot for a symbol.
func (m *Manager) Position(symbol string) (db.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[symbol]
	return p, ok
}

// Positions returns a copy of all open positions.
func (m *Manager) Positions() []db.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]db.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out
}

// Count reports the number of open positions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions)
}

// InvestedValue is the cost basis of all open positions.
func (m *Manager) InvestedValue() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0.0
	for _, p := range m.positions {
		total += p.Qty * p.AvgPrice
	}
	return total
}

// Trades returns the persisted trade log, newest first.
func (m *Manager) Trades(ctx context.Context, limit int) ([]db.Trade, error) {
	if m.database == nil {
		return nil, nil
	}
	return m.database.ListTrades(ctx, limit)
}

// Reconcile aligns the ledger with the venue's authoritative position list.
// Venue truth wins: positions it reports that we do not know are adopted at
// the reported quantity/cost; ledger positions it no longer reports are
// dropped. Discrepancies are logged, never fatal.
func (m *Manager) Reconcile(ctx context.Context, reported map[string]broker.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for symbol, bp := range reported {
		if _, known := m.positions[symbol]; known {
			continue
		}
		log.Printf("reconcile: adopting %s qty=%.2f avg=%.2f reported by venue", symbol, bp.Qty, bp.AvgCost)
		pos := db.Position{
			Symbol:     symbol,
			Qty:        bp.Qty,
			AvgPrice:   bp.AvgCost,
			EntryTime:  time.Now().UTC(),
			OrderRef:   "reconciled",
			SignalJSON: json.RawMessage(`{}`),
		}
		if m.database != nil {
			if err := m.database.UpsertPosition(ctx, pos); err != nil {
				return fmt.Errorf("%w: adopt %s: %v", ErrPersistence, symbol, err)
			}
		}
		m.positions[symbol] = pos
	}

	for symbol := range m.positions {
		if _, ok := reported[symbol]; ok {
			continue
		}
		log.Printf("reconcile: dropping %s, venue no longer reports it", symbol)
		if m.database != nil {
			if err := m.database.DeletePosition(ctx, symbol); err != nil {
				return fmt.Errorf("%w: drop %s: %v", ErrPersistence, symbol, err)
			}
		}
		delete(m.positions, symbol)
	}
	return nil
}
