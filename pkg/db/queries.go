package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ListPositions returns every persisted open position.
func (d *Database) ListPositions(ctx context.Context) ([]Position, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT symbol, qty, avg_price, entry_time, order_ref, signal_json
		FROM positions
	`)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var p Position
		var sig string
		if err := rows.Scan(&p.Symbol, &p.Qty, &p.AvgPrice, &p.EntryTime, &p.OrderRef, &sig); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		p.SignalJSON = []byte(sig)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// InsertOpen records a new position and its BUY trade in one transaction.
// The caller must not consider the open committed until this returns nil.
func (d *Database) InsertOpen(ctx context.Context, p Position, t Trade) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO positions (symbol, qty, avg_price, entry_time, order_ref, signal_json, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		`, p.Symbol, p.Qty, p.AvgPrice, p.EntryTime, p.OrderRef, string(p.SignalJSON))
		if err != nil {
			return fmt.Errorf("insert position: %w", err)
		}
		return insertTrade(ctx, tx, t)
	})
}

// DeleteClose removes a position and appends its SELL trade in one transaction.
func (d *Database) DeleteClose(ctx context.Context, symbol string, t Trade) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE symbol = ?`, symbol)
		if err != nil {
			return fmt.Errorf("delete position: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return insertTrade(ctx, tx, t)
	})
}

// UpsertPosition writes a position without a trade entry (reconciliation path).
func (d *Database) UpsertPosition(ctx context.Context, p Position) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO positions (symbol, qty, avg_price, entry_time, order_ref, signal_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(symbol) DO UPDATE SET
			qty = excluded.qty,
			avg_price = excluded.avg_price,
			entry_time = excluded.entry_time,
			order_ref = excluded.order_ref,
			signal_json = excluded.signal_json,
			updated_at = CURRENT_TIMESTAMP
	`, p.Symbol, p.Qty, p.AvgPrice, p.EntryTime, p.OrderRef, string(p.SignalJSON))
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// DeletePosition removes a position without a trade entry (reconciliation path).
func (d *Database) DeletePosition(ctx context.Context, symbol string) error {
	if _, err := d.DB.ExecContext(ctx, `DELETE FROM positions WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	return nil
}

// ListTrades returns the trade log newest first, capped at limit.
func (d *Database) ListTrades(ctx context.Context, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, symbol, action, qty, price, pnl, reason, executed_at
		FROM trade_log
		ORDER BY executed_at DESC, created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Action, &t.Qty, &t.Price, &t.PnL, &t.Reason, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func insertTrade(ctx context.Context, tx *sql.Tx, t Trade) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO trade_log (id, symbol, action, qty, price, pnl, reason, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Symbol, t.Action, t.Qty, t.Price, t.PnL, t.Reason, t.ExecutedAt)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
