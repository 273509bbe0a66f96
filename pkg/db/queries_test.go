package db

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := ApplyMigrations(d); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return d
}

func TestInsertOpenAndListPositions(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)

	pos := Position{
		Symbol:     "AAPL",
		Qty:        10,
		AvgPrice:   150,
		EntryTime:  time.Now().UTC(),
		OrderRef:   "ord-1",
		SignalJSON: json.RawMessage(`{"confidence":0.8}`),
	}
	trade := Trade{ID: "t1", Symbol: "AAPL", Action: "BUY", Qty: 10, Price: 150, ExecutedAt: time.Now().UTC()}

	if err := d.InsertOpen(ctx, pos, trade); err != nil {
		t.Fatalf("InsertOpen: %v", err)
	}

	positions, err := d.ListPositions(ctx)
	if err != nil {
		t.Fatalf("ListPositions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("len=%d, expected 1", len(positions))
	}
	got := positions[0]
	if got.Symbol != "AAPL" || got.Qty != 10 || got.AvgPrice != 150 || got.OrderRef != "ord-1" {
		t.Fatalf("position=%+v, expected the inserted row back", got)
	}
	if string(got.SignalJSON) != `{"confidence":0.8}` {
		t.Fatalf("signal json=%s, expected round trip", got.SignalJSON)
	}
}

func TestDeleteCloseRemovesPositionAndLogsTrade(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)

	pos := Position{Symbol: "MSFT", Qty: 5, AvgPrice: 300, EntryTime: time.Now().UTC(), SignalJSON: json.RawMessage(`{}`)}
	open := Trade{ID: "t1", Symbol: "MSFT", Action: "BUY", Qty: 5, Price: 300, ExecutedAt: time.Now().UTC()}
	if err := d.InsertOpen(ctx, pos, open); err != nil {
		t.Fatalf("InsertOpen: %v", err)
	}

	sell := Trade{ID: "t2", Symbol: "MSFT", Action: "SELL", Qty: 5, Price: 310, PnL: 50, Reason: "manual", ExecutedAt: time.Now().UTC()}
	if err := d.DeleteClose(ctx, "MSFT", sell); err != nil {
		t.Fatalf("DeleteClose: %v", err)
	}

	positions, err := d.ListPositions(ctx)
	if err != nil {
		t.Fatalf("ListPositions: %v", err)
	}
	if len(positions) != 0 {
		t.Fatalf("len=%d, expected position deleted", len(positions))
	}

	trades, err := d.ListTrades(ctx, 10)
	if err != nil {
		t.Fatalf("ListTrades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("len=%d, expected 2 trades", len(trades))
	}
	if trades[0].ID != "t2" {
		t.Fatalf("first trade=%s, expected newest first", trades[0].ID)
	}
	if trades[0].PnL != 50 || trades[0].Reason != "manual" {
		t.Fatalf("trade=%+v, expected pnl and reason persisted", trades[0])
	}
}

func TestDeleteCloseUnknownSymbol(t *testing.T) {
	d := newTestDB(t)
	sell := Trade{ID: "t1", Symbol: "NOPE", Action: "SELL", Qty: 1, Price: 1, ExecutedAt: time.Now().UTC()}
	err := d.DeleteClose(context.Background(), "NOPE", sell)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, expected ErrNotFound", err)
	}
}

func TestUpsertPositionOverwrites(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)

	p := Position{Symbol: "NVDA", Qty: 2, AvgPrice: 400, EntryTime: time.Now().UTC(), SignalJSON: json.RawMessage(`{}`)}
	if err := d.UpsertPosition(ctx, p); err != nil {
		t.Fatalf("UpsertPosition: %v", err)
	}
	p.Qty = 7
	if err := d.UpsertPosition(ctx, p); err != nil {
		t.Fatalf("UpsertPosition: %v", err)
	}

	positions, err := d.ListPositions(ctx)
	if err != nil {
		t.Fatalf("ListPositions: %v", err)
	}
	if len(positions) != 1 || positions[0].Qty != 7 {
		t.Fatalf("positions=%+v, expected single row with qty=7", positions)
	}
}
