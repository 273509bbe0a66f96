package broker

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Paper is an in-process simulated venue for dry runs and tests. Each symbol
// follows a seeded random walk so history is stable within a process.
type Paper struct {
	ClientID  string
	OpenHour  int // market window, local time; 0/24 means always open
	CloseHour int
	StartTime time.Time

	mu        sync.Mutex
	connected bool
	lastClose map[string]float64
	positions map[string]Position
}

// NewPaper creates a paper venue. clientID identifies this engine instance
// in logs, mirroring the fixed client ID a real gateway session would carry.
func NewPaper(clientID string) *Paper {
	return &Paper{
		ClientID:  clientID,
		OpenHour:  0,
		CloseHour: 24,
		lastClose: make(map[string]float64),
		positions: make(map[string]Position),
	}
}

func (p *Paper) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	log.Printf("paper broker connected (client %s)", p.ClientID)
	return nil
}

func (p *Paper) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

func (p *Paper) FetchHistory(ctx context.Context, symbol string, lookback, barSize time.Duration) ([]Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil, ErrConnectionLost
	}
	if barSize <= 0 {
		barSize = 24 * time.Hour
	}
	n := int(lookback / barSize)
	if n < 2 {
		return nil, fmt.Errorf("%w: lookback %v shorter than two bars", ErrDataUnavailable, lookback)
	}

	rng := rand.New(rand.NewSource(seedFor(symbol)))
	price := 50 + rng.Float64()*150

	now := time.Now().UTC().Truncate(barSize)
	bars := make([]Bar, 0, n)
	for i := 0; i < n; i++ {
		open := price
		price *= 1 + rng.NormFloat64()*0.02
		if price < 1 {
			price = 1
		}
		high := open
		if price > high {
			high = price
		}
		low := open
		if price < low {
			low = price
		}
		bars = append(bars, Bar{
			Time:   now.Add(-time.Duration(n-i) * barSize),
			Open:   open,
			High:   high * 1.005,
			Low:    low * 0.995,
			Close:  price,
			Volume: 1000 + rng.Float64()*9000,
		})
	}
	p.lastClose[symbol] = bars[len(bars)-1].Close
	return bars, nil
}

func (p *Paper) OpenPositions(ctx context.Context) (map[string]Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil, ErrConnectionLost
	}
	out := make(map[string]Position, len(p.positions))
	for sym, pos := range p.positions {
		if mark, ok := p.lastClose[sym]; ok {
			pos.MarketPrice = mark
		}
		out[sym] = pos
	}
	return out, nil
}

func (p *Paper) PlaceOrder(ctx context.Context, symbol string, side Side, qty float64) (Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return Order{}, ErrConnectionLost
	}
	if qty <= 0 {
		return Order{}, fmt.Errorf("%w: quantity %.2f", ErrOrderRejected, qty)
	}

	price, ok := p.lastClose[symbol]
	if !ok {
		return Order{}, fmt.Errorf("%w: no market for %s", ErrOrderRejected, symbol)
	}

	switch side {
	case SideBuy:
		pos := p.positions[symbol]
		newQty := pos.Qty + qty
		pos.Symbol = symbol
		pos.AvgCost = (pos.AvgCost*pos.Qty + price*qty) / newQty
		pos.Qty = newQty
		p.positions[symbol] = pos
	case SideSell:
		pos, held := p.positions[symbol]
		if !held || pos.Qty < qty {
			return Order{}, fmt.Errorf("%w: sell %.2f %s exceeds held %.2f", ErrOrderRejected, qty, symbol, pos.Qty)
		}
		pos.Qty -= qty
		if pos.Qty == 0 {
			delete(p.positions, symbol)
		} else {
			p.positions[symbol] = pos
		}
	default:
		return Order{}, fmt.Errorf("%w: unknown side %q", ErrOrderRejected, side)
	}

	return Order{
		Ref:       uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Qty:       qty,
		FillPrice: price,
		FilledAt:  time.Now().UTC(),
	}, nil
}

func (p *Paper) IsMarketOpen() bool {
	if p.OpenHour <= 0 && p.CloseHour >= 24 {
		return true
	}
	h := time.Now().Hour()
	return h >= p.OpenHour && h < p.CloseHour
}

func (p *Paper) HealthCheck(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return ErrConnectionLost
	}
	return nil
}

// SeedPosition installs a venue-side position, used to exercise the
// reconciliation path.
func (p *Paper) SeedPosition(pos Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions[pos.Symbol] = pos
	if pos.MarketPrice > 0 {
		p.lastClose[pos.Symbol] = pos.MarketPrice
	}
}

func seedFor(symbol string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	return int64(h.Sum64())
}
