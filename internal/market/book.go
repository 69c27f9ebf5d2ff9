// Package market implements the continuous double-auction commodity
// markets: one price-time-priority order book per good, matched once per
// tick, with per-day OHLCV candle history.
package market

import (
	"errors"

	"github.com/talgya/mini-economy/internal/econ"
)

// Submission failures. Orders are rejected before entering the book —
// there is no partial admission.
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidQuantity       = errors.New("invalid quantity")
)

// Side is the direction of an order.
type Side uint8

const (
	Bid Side = iota
	Ask
)

// Trader is anything that can hold cash and goods. Residents and companies
// both satisfy it.
type Trader interface {
	TraderKey() string
	CashBalance() float64
	DebitCash(amount float64) bool
	CreditCash(amount float64)
	GoodQty(g econ.GoodType) float64
	TakeGood(g econ.GoodType, qty float64) bool
	GiveGood(g econ.GoodType, qty float64)
}

// Order is one resting entry in a book. Qty is strictly positive while the
// order rests; a fully filled order is removed in the same matching pass.
type Order struct {
	ID     string
	Good   econ.GoodType
	Side   Side
	Price  float64
	Qty    float64
	Owner  Trader
	Escrow float64 // bids: cash still locked; asks: unused (goods escrowed)
	Seq    uint64  // insertion sequence, breaks price ties
	Tick   uint64  // tick the order was submitted on
}

// Book is the resting state for one good.
type Book struct {
	Good      econ.GoodType
	Bids      []*Order // sorted descending by price, ties by Seq ascending
	Asks      []*Order // sorted ascending by price, ties by Seq ascending
	LastPrice float64
	History   []econ.Candle

	// Current-day candle accumulation.
	cur     econ.Candle
	curOpen bool
}

// NewBook creates a book seeded with the good's base price so derived
// quantities (wages, margin) are defined before the first trade.
func NewBook(g econ.GoodType) *Book {
	return &Book{Good: g, LastPrice: econ.BasePrice(g)}
}

// Frozen reports zero liquidity on either side.
func (b *Book) Frozen() bool { return len(b.Bids) == 0 || len(b.Asks) == 0 }

// BestBid returns the highest resting bid price.
func (b *Book) BestBid() (float64, bool) {
	if len(b.Bids) == 0 {
		return 0, false
	}
	return b.Bids[0].Price, true
}

// BestAsk returns the lowest resting ask price.
func (b *Book) BestAsk() (float64, bool) {
	if len(b.Asks) == 0 {
		return 0, false
	}
	return b.Asks[0].Price, true
}

// insert places an order keeping sort order; equal prices keep insertion
// order so earlier orders match first.
func (b *Book) insert(o *Order) {
	if o.Side == Bid {
		i := 0
		for i < len(b.Bids) && b.Bids[i].Price >= o.Price {
			i++
		}
		b.Bids = append(b.Bids, nil)
		copy(b.Bids[i+1:], b.Bids[i:])
		b.Bids[i] = o
		return
	}
	i := 0
	for i < len(b.Asks) && b.Asks[i].Price <= o.Price {
		i++
	}
	b.Asks = append(b.Asks, nil)
	copy(b.Asks[i+1:], b.Asks[i:])
	b.Asks[i] = o
}

// remove deletes an order from its side. No-op if absent.
func (b *Book) remove(o *Order) {
	side := &b.Bids
	if o.Side == Ask {
		side = &b.Asks
	}
	for i, cand := range *side {
		if cand == o {
			*side = append((*side)[:i], (*side)[i+1:]...)
			return
		}
	}
}

// recordTrade folds one fill into the current day's candle.
func (b *Book) recordTrade(day uint64, price, qty float64) {
	b.LastPrice = price
	if !b.curOpen {
		b.cur = econ.Candle{Day: day, Open: price, High: price, Low: price, Close: price}
		b.curOpen = true
	}
	if price > b.cur.High {
		b.cur.High = price
	}
	if price < b.cur.Low {
		b.cur.Low = price
	}
	b.cur.Close = price
	b.cur.Volume += qty
}

// closeDay appends the finished candle. Days without trades get a flat
// zero-volume candle at the last price so history has no gaps.
func (b *Book) closeDay(day uint64) {
	if !b.curOpen {
		p := b.LastPrice
		b.History = append(b.History, econ.Candle{Day: day, Open: p, High: p, Low: p, Close: p})
		return
	}
	b.History = append(b.History, b.cur)
	b.curOpen = false
}

// RestingQty sums quantity resting on one side — the escrowed goods (asks)
// counted by the conservation audit.
func (b *Book) RestingQty(side Side) float64 {
	sum := 0.0
	if side == Bid {
		for _, o := range b.Bids {
			sum += o.Qty
		}
		return sum
	}
	for _, o := range b.Asks {
		sum += o.Qty
	}
	return sum
}
