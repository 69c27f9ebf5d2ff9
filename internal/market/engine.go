package market

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/mini-economy/internal/econ"
	"github.com/talgya/mini-economy/internal/numutil"
)

// Trade is one executed fill, reported so the fiscal pass can tax traded
// value and stats can track volume.
type Trade struct {
	Good      econ.GoodType
	Price     float64
	Qty       float64
	BuyerKey  string
	SellerKey string
}

// Engine owns one order book per good and runs the matching pass.
type Engine struct {
	books map[econ.GoodType]*Book
	byID  map[string]*Order
	seq   uint64
}

// NewEngine creates books for every good.
func NewEngine() *Engine {
	e := &Engine{
		books: make(map[econ.GoodType]*Book, econ.NumGoods),
		byID:  make(map[string]*Order),
	}
	for g := 0; g < econ.NumGoods; g++ {
		e.books[econ.GoodType(g)] = NewBook(econ.GoodType(g))
	}
	return e
}

// Book returns the book for a good.
func (e *Engine) Book(g econ.GoodType) *Book { return e.books[g] }

// LastPrice returns the most recent trade price for a good, seeded with
// the base price before any trade.
func (e *Engine) LastPrice(g econ.GoodType) float64 { return e.books[g].LastPrice }

// Submit validates an order, escrows the buyer's cash or the seller's
// goods, and rests it in the book. A rejected order leaves no state behind.
func (e *Engine) Submit(owner Trader, g econ.GoodType, side Side, price, qty float64, tick uint64) (string, error) {
	price = numutil.ClampPrice(price)
	qty = numutil.ClampQty(qty)
	if qty <= 0 {
		return "", ErrInvalidQuantity
	}

	o := &Order{
		ID:    uuid.NewString(),
		Good:  g,
		Side:  side,
		Price: price,
		Qty:   qty,
		Owner: owner,
		Tick:  tick,
	}

	if side == Bid {
		cost := price * qty
		if !owner.DebitCash(cost) {
			return "", ErrInsufficientFunds
		}
		o.Escrow = cost
	} else {
		if !owner.TakeGood(g, qty) {
			return "", ErrInsufficientInventory
		}
	}

	e.seq++
	o.Seq = e.seq
	e.books[g].insert(o)
	e.byID[o.ID] = o
	return o.ID, nil
}

// Cancel removes a resting order and refunds its escrow. Cancelling a
// filled or unknown order is a no-op.
func (e *Engine) Cancel(id string) {
	o, ok := e.byID[id]
	if !ok {
		return
	}
	e.release(o)
	e.books[o.Good].remove(o)
}

// release refunds escrow and drops the order from the index.
func (e *Engine) release(o *Order) {
	if o.Side == Bid {
		if o.Escrow > 0 {
			o.Owner.CreditCash(o.Escrow)
			o.Escrow = 0
		}
	} else if o.Qty > 0 {
		o.Owner.GiveGood(o.Good, o.Qty)
	}
	delete(e.byID, o.ID)
}

// MatchAll runs the matching pass for every good and returns the fills.
func (e *Engine) MatchAll(tick, day uint64) []Trade {
	var trades []Trade
	for g := 0; g < econ.NumGoods; g++ {
		trades = append(trades, e.matchGood(econ.GoodType(g), tick, day)...)
	}
	return trades
}

// matchGood repeatedly crosses the best bid against the best ask. The
// order that was already resting before this tick sets the trade price;
// when both arrived this tick the ask's price is used (the seller sets the
// spot price). No crossed orders survive the pass.
func (e *Engine) matchGood(g econ.GoodType, tick, day uint64) []Trade {
	b := e.books[g]
	var trades []Trade

	for len(b.Bids) > 0 && len(b.Asks) > 0 {
		bid, ask := b.Bids[0], b.Asks[0]
		if bid.Price < ask.Price {
			break
		}

		var px float64
		switch {
		case bid.Tick == tick && ask.Tick == tick:
			px = ask.Price
		case bid.Tick == ask.Tick:
			// Both rested since the same earlier tick — first in sets the price.
			if bid.Seq < ask.Seq {
				px = bid.Price
			} else {
				px = ask.Price
			}
		case bid.Tick < ask.Tick:
			px = bid.Price
		default:
			px = ask.Price
		}

		qty := bid.Qty
		if ask.Qty < qty {
			qty = ask.Qty
		}

		// Goods were escrowed at ask submission; cash at bid submission.
		// The buyer escrowed at their own (>= px) price, so refund the spread.
		bid.Owner.GiveGood(g, qty)
		ask.Owner.CreditCash(px * qty)
		refund := (bid.Price - px) * qty
		if refund > 0 {
			bid.Owner.CreditCash(refund)
		}
		bid.Escrow -= bid.Price * qty

		bid.Qty -= qty
		ask.Qty -= qty
		b.recordTrade(day, px, qty)
		trades = append(trades, Trade{
			Good: g, Price: px, Qty: qty,
			BuyerKey: bid.Owner.TraderKey(), SellerKey: ask.Owner.TraderKey(),
		})

		if bid.Qty <= 0 {
			// Return any escrow residue from float rounding.
			e.release(bid)
			b.remove(bid)
		}
		if ask.Qty <= 0 {
			delete(e.byID, ask.ID)
			b.remove(ask)
		}
	}

	if len(trades) > 0 {
		slog.Debug("market pass", "good", econ.GoodName(g), "fills", len(trades), "last_price", b.LastPrice)
	}
	return trades
}

// CloseDay finalizes every book's daily candle.
func (e *Engine) CloseDay(day uint64) {
	for g := 0; g < econ.NumGoods; g++ {
		e.books[econ.GoodType(g)].closeDay(day)
	}
}

// EscrowedCash sums cash locked in resting bids. Counted as market-held
// money by the conservation audit.
func (e *Engine) EscrowedCash() float64 {
	sum := 0.0
	for _, o := range e.byID {
		if o.Side == Bid {
			sum += o.Escrow
		}
	}
	return sum
}

// RestingGoods sums escrowed ask quantity for one good.
func (e *Engine) RestingGoods(g econ.GoodType) float64 {
	return e.books[g].RestingQty(Ask)
}

// CancelAllFor releases every resting order owned by a trader. Used when a
// company goes bankrupt so escrowed goods and cash return before audit.
func (e *Engine) CancelAllFor(key string) {
	var ids []string
	for id, o := range e.byID {
		if o.Owner.TraderKey() == key {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		e.Cancel(id)
	}
}

// BookView is a read-only snapshot of one book for external consumers.
type BookView struct {
	Good      string        `json:"good"`
	LastPrice float64       `json:"last_price"`
	Bids      []LevelView   `json:"bids"`
	Asks      []LevelView   `json:"asks"`
	History   []econ.Candle `json:"history"`
}

// LevelView is one resting order without its owner reference.
type LevelView struct {
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
}

// Snapshot copies a book into its external view.
func (e *Engine) Snapshot(g econ.GoodType) BookView {
	b := e.books[g]
	v := BookView{Good: econ.GoodName(g), LastPrice: b.LastPrice, History: b.History}
	for _, o := range b.Bids {
		v.Bids = append(v.Bids, LevelView{Price: o.Price, Qty: o.Qty})
	}
	for _, o := range b.Asks {
		v.Asks = append(v.Asks, LevelView{Price: o.Price, Qty: o.Qty})
	}
	return v
}
