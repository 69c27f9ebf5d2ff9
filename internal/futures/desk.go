// Package futures implements the leveraged resource-futures desk: fixed-term
// long/short positions with posted margin, daily liquidation sweeps, and
// forced expiry.
package futures

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/mini-economy/internal/econ"
)

// ErrInsufficientMargin rejects an open when the resident cannot post the
// full margin requirement.
var ErrInsufficientMargin = errors.New("insufficient margin")

// ErrUnknownPosition rejects a close for a position the desk does not hold.
var ErrUnknownPosition = errors.New("unknown position")

// MoneyLogger records the money the desk creates (paid-out wins) and
// destroys (absorbed losses) so the conservation audit can reconcile.
type MoneyLogger func(kind string, amount float64, detail string)

// Desk tracks every open position. Positions also hang off their owner so
// the data model serializes whole.
type Desk struct {
	positions map[string]*econ.FuturesPosition
	owners    map[string]*econ.Resident
	logMoney  MoneyLogger
}

// NewDesk creates an empty futures desk.
func NewDesk(logMoney MoneyLogger) *Desk {
	if logMoney == nil {
		logMoney = func(string, float64, string) {}
	}
	return &Desk{
		positions: make(map[string]*econ.FuturesPosition),
		owners:    make(map[string]*econ.Resident),
		logMoney:  logMoney,
	}
}

// Restore re-registers saved positions from residents' holdings, used
// when resuming a persisted world.
func (d *Desk) Restore(residents []*econ.Resident) {
	for _, r := range residents {
		for _, p := range r.Futures {
			d.positions[p.ID] = p
			d.owners[p.ID] = r
		}
	}
}

// MarginRequired returns the cash a position at this price must post.
func MarginRequired(price float64) float64 {
	return price * econ.FuturesContractSize * econ.FuturesMarginRatio
}

// Open posts margin and creates a fixed-term position on a raw resource at
// the current market price.
func (d *Desk) Open(r *econ.Resident, resource econ.GoodType, side econ.FutureSide, price float64, day uint64) (string, error) {
	if !econ.IsRaw(resource) {
		return "", fmt.Errorf("futures trade only raw resources, got %s", econ.GoodName(resource))
	}
	margin := MarginRequired(price)
	if !r.DebitCash(margin) {
		return "", ErrInsufficientMargin
	}

	p := &econ.FuturesPosition{
		ID:         uuid.NewString(),
		Resource:   resource,
		Side:       side,
		EntryPrice: price,
		Amount:     econ.FuturesContractSize,
		Margin:     margin,
		DueDay:     day + econ.FuturesTermDays,
	}
	d.positions[p.ID] = p
	d.owners[p.ID] = r
	r.Futures = append(r.Futures, p)
	return p.ID, nil
}

// PnL returns the unrealized profit of a position at the current price.
func PnL(p *econ.FuturesPosition, current float64) float64 {
	pnl := (current - p.EntryPrice) * p.Amount
	if p.Side == econ.FutureShort {
		pnl = -pnl
	}
	return pnl
}

// Close realizes a position at the current price: margin plus PnL returns
// to the owner's cash, floored at zero (losses never exceed posted margin).
func (d *Desk) Close(id string, current float64) (float64, error) {
	p, ok := d.positions[id]
	if !ok {
		return 0, ErrUnknownPosition
	}
	r := d.owners[id]
	return d.settle(p, r, current, "closed"), nil
}

// settle pays out margin+PnL, logs the desk-side money flow, and removes
// the position everywhere it is referenced.
func (d *Desk) settle(p *econ.FuturesPosition, r *econ.Resident, current float64, reason string) float64 {
	pnl := PnL(p, current)
	payout := p.Margin + pnl
	if payout < 0 {
		payout = 0 // margin fully exhausted
	}
	r.CreditCash(payout)

	// The desk is the counterparty: a win is created money, a loss is
	// destroyed money. Both are explicit audit events.
	if pnl > 0 {
		d.logMoney("futures_win", pnl, econ.GoodName(p.Resource))
	} else if pnl < 0 {
		absorbed := p.Margin - payout
		d.logMoney("futures_loss", absorbed, econ.GoodName(p.Resource))
	}

	delete(d.positions, p.ID)
	delete(d.owners, p.ID)
	for i, held := range r.Futures {
		if held.ID == p.ID {
			r.Futures = append(r.Futures[:i], r.Futures[i+1:]...)
			break
		}
	}

	slog.Info("futures settled",
		"reason", reason,
		"resource", econ.GoodName(p.Resource),
		"side", p.Side,
		"entry", p.EntryPrice,
		"exit", current,
		"pnl", fmt.Sprintf("%.2f", pnl),
	)
	return pnl
}

// Sweep runs the daily risk pass: positions whose unrealized loss has
// consumed their margin are force-liquidated, and positions past due are
// force-closed at the current price.
func (d *Desk) Sweep(day uint64, priceOf func(econ.GoodType) float64) {
	// Collect first: settle mutates the map.
	var due []*econ.FuturesPosition
	for _, p := range d.positions {
		current := priceOf(p.Resource)
		if -PnL(p, current) >= p.Margin || day >= p.DueDay {
			due = append(due, p)
		}
	}
	for _, p := range due {
		reason := "expired"
		current := priceOf(p.Resource)
		if -PnL(p, current) >= p.Margin {
			reason = "liquidated"
		}
		d.settle(p, d.owners[p.ID], current, reason)
	}
}

// MarginHeld sums margin posted on open positions. Counted as desk-held
// money by the conservation audit.
func (d *Desk) MarginHeld() float64 {
	sum := 0.0
	for _, p := range d.positions {
		sum += p.Margin
	}
	return sum
}

// OpenPositions returns the number of live positions.
func (d *Desk) OpenPositions() int { return len(d.positions) }
