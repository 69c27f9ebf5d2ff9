package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-economy/internal/econ"
)

func newResident(id econ.ResidentID, cash float64) *econ.Resident {
	return &econ.Resident{ID: id, Cash: cash, Portfolio: make(map[econ.CompanyID]int)}
}

func TestRestingAskSetsPrice(t *testing.T) {
	e := NewEngine()
	seller := newResident(1, 0)
	seller.Inventory.Add(econ.GoodGrain, 10)
	buyer := newResident(2, 100)

	// Ask rests on tick 1; bid arrives tick 2 at a higher price.
	_, err := e.Submit(seller, econ.GoodGrain, Ask, 4.0, 10, 1)
	require.NoError(t, err)
	e.MatchAll(1, 0)

	_, err = e.Submit(buyer, econ.GoodGrain, Bid, 5.0, 10, 2)
	require.NoError(t, err)
	trades := e.MatchAll(2, 0)

	require.Len(t, trades, 1)
	assert.Equal(t, 4.0, trades[0].Price, "resting order price wins")
	assert.Equal(t, 10.0, trades[0].Qty)

	b := e.Book(econ.GoodGrain)
	assert.Empty(t, b.Bids)
	assert.Empty(t, b.Asks)

	// Buyer escrowed 50, paid 40, got the spread back.
	assert.InDelta(t, 60.0, buyer.Cash, 1e-9)
	assert.InDelta(t, 40.0, seller.Cash, 1e-9)
	assert.Equal(t, 10.0, buyer.Inventory.Qty(econ.GoodGrain))
	assert.Equal(t, 0.0, seller.Inventory.Qty(econ.GoodGrain))
}

func TestBothNewThisTickUsesAskPrice(t *testing.T) {
	e := NewEngine()
	seller := newResident(1, 0)
	seller.Inventory.Add(econ.GoodTimber, 5)
	buyer := newResident(2, 100)

	_, err := e.Submit(buyer, econ.GoodTimber, Bid, 6.0, 5, 3)
	require.NoError(t, err)
	_, err = e.Submit(seller, econ.GoodTimber, Ask, 4.5, 5, 3)
	require.NoError(t, err)

	trades := e.MatchAll(3, 0)
	require.Len(t, trades, 1)
	assert.Equal(t, 4.5, trades[0].Price, "seller sets the spot price")
}

func TestRestingBidSetsPrice(t *testing.T) {
	e := NewEngine()
	buyer := newResident(1, 100)
	seller := newResident(2, 0)
	seller.Inventory.Add(econ.GoodCoal, 3)

	_, err := e.Submit(buyer, econ.GoodCoal, Bid, 5.0, 3, 1)
	require.NoError(t, err)
	e.MatchAll(1, 0)

	_, err = e.Submit(seller, econ.GoodCoal, Ask, 4.0, 3, 2)
	require.NoError(t, err)
	trades := e.MatchAll(2, 0)

	require.Len(t, trades, 1)
	assert.Equal(t, 5.0, trades[0].Price)
}

func TestSubmitRejections(t *testing.T) {
	e := NewEngine()
	broke := newResident(1, 5)
	empty := newResident(2, 100)

	_, err := e.Submit(broke, econ.GoodGrain, Bid, 2.0, 10, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 5.0, broke.Cash, "rejected bid leaves cash untouched")

	_, err = e.Submit(empty, econ.GoodGrain, Ask, 2.0, 1, 1)
	assert.ErrorIs(t, err, ErrInsufficientInventory)

	_, err = e.Submit(empty, econ.GoodGrain, Bid, 2.0, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	assert.Empty(t, e.Book(econ.GoodGrain).Bids)
	assert.Empty(t, e.Book(econ.GoodGrain).Asks)
}

func TestCancelIsIdempotent(t *testing.T) {
	e := NewEngine()
	buyer := newResident(1, 100)

	id, err := e.Submit(buyer, econ.GoodHerbs, Bid, 4.0, 5, 1)
	require.NoError(t, err)
	assert.InDelta(t, 80.0, buyer.Cash, 1e-9)

	e.Cancel(id)
	assert.InDelta(t, 100.0, buyer.Cash, 1e-9, "escrow refunded")
	assert.Empty(t, e.Book(econ.GoodHerbs).Bids)

	// Second cancel and cancel of an unknown id are no-ops.
	e.Cancel(id)
	e.Cancel("no-such-order")
	assert.InDelta(t, 100.0, buyer.Cash, 1e-9)
}

func TestPartialFillAndBookInvariants(t *testing.T) {
	e := NewEngine()
	seller := newResident(1, 0)
	seller.Inventory.Add(econ.GoodIronOre, 4)
	buyer := newResident(2, 1000)

	_, err := e.Submit(seller, econ.GoodIronOre, Ask, 5.0, 4, 1)
	require.NoError(t, err)
	e.MatchAll(1, 0)

	_, err = e.Submit(buyer, econ.GoodIronOre, Bid, 6.0, 10, 2)
	require.NoError(t, err)
	trades := e.MatchAll(2, 0)

	require.Len(t, trades, 1)
	assert.Equal(t, 4.0, trades[0].Qty)

	b := e.Book(econ.GoodIronOre)
	require.Len(t, b.Bids, 1, "unfilled bid remainder rests")
	assert.Equal(t, 6.0, b.Bids[0].Price)
	assert.Equal(t, 6.0, b.Bids[0].Qty)
	assert.Empty(t, b.Asks)

	// No crossed orders survive a matching pass.
	if bb, ok := b.BestBid(); ok {
		if ba, ok2 := b.BestAsk(); ok2 {
			assert.Less(t, bb, ba)
		}
	}
}

func TestBookSortOrder(t *testing.T) {
	e := NewEngine()
	buyer := newResident(1, 10000)
	seller := newResident(2, 0)
	seller.Inventory.Add(econ.GoodGrain, 100)

	for _, p := range []float64{1.0, 1.4, 1.2} {
		_, err := e.Submit(buyer, econ.GoodGrain, Bid, p, 1, 1)
		require.NoError(t, err)
	}
	for _, p := range []float64{9.0, 8.0, 8.5} {
		_, err := e.Submit(seller, econ.GoodGrain, Ask, p, 1, 1)
		require.NoError(t, err)
	}

	b := e.Book(econ.GoodGrain)
	for i := 1; i < len(b.Bids); i++ {
		assert.GreaterOrEqual(t, b.Bids[i-1].Price, b.Bids[i].Price)
	}
	for i := 1; i < len(b.Asks); i++ {
		assert.LessOrEqual(t, b.Asks[i-1].Price, b.Asks[i].Price)
	}
}

func TestPriceTimeTieBreak(t *testing.T) {
	e := NewEngine()
	s1 := newResident(1, 0)
	s1.Inventory.Add(econ.GoodGrain, 1)
	s2 := newResident(2, 0)
	s2.Inventory.Add(econ.GoodGrain, 1)
	buyer := newResident(3, 100)

	_, err := e.Submit(s1, econ.GoodGrain, Ask, 3.0, 1, 1)
	require.NoError(t, err)
	_, err = e.Submit(s2, econ.GoodGrain, Ask, 3.0, 1, 1)
	require.NoError(t, err)
	e.MatchAll(1, 0)

	_, err = e.Submit(buyer, econ.GoodGrain, Bid, 3.0, 1, 2)
	require.NoError(t, err)
	trades := e.MatchAll(2, 0)

	require.Len(t, trades, 1)
	assert.Equal(t, s1.TraderKey(), trades[0].SellerKey, "earlier insertion fills first")
	assert.Equal(t, 1.0, e.RestingGoods(econ.GoodGrain), "second ask still resting")
}

func TestDailyCandles(t *testing.T) {
	e := NewEngine()
	seller := newResident(1, 0)
	seller.Inventory.Add(econ.GoodGrain, 10)
	buyer := newResident(2, 1000)

	_, _ = e.Submit(seller, econ.GoodGrain, Ask, 2.0, 5, 1)
	_, _ = e.Submit(buyer, econ.GoodGrain, Bid, 2.0, 5, 1)
	e.MatchAll(1, 0)
	e.CloseDay(0)

	b := e.Book(econ.GoodGrain)
	require.Len(t, b.History, 1)
	c := b.History[0]
	assert.Equal(t, uint64(0), c.Day)
	assert.Equal(t, 2.0, c.Open)
	assert.Equal(t, 2.0, c.Close)
	assert.Equal(t, 5.0, c.Volume)

	// A day without trades yields a flat zero-volume candle.
	e.CloseDay(1)
	require.Len(t, b.History, 2)
	assert.Equal(t, 0.0, b.History[1].Volume)
	assert.Equal(t, 2.0, b.History[1].Close)
}
