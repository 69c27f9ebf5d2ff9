package futures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-economy/internal/econ"
)

func resident(cash float64) *econ.Resident {
	return &econ.Resident{ID: 1, Cash: cash, Portfolio: make(map[econ.CompanyID]int)}
}

func TestMarginBoundary(t *testing.T) {
	// price 10 × contract 50 × ratio 0.2 = margin of exactly 100.
	require.Equal(t, 100.0, MarginRequired(10))

	d := NewDesk(nil)
	exact := resident(100)
	_, err := d.Open(exact, econ.GoodGrain, econ.FutureLong, 10, 0)
	assert.NoError(t, err, "exact margin succeeds")
	assert.Equal(t, 0.0, exact.Cash)

	short := resident(99)
	_, err = d.Open(short, econ.GoodGrain, econ.FutureLong, 10, 0)
	assert.ErrorIs(t, err, ErrInsufficientMargin)
	assert.Equal(t, 99.0, short.Cash, "rejected open leaves cash untouched")
}

func TestLongCloseRealizesPnL(t *testing.T) {
	d := NewDesk(nil)
	r := resident(200)

	id, err := d.Open(r, econ.GoodTimber, econ.FutureLong, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 100.0, r.Cash)

	// Price moves 10 → 12: PnL = 2 × 50 = +100.
	pnl, err := d.Close(id, 12)
	require.NoError(t, err)
	assert.Equal(t, 100.0, pnl)
	assert.Equal(t, 300.0, r.Cash, "margin plus profit returned")
	assert.Empty(t, r.Futures)
	assert.Equal(t, 0, d.OpenPositions())
}

func TestShortSideNegation(t *testing.T) {
	d := NewDesk(nil)
	r := resident(200)

	id, err := d.Open(r, econ.GoodCoal, econ.FutureShort, 10, 0)
	require.NoError(t, err)

	pnl, err := d.Close(id, 9) // price fell: short wins 1 × 50
	require.NoError(t, err)
	assert.Equal(t, 50.0, pnl)
}

func TestCloseUnknownPosition(t *testing.T) {
	d := NewDesk(nil)
	_, err := d.Close("nope", 10)
	assert.ErrorIs(t, err, ErrUnknownPosition)
}

func TestSweepLiquidatesExhaustedMargin(t *testing.T) {
	d := NewDesk(nil)
	r := resident(100)

	_, err := d.Open(r, econ.GoodGrain, econ.FutureLong, 10, 0)
	require.NoError(t, err)

	// Price 10 → 8: loss 2 × 50 = 100 ≥ margin 100 → forced liquidation.
	d.Sweep(1, func(econ.GoodType) float64 { return 8 })
	assert.Equal(t, 0, d.OpenPositions())
	assert.Equal(t, 0.0, r.Cash, "nothing left after full margin loss")
	assert.Empty(t, r.Futures)
}

func TestSweepForceClosesExpired(t *testing.T) {
	d := NewDesk(nil)
	r := resident(100)

	_, err := d.Open(r, econ.GoodGrain, econ.FutureLong, 10, 0)
	require.NoError(t, err)

	// Unmoved price, but the term has run out.
	d.Sweep(econ.FuturesTermDays, func(econ.GoodType) float64 { return 10 })
	assert.Equal(t, 0, d.OpenPositions())
	assert.Equal(t, 100.0, r.Cash, "margin returned at expiry")
}

func TestDeskMoneyFlowLogged(t *testing.T) {
	events := map[string]float64{}
	d := NewDesk(func(kind string, amount float64, _ string) { events[kind] += amount })

	winner := resident(100)
	id, _ := d.Open(winner, econ.GoodGrain, econ.FutureLong, 10, 0)
	_, _ = d.Close(id, 11)
	assert.Equal(t, 50.0, events["futures_win"])

	loser := resident(100)
	id, _ = d.Open(loser, econ.GoodGrain, econ.FutureLong, 10, 0)
	_, _ = d.Close(id, 9)
	assert.Equal(t, 50.0, events["futures_loss"])
}

func TestMarginHeldAudit(t *testing.T) {
	d := NewDesk(nil)
	r := resident(500)
	_, _ = d.Open(r, econ.GoodGrain, econ.FutureLong, 10, 0)
	_, _ = d.Open(r, econ.GoodCoal, econ.FutureShort, 10, 0)
	assert.Equal(t, 200.0, d.MarginHeld())
}
