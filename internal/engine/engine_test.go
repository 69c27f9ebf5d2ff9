package engine

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-economy/internal/econ"
	"github.com/talgya/mini-economy/internal/market"
)

// testWorld builds an empty world with a fast test cadence: one tick per
// market pass and per day, macro every five days.
func testWorld(t *testing.T) (*World, *Simulation) {
	t.Helper()
	w := NewWorld(42, nil, nil, 1000)
	cad := Cadence{MarketEveryTicks: 1, DayEveryTicks: 1, MacroEveryTicks: 5}
	require.NoError(t, cad.Valid())
	sim := NewSimulation(w, cad)
	sim.Strict = true
	return w, sim
}

func addResident(w *World, id econ.ResidentID, cash float64) *econ.Resident {
	r := &econ.Resident{ID: id, Name: "r", Cash: cash, Intelligence: 0.5, Portfolio: make(map[econ.CompanyID]int)}
	w.Residents = append(w.Residents, r)
	w.Reindex()
	w.ResetBaselines()
	return r
}

func addCompany(w *World, id econ.CompanyID, good econ.GoodType, cash float64) *econ.Company {
	c := &econ.Company{
		ID:              id,
		Name:            "co",
		Cash:            cash,
		TargetEmployees: econ.DefaultTargetEmployees,
		WageMultiplier:  econ.DefaultWageMult,
		WageOffer:       econ.DefaultWageMult * econ.BasePrice(good),
		PricePremium:    1.0,
		Lines:           []econ.ProductionLine{{Good: good, Efficiency: 1.0, MaxCapacity: 30}},
		LandTokens:      1,
		SharePrice:      1.0,
		TotalShares:     econ.DefaultTotalShares,
		CreditScore:     0.5,
	}
	w.Companies = append(w.Companies, c)
	w.Reindex()
	w.ResetBaselines()
	return c
}

func TestCadenceValidation(t *testing.T) {
	assert.NoError(t, DefaultCadence().Valid())
	assert.Error(t, Cadence{}.Valid())
	assert.Error(t, Cadence{MarketEveryTicks: 7, DayEveryTicks: 60, MacroEveryTicks: 1800}.Valid())
	assert.Error(t, Cadence{MarketEveryTicks: 1, DayEveryTicks: 60, MacroEveryTicks: 100}.Valid())
}

func TestSpeedDoesNotChangeCadence(t *testing.T) {
	// SimTime depends only on tick count, never on wall-clock speed.
	cad := DefaultCadence()
	assert.Equal(t, "day 2, 12:00", SimTime(150, cad))
}

func TestGrainSpoilsDeterministically(t *testing.T) {
	w, sim := testWorld(t)
	c := addCompany(w, 1, econ.GoodGrain, 1000)
	c.TargetEmployees = 0 // nobody to hire, so nothing is produced
	c.RawInv.Add(econ.GoodGrain, 10)
	w.ResetBaselines()

	sim.Advance(5)
	require.False(t, sim.Halted(), "conservation must hold: %v", sim.HaltReason())

	// Five days of 1/30 daily decay, compounding.
	want := 10 * math.Pow(1-econ.SpoilRate(econ.GoodGrain), 5)
	assert.InDelta(t, want, w.TotalGood(econ.GoodGrain), 1e-9)

	produced, consumed, spoiled := w.GoodFlows(econ.GoodGrain)
	assert.Zero(t, produced)
	assert.Zero(t, consumed)
	assert.InDelta(t, 10-want, spoiled, 1e-9)
}

func TestHiringPrefersIntelligence(t *testing.T) {
	w, sim := testWorld(t)
	c := addCompany(w, 1, econ.GoodGrain, 1000)
	c.TargetEmployees = 1

	dull := addResident(w, 1, 10)
	dull.Intelligence = 0.2
	sharp := addResident(w, 2, 10)
	sharp.Intelligence = 0.9

	sim.Advance(1)

	assert.Equal(t, econ.JobUnemployed, dull.Job)
	require.NotNil(t, sharp.EmployerID)
	assert.Equal(t, c.ID, *sharp.EmployerID)
	assert.Equal(t, econ.JobFarmer, sharp.Job)
	assert.Equal(t, c.WageOffer, sharp.WageDaily)
}

func TestWageStickiness(t *testing.T) {
	w, sim := testWorld(t)
	c := addCompany(w, 1, econ.GoodGrain, 10000)
	c.TargetEmployees = 0
	c.WageOffer = 100 // far above what the reference price implies

	// Inside the stickiness window the offer is frozen entirely.
	sim.Advance(int(econ.WageStickinessDays) - 1)
	assert.Equal(t, 100.0, c.WageOffer)
	assert.Zero(t, c.LastWageAdjustDay)
}

func TestWageCutIsCapped(t *testing.T) {
	w, sim := testWorld(t)
	c := addCompany(w, 1, econ.GoodGrain, 10000)
	c.TargetEmployees = 0
	c.WageOffer = 100

	// The first eligible adjustment wants to fall to the reference-derived
	// wage but may cut by at most the cap.
	sim.Advance(int(econ.WageStickinessDays))
	assert.InDelta(t, 100*(1-econ.MaxWageCut), c.WageOffer, 1e-9)
	assert.Equal(t, uint64(econ.WageStickinessDays), c.LastWageAdjustDay)
}

func TestMinWageOverrideFloorsOffers(t *testing.T) {
	w, sim := testWorld(t)
	c := addCompany(w, 1, econ.GoodGrain, 10000)
	c.TargetEmployees = 0
	min := 50.0
	w.Override = &PolicyOverride{MinWage: &min}

	sim.Advance(int(econ.WageStickinessDays))
	assert.GreaterOrEqual(t, c.WageOffer, min)
}

func TestBankruptcyReleasesEmployees(t *testing.T) {
	w, sim := testWorld(t)
	c := addCompany(w, 1, econ.GoodGrain, 5)
	c.TargetEmployees = 1
	c.LandTokens = 0
	r := addResident(w, 1, 10)

	sim.Advance(1)
	require.NotNil(t, r.EmployerID)

	// Drain the company so maintenance pushes it under and no lender
	// will touch it.
	c.Cash = -100
	c.LastProfit = -50
	sim.Advance(1)

	assert.True(t, c.IsBankrupt)
	assert.Nil(t, r.EmployerID)
	assert.Equal(t, econ.JobUnemployed, r.Job)
	assert.Equal(t, 0, c.Employees)
}

func TestProductionConsumesRecipeInputs(t *testing.T) {
	w, sim := testWorld(t)
	c := addCompany(w, 1, econ.GoodBread, 10000)
	c.TargetEmployees = 1
	c.RawInv.Add(econ.GoodGrain, 100)
	addResident(w, 1, 10)
	w.ResetBaselines()

	sim.Advance(1)
	require.False(t, sim.Halted(), "%v", sim.HaltReason())

	produced, _, _ := w.GoodFlows(econ.GoodBread)
	assert.Greater(t, produced, 0.0)
	// Two grain per loaf, minus the day's grain spoilage.
	assert.Less(t, c.RawInv.Qty(econ.GoodGrain), 100.0)
}

func TestPartialProductionScalesToInputs(t *testing.T) {
	w, sim := testWorld(t)
	c := addCompany(w, 1, econ.GoodBread, 10000)
	c.TargetEmployees = 1
	c.RawInv.Add(econ.GoodGrain, 1) // enough for half a loaf
	addResident(w, 1, 10)
	w.ResetBaselines()

	sim.Advance(1)

	produced, _, _ := w.GoodFlows(econ.GoodBread)
	assert.InDelta(t, 0.5, produced, 1e-9)
}

func TestConsumptionFeedsResidents(t *testing.T) {
	w, sim := testWorld(t)
	r := addResident(w, 1, 100)
	r.Inventory.Add(econ.GoodBread, 3)
	w.ResetBaselines()

	sim.Advance(1)
	require.False(t, sim.Halted(), "%v", sim.HaltReason())

	assert.InDelta(t, 2.0, r.Inventory.Qty(econ.GoodBread), 1e-9)
	_, consumed, _ := w.GoodFlows(econ.GoodBread)
	assert.InDelta(t, econ.FoodPerResidentDay, consumed, 1e-9)
}

func TestExternalEventShocksProduction(t *testing.T) {
	w, sim := testWorld(t)
	require.Error(t, sim.ApplyExternalEvent(&ExternalEvent{TargetGood: "unobtanium"}))

	require.NoError(t, sim.ApplyExternalEvent(&ExternalEvent{
		TargetGood:      "grain",
		ModifierPercent: -50,
		Impact:          ImpactProduction,
		Description:     "locust swarm",
	}))
	require.Len(t, w.Shocks, 1)

	base := w.Harvest.YieldMultiplier(0, econ.GoodGrain)
	assert.InDelta(t, base*0.5, sim.productionShock(0, econ.GoodGrain), 1e-9)

	// Shocks lapse after their window.
	sim.expireShocks(ShockDurationDays + 1)
	assert.Empty(t, w.Shocks)
}

func TestMoneyConservationOverRun(t *testing.T) {
	w, sim := testWorld(t)
	for i := 1; i <= 5; i++ {
		addResident(w, econ.ResidentID(i), 100)
	}
	grain := addCompany(w, 1, econ.GoodGrain, 2000)
	grain.RawInv.Add(econ.GoodGrain, 50)
	bakery := addCompany(w, 2, econ.GoodBread, 2000)
	bakery.RawInv.Add(econ.GoodGrain, 20)
	w.ResetBaselines()

	sim.Advance(10) // two macro audits in strict mode
	require.False(t, sim.Halted(), "conservation drift: %v", sim.HaltReason())
}

func TestStrictHaltOnInjectedLeak(t *testing.T) {
	w, sim := testWorld(t)
	r := addResident(w, 1, 100)
	w.ResetBaselines()

	r.Cash += 1000 // unlogged money from nowhere
	sim.Advance(5)

	require.True(t, sim.Halted())
	var viol *InvariantViolation
	require.ErrorAs(t, sim.HaltReason(), &viol)
	assert.Equal(t, "money", viol.Subject)
}

func TestLoggedPrinterPassesAudit(t *testing.T) {
	w, sim := testWorld(t)
	addResident(w, 1, 100)
	w.ResetBaselines()

	rate := 25.0
	sim.SetPolicyOverride(&PolicyOverride{MoneyPrinterRate: &rate})
	sim.Advance(5)

	require.False(t, sim.Halted(), "%v", sim.HaltReason())
	assert.Greater(t, w.Treasury.Cash, 0.0)
}

func TestDeferredMutationsRunAtTickBoundary(t *testing.T) {
	_, sim := testWorld(t)
	ran := false
	sim.Defer(func() { ran = true })
	assert.False(t, ran)
	sim.Advance(1)
	assert.True(t, ran)
}

func TestCreateCompanyChargesFounder(t *testing.T) {
	w, sim := testWorld(t)
	founder := addResident(w, 1, 2000)

	id, err := sim.CreateCompany(founder.ID, "acme-bakery", "bread", 1000)
	require.NoError(t, err)

	c := w.CompanyByID(id)
	require.NotNil(t, c)
	assert.Equal(t, 1000.0, c.Cash)
	assert.Equal(t, econ.CompanyRegistrationFee, w.Treasury.Cash)
	assert.InDelta(t, 2000-1000-econ.CompanyRegistrationFee, founder.Cash, 1e-9)
	assert.Equal(t, c.TotalShares, founder.Portfolio[id])

	_, err = sim.CreateCompany(founder.ID, "second", "bread", 1000)
	assert.ErrorIs(t, err, ErrInsufficientCash)

	_, err = sim.CreateCompany(founder.ID, "bad", "unobtanium", 0)
	assert.ErrorIs(t, err, ErrUnknownGood)
}

func TestStockRoundTrip(t *testing.T) {
	w, sim := testWorld(t)
	r := addResident(w, 1, 1000)
	c := addCompany(w, 1, econ.GoodGrain, 1000)
	c.SharePrice = 2.0

	require.NoError(t, sim.BuyStock(r.ID, c.ID, 100))
	assert.Equal(t, 800.0, r.Cash)
	assert.Equal(t, 1200.0, c.Cash)
	assert.Equal(t, 100, r.Portfolio[c.ID])

	require.NoError(t, sim.SellStock(r.ID, c.ID, 100))
	assert.Equal(t, 1000.0, r.Cash)
	assert.NotContains(t, r.Portfolio, c.ID)

	assert.ErrorIs(t, sim.SellStock(r.ID, c.ID, 1), ErrNoPosition)
}

func TestShortAndCover(t *testing.T) {
	w, sim := testWorld(t)
	r := addResident(w, 1, 100)
	c := addCompany(w, 1, econ.GoodGrain, 1000)
	c.SharePrice = 2.0

	require.NoError(t, sim.ShortStock(r.ID, c.ID, 50))
	assert.Equal(t, 200.0, r.Cash)
	assert.Equal(t, -50, r.Portfolio[c.ID])

	c.SharePrice = 1.0 // price falls, the short profits
	require.NoError(t, sim.CoverStock(r.ID, c.ID, 50))
	assert.Equal(t, 150.0, r.Cash)
	assert.NotContains(t, r.Portfolio, c.ID)

	assert.ErrorIs(t, sim.CoverStock(r.ID, c.ID, 1), ErrNoPosition)
}

func TestPayDividend(t *testing.T) {
	w, sim := testWorld(t)
	r := addResident(w, 1, 0)
	c := addCompany(w, 1, econ.GoodGrain, 1000)
	c.Shareholders = []econ.Shareholder{{HolderID: r.ID, Count: 200}}

	require.NoError(t, sim.PayDividend(c.ID, 0.5))
	assert.Equal(t, 100.0, r.Cash)
	assert.Equal(t, 900.0, c.Cash)

	assert.ErrorIs(t, sim.PayDividend(c.ID, 100), ErrInsufficientCash)
}

func TestSnapshotBalances(t *testing.T) {
	w, sim := testWorld(t)
	addResident(w, 1, 100)
	c := addCompany(w, 1, econ.GoodGrain, 500)
	c.RawInv.Add(econ.GoodGrain, 10)

	snap := sim.Snapshot()
	assert.Equal(t, 100.0, snap.Money.Residents)
	assert.Equal(t, 500.0, snap.Money.Companies)
	assert.Equal(t, 1000.0, snap.Money.BankReserves)
	assert.InDelta(t, w.TotalMoney(), snap.Money.Total, 1e-9)

	grain := snap.Goods[econ.GoodGrain]
	assert.Equal(t, 10.0, grain.HeldByFirms)
	assert.InDelta(t, w.TotalGood(econ.GoodGrain), grain.Total, 1e-9)
}

func TestFiscalStanceFromHoarding(t *testing.T) {
	w, sim := testWorld(t)
	addResident(w, 1, 100)

	w.Treasury.Cash = 10000 // dwarfs everything else
	sim.recomputeFiscalStance(1)
	assert.Equal(t, FiscalStimulus, w.Treasury.Status)

	w.Treasury.Cash = 0
	sim.recomputeFiscalStance(2)
	assert.Equal(t, FiscalAusterity, w.Treasury.Status)

	w.Treasury.Cash = 120 // ~10% of the total
	sim.recomputeFiscalStance(3)
	assert.Equal(t, FiscalNeutral, w.Treasury.Status)
}

func TestManufacturingPassesStrictAudit(t *testing.T) {
	w, sim := testWorld(t)
	bakery := addCompany(w, 1, econ.GoodBread, 10000)
	bakery.TargetEmployees = 1
	bakery.RawInv.Add(econ.GoodGrain, 100)
	addResident(w, 1, 10)
	w.ResetBaselines()

	sim.Advance(6) // crosses a macro audit on tick 5
	require.False(t, sim.Halted(), "conservation drift: %v", sim.HaltReason())

	// Recipe inputs are the only grain sink here: two grain per loaf.
	_, grainConsumed, _ := w.GoodFlows(econ.GoodGrain)
	breadProduced, _, _ := w.GoodFlows(econ.GoodBread)
	require.Greater(t, breadProduced, 0.0)
	assert.InDelta(t, 2*breadProduced, grainConsumed, 1e-9)
}

func TestPoachingUpdatesHeadcountsInPass(t *testing.T) {
	w, sim := testWorld(t)
	rich := addCompany(w, 1, econ.GoodGrain, 10000)
	rich.TargetEmployees = 1
	rich.WageOffer = 50
	poor := addCompany(w, 2, econ.GoodGrain, 10000)
	poor.TargetEmployees = 1

	veteran := addResident(w, 1, 50)
	veteran.Intelligence = 0.9
	emp := poor.ID
	veteran.EmployerID = &emp
	veteran.Job = econ.JobFarmer
	veteran.WageDaily = 10

	novice := addResident(w, 2, 50)
	novice.Intelligence = 0.2
	w.Reindex()
	w.ResetBaselines()

	sim.Advance(1)

	// The higher offer poaches the veteran; the raided company sees the
	// vacancy in the same pass and refills it with the novice.
	require.NotNil(t, veteran.EmployerID)
	assert.Equal(t, rich.ID, *veteran.EmployerID)
	require.NotNil(t, novice.EmployerID)
	assert.Equal(t, poor.ID, *novice.EmployerID)
	assert.Equal(t, 1, w.Idx().Headcount(rich.ID))
	assert.Equal(t, 1, w.Idx().Headcount(poor.ID))
}

func TestExpenseDisbursementIsPerPhase(t *testing.T) {
	w, sim := testWorld(t)
	first := addResident(w, 1, 0)
	second := addResident(w, 2, 0)
	w.Treasury.Cash = 7 // covers welfare, runs dry mid public wages
	w.ResetBaselines()

	sim.disburseExpenses()

	assert.InDelta(t, 6.0, first.Cash, 1e-9)  // 1 welfare + 5 of the 10 wage share
	assert.InDelta(t, 1.0, second.Cash, 1e-9) // welfare only
	assert.Zero(t, w.Treasury.Cash)
	assert.InDelta(t, 7.0, w.Treasury.DailyExpense, 1e-9)
}

func TestConcurrentIntentsAndReads(t *testing.T) {
	w, sim := testWorld(t)
	for i := 1; i <= 5; i++ {
		addResident(w, econ.ResidentID(i), 500)
	}
	addCompany(w, 1, econ.GoodGrain, 5000)
	w.ResetBaselines()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			sim.Advance(1)
		}
	}()
	go func() {
		defer wg.Done()
		rate := 0.05
		for i := 0; i < 50; i++ {
			_, _ = sim.SubmitOrder("r:1", "grain", market.Bid, 1.0, 0.1)
			_, _ = sim.BookSnapshot("grain")
			sim.Snapshot()
			sim.SetPolicyOverride(&PolicyOverride{InterestRate: &rate})
		}
	}()
	wg.Wait()

	require.False(t, sim.Halted(), "conservation drift under load: %v", sim.HaltReason())
}
