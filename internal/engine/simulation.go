package engine

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/talgya/mini-economy/internal/econ"
	"github.com/talgya/mini-economy/internal/market"
	"github.com/talgya/mini-economy/internal/numutil"
)

// Simulation owns the world and advances it tick by tick. The tick loop
// is the single writer: intent methods serialize against it on mu, and
// concurrent callers may also queue closures through Defer to run at the
// next tick boundary. Readers take the same boundary via View.
type Simulation struct {
	World       *World
	Cad         Cadence
	EventSource EventSource

	// Strict halts the run on a conservation violation instead of
	// re-anchoring and continuing.
	Strict bool

	// mu guards all world state. step and the mutating intents hold it
	// for writing; View and Snapshot hold it for reading.
	mu      sync.RWMutex
	deferMu sync.Mutex

	totalTicks uint64
	halted     bool
	haltErr    error
	deferred   []func()
	prevCPI    float64
}

// NewSimulation wraps a world with the given cadence.
func NewSimulation(w *World, cad Cadence) *Simulation {
	return &Simulation{World: w, Cad: cad}
}

// TotalTicks is the number of ticks advanced so far. It reads without
// locking, as do Day, Halted and HaltReason: call them from the tick
// goroutine or from inside a View closure.
func (s *Simulation) TotalTicks() uint64 { return s.totalTicks }

// SetTotalTicks restores the tick counter, used when resuming a saved run.
func (s *Simulation) SetTotalTicks(n uint64) {
	s.totalTicks = n
	s.World.lastDay = n / s.Cad.DayEveryTicks
}

// Day is the current simulation day.
func (s *Simulation) Day() uint64 { return s.totalTicks / s.Cad.DayEveryTicks }

// Halted reports whether a strict-mode audit failure stopped the run.
func (s *Simulation) Halted() bool { return s.halted }

// HaltReason returns the halt error, nil while running.
func (s *Simulation) HaltReason() error { return s.haltErr }

// Defer queues a mutation to run at the start of the next tick.
func (s *Simulation) Defer(fn func()) {
	s.deferMu.Lock()
	s.deferred = append(s.deferred, fn)
	s.deferMu.Unlock()
}

// View runs fn with a read lock on world state. API handlers use this
// for any read that is not already an intent or Snapshot.
func (s *Simulation) View(fn func(w *World)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.World)
}

// Advance runs n ticks, stopping early if the simulation halts.
func (s *Simulation) Advance(n int) {
	for i := 0; i < n && !s.halted; i++ {
		s.step()
	}
}

// step is one tick: deferred mutations, then each pass whose cadence
// divides the new tick count.
func (s *Simulation) step() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalTicks++
	s.World.Reindex()

	s.deferMu.Lock()
	pending := s.deferred
	s.deferred = nil
	s.deferMu.Unlock()
	if len(pending) > 0 {
		for _, fn := range pending {
			fn()
		}
		s.World.Reindex()
	}

	if s.totalTicks%s.Cad.MarketEveryTicks == 0 {
		trades := s.World.Market.MatchAll(s.totalTicks, s.Day())
		s.recordTradeFlows(trades)
		s.collectConsumptionTax(trades)
	}
	if s.totalTicks%s.Cad.DayEveryTicks == 0 {
		s.dayPass(s.Day())
	}
	if s.totalTicks%s.Cad.MacroEveryTicks == 0 {
		s.macroPass(s.Day())
	}
}

// dayPass runs the daily economic cycle. Order matters: labor before
// wages, production before consumption, settlement before taxes.
func (s *Simulation) dayPass(day uint64) {
	s.World.lastDay = day

	s.expireShocks(day)
	s.pollEvents(day)
	s.recallOrders()

	s.laborPass(day)
	s.payWages(day)
	s.productionPass(day)
	s.consumptionPass(day)
	s.placeCompanyOrders(day)
	s.placeResidentOrders(day)

	s.World.Bank.Amortize(day, func(id econ.CompanyID) *econ.Company {
		return s.World.Idx().CompanyByID[id]
	})
	s.World.Bank.AccrueDepositInterest()
	s.World.Desk.Sweep(day, func(g econ.GoodType) float64 {
		return s.World.Market.LastPrice(g)
	})

	s.settleProfits()
	s.collectCorporateTax()
	s.disburseExpenses()
	s.runMoneyPrinter(day)

	s.World.Market.CloseDay(day)
	s.updateStats(day)

	slog.Info("daily report",
		"day", day,
		"population", s.World.Stats.Population,
		"unemployment", fmt.Sprintf("%.1f%%", s.World.Stats.Unemployment*100),
		"cpi", humanize.CommafWithDigits(s.World.Stats.CPI, 2),
		"money_supply", humanize.CommafWithDigits(s.World.Stats.MoneySupply, 0),
		"treasury", humanize.CommafWithDigits(s.World.Treasury.Cash, 0),
	)
}

// macroPass runs monetary policy, fiscal stance, company lifecycle,
// migration, and the conservation audit.
func (s *Simulation) macroPass(day uint64) {
	inflation := s.computeInflation()
	s.World.Stats.Inflation = inflation

	if s.World.Override != nil {
		s.World.Bank.RateOverride = s.World.Override.InterestRate
	}
	s.World.Bank.UpdatePolicyRate(day, inflation, s.World.Stats.Unemployment)

	s.recomputeFiscalStance(day)

	for _, c := range s.World.Companies {
		s.World.Bank.ScoreCompany(c)
		s.updateStage(c)
	}

	s.runMigration(day)

	if err := s.auditConservation(day); err != nil {
		if s.Strict {
			s.halted = true
			s.haltErr = err
			slog.Error("conservation violated, halting", "day", day, "error", err)
			return
		}
		slog.Warn("conservation violated, re-anchoring", "day", day, "error", err)
		s.World.ResetBaselines()
	} else {
		s.World.ResetBaselines()
	}
}

// computeInflation derives the CPI from a consumer basket priced at last
// trade, normalized by base prices, and returns the EMA-smoothed change
// per macro period. The first call seeds the baseline and reports zero.
func (s *Simulation) computeInflation() float64 {
	basket := []econ.GoodType{econ.GoodGrain, econ.GoodBread, econ.GoodClothes, econ.GoodMedicine}
	cpi := 0.0
	for _, g := range basket {
		cpi += numutil.SafeDiv(s.World.Market.LastPrice(g), econ.BasePrice(g), 1)
	}
	cpi /= float64(len(basket))
	s.World.Stats.CPI = cpi

	if s.prevCPI == 0 {
		s.prevCPI = cpi
		return 0
	}
	raw := numutil.SafeDiv(cpi-s.prevCPI, s.prevCPI, 0)
	smoothed := numutil.EMA(s.World.Stats.Inflation, raw, 0.5)
	s.prevCPI = cpi
	return smoothed
}

// updateStats refreshes the daily aggregates and appends to history.
func (s *Simulation) updateStats(day uint64) {
	st := &s.World.Stats
	st.Day = day
	st.Population = len(s.World.Residents)

	employed := 0
	wageSum := 0.0
	for _, r := range s.World.Residents {
		if r.Job != econ.JobUnemployed {
			employed++
			wageSum += r.WageDaily
		}
	}
	st.Employed = employed
	st.Unemployment = numutil.SafeDiv(float64(st.Population-employed), float64(st.Population), 0)
	st.AvgWage = numutil.SafeDiv(wageSum, float64(employed), 0)
	st.MoneySupply = s.World.TotalMoney()

	bankrupt := 0
	for _, c := range s.World.Companies {
		if c.IsBankrupt {
			bankrupt++
		}
	}
	st.Bankruptcies = bankrupt

	s.World.StatsHistory = append(s.World.StatsHistory, *st)
	if len(s.World.StatsHistory) > 3650 {
		s.World.StatsHistory = s.World.StatsHistory[len(s.World.StatsHistory)-3650:]
	}
}

// updateStage moves a company along its lifecycle.
func (s *Simulation) updateStage(c *econ.Company) {
	switch {
	case c.IsBankrupt:
		c.Stage = econ.StageDecline
	case c.AgeDays < 30:
		c.Stage = econ.StageStartup
	case c.LastProfit > 0:
		if c.Stage == econ.StageStartup || c.Stage == econ.StageDecline {
			c.Stage = econ.StageGrowth
		} else {
			c.Stage = econ.StageMaturity
		}
	case c.AgeDays > 180 && c.LastProfit <= 0:
		c.Stage = econ.StageDecline
	}
}

// runMigration admits newcomers when the labor market can absorb them.
// Immigrant cash enters from outside the economy, so it is logged as
// created money.
func (s *Simulation) runMigration(day uint64) {
	if s.World.Stats.Unemployment > 0.10 {
		return
	}
	mult := 1.0
	if s.World.Override != nil && s.World.Override.MigrationMultiplier != nil {
		mult = *s.World.Override.MigrationMultiplier
	}
	count := int(float64(len(s.World.Residents)) * 0.01 * mult)
	if count <= 0 {
		return
	}
	const arrivalCash = 50.0
	newcomers := s.World.Spawner.SpawnResidents(count, arrivalCash)
	total := 0.0
	for _, r := range newcomers {
		total += r.Cash
	}
	s.World.Residents = append(s.World.Residents, newcomers...)
	s.World.LogMoney("immigrant_cash", total, fmt.Sprintf("%d immigrants arrived on day %d", count, day))
	s.World.EmitEvent(Event{
		Tick:        s.totalTicks,
		Description: fmt.Sprintf("%d newcomers arrived seeking work", count),
		Category:    "news",
	})
	s.World.Reindex()
}

// recordTradeFlows books the tick's settled trades into company intraday
// accumulators: sales as revenue, purchases as cost. Resident trades do
// not affect any profit statement.
func (s *Simulation) recordTradeFlows(trades []market.Trade) {
	for _, tr := range trades {
		value := tr.Price * tr.Qty
		if c, ok := s.traderByKey(tr.SellerKey).(*econ.Company); ok {
			c.DayRevenue += value
		}
		if c, ok := s.traderByKey(tr.BuyerKey).(*econ.Company); ok {
			c.DayCosts += value
		}
	}
}

// settleProfits closes each company's intraday books into LastProfit.
func (s *Simulation) settleProfits() {
	for _, c := range s.World.Companies {
		c.LastProfit = c.DayRevenue - c.DayCosts
		c.DayRevenue, c.DayCosts = 0, 0
	}
}

// traderByKey resolves a market trader key ("r:N" or "c:N") back to its
// owner. Unknown keys return nil.
func (s *Simulation) traderByKey(key string) market.Trader {
	kind, numStr, ok := strings.Cut(key, ":")
	if !ok {
		return nil
	}
	n, err := strconv.ParseUint(numStr, 10, 64)
	if err != nil {
		return nil
	}
	switch kind {
	case "r":
		if r := s.World.Idx().ResidentByID[econ.ResidentID(n)]; r != nil {
			return r
		}
	case "c":
		if c := s.World.Idx().CompanyByID[econ.CompanyID(n)]; c != nil {
			return c
		}
	}
	return nil
}
