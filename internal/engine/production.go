package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/mini-economy/internal/econ"
	"github.com/talgya/mini-economy/internal/numutil"
)

// productionPass runs each company's daily production: output, input
// consumption, spoilage, maintenance, depreciation, share pricing, and
// the bankruptcy check.
func (s *Simulation) productionPass(day uint64) {
	for _, c := range s.World.Companies {
		if c.IsBankrupt {
			continue
		}
		c.AgeDays++

		labor := s.effectiveLabor(c)
		s.runLines(day, c, labor)
		s.applySpoilage(c)
		s.applyMaintenance(c)
		s.depreciateLines(c)
		s.repriceShares(day, c)
		s.checkBankruptcy(c)
	}
}

// effectiveLabor sums the staff's skill-scaled headcount. An expert
// counts half again as much as a novice.
func (s *Simulation) effectiveLabor(c *econ.Company) float64 {
	labor := 0.0
	for _, r := range s.World.Idx().EmployeesByCompany[c.ID] {
		labor += econ.ProductivityMultiplier(r.Tier())
	}
	return labor
}

// runLines produces on every line, splitting labor evenly between lines.
// Finished goods consume recipe inputs; if raw stock only covers part of
// the planned run, the run scales down rather than failing.
func (s *Simulation) runLines(day uint64, c *econ.Company, labor float64) {
	if len(c.Lines) == 0 || labor <= 0 {
		return
	}
	perLine := labor / float64(len(c.Lines))

	for i := range c.Lines {
		line := &c.Lines[i]
		output := econ.BaseRatePerWorker * line.Efficiency * perLine
		output *= s.productionShock(day, line.Good)
		output = math.Min(output, line.MaxCapacity)
		if output <= 0 {
			continue
		}

		if recipe, ok := econ.RecipeFor(line.Good); ok {
			// Scale to the scarcest input.
			scale := 1.0
			for _, in := range recipe.Inputs {
				need := in.Qty * output
				if need > 0 {
					scale = math.Min(scale, c.RawInv.Qty(in.Good)/need)
				}
			}
			scale = numutil.Clamp(scale, 0, 1)
			output *= scale
			if output <= 0 {
				continue
			}
			for _, in := range recipe.Inputs {
				used := in.Qty * output
				c.RawInv.Remove(in.Good, used)
				s.World.recordConsumed(in.Good, used)
			}
		}

		c.InventoryFor(line.Good).Add(line.Good, output)
		s.World.recordProduced(line.Good, output)
	}
}

// applySpoilage decays perishable stock in both inventory pools.
func (s *Simulation) applySpoilage(c *econ.Company) {
	for g := 0; g < econ.NumGoods; g++ {
		good := econ.GoodType(g)
		rate := econ.SpoilRate(good)
		if rate == 0 {
			continue
		}
		for _, inv := range []*econ.Inventory{&c.RawInv, &c.FinishedInv} {
			lost := inv.Qty(good) * rate
			if lost <= 0 {
				continue
			}
			inv.Remove(good, lost)
			s.World.recordSpoiled(good, lost)
		}
	}
}

// applyMaintenance charges the fixed daily upkeep per line and land
// token, paid to the city. An unpayable bill still accrues, pushing cash
// negative — that is what the bankruptcy check is for.
func (s *Simulation) applyMaintenance(c *econ.Company) {
	bill := econ.MaintenancePerLine*float64(len(c.Lines)) + econ.MaintenancePerLand*float64(c.LandTokens)
	if bill <= 0 {
		return
	}
	c.Cash -= bill
	c.DayCosts += bill
	s.World.Treasury.Cash += bill
	s.World.Treasury.DailyIncome += bill
}

// depreciateLines wears efficiency down linearly and retires lines that
// fall below the scrap threshold.
func (s *Simulation) depreciateLines(c *econ.Company) {
	kept := c.Lines[:0]
	for _, line := range c.Lines {
		line.Efficiency -= econ.DepreciationRate
		if line.Efficiency < econ.ScrapEfficiencyThreshold {
			s.World.EmitEvent(Event{
				Tick:        s.totalTicks,
				Description: fmt.Sprintf("%s scrapped a worn-out %s line", c.Name, econ.GoodName(line.Good)),
				Category:    "market",
			})
			continue
		}
		kept = append(kept, line)
	}
	c.Lines = kept
}

// repriceShares moves the share price toward a fundamentals anchor —
// book value per share scaled by a Tobin's-Q profit signal — with seeded
// noise, then appends the day's candle.
func (s *Simulation) repriceShares(day uint64, c *econ.Company) {
	if c.TotalShares <= 0 {
		return
	}
	bookPerShare := c.BookValue() / float64(c.TotalShares)
	q := 1 + numutil.Clamp(c.LastProfit/(c.BookValue()+1)*10, -0.5, 0.5)
	anchor := math.Max(bookPerShare*q, 0.01)

	open := c.SharePrice
	if open <= 0 {
		open = anchor
	}
	drift := numutil.EMA(open, anchor, 0.1)
	noise := 1 + (s.World.Rng.Float64()-0.5)*0.04
	price := math.Max(drift*noise, 0.01)
	c.SharePrice = price

	high, low := math.Max(open, price), math.Min(open, price)
	c.History = append(c.History, econ.Candle{Day: day, Open: open, High: high, Low: low, Close: price})
	if len(c.History) > 365 {
		c.History = c.History[len(c.History)-365:]
	}
}

// checkBankruptcy marks a company bankrupt when it is out of cash and
// out of credit. Its workers are released and its resting orders pulled.
func (s *Simulation) checkBankruptcy(c *econ.Company) {
	if c.Cash >= 0 {
		return
	}
	shortfall := -c.Cash
	if _, err := s.World.Bank.RequestLoan(c, shortfall*1.5, s.World.lastDay); err == nil {
		return // emergency credit carried it through
	}
	c.IsBankrupt = true
	s.World.Market.CancelAllFor(c.TraderKey())
	s.releaseEmployees(c, "bankruptcy")
	slog.Warn("company bankrupt", "company", c.Name, "shortfall", shortfall)
	s.World.EmitEvent(Event{
		Tick:        s.totalTicks,
		Description: fmt.Sprintf("%s declared bankruptcy", c.Name),
		Category:    "market",
	})
}
