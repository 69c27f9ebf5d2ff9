package engine

import (
	"math"

	"github.com/talgya/mini-economy/internal/econ"
	"github.com/talgya/mini-economy/internal/market"
)

// consumptionPass feeds every resident and refreshes their living
// standard and wealth estimate. Food eaten leaves the economy and is
// recorded for the conservation audit.
func (s *Simulation) consumptionPass(day uint64) {
	for _, r := range s.World.Residents {
		need := econ.FoodPerResidentDay

		// Bread first, grain as the fallback staple.
		for _, g := range []econ.GoodType{econ.GoodBread, econ.GoodGrain} {
			if need <= 0 {
				break
			}
			eat := math.Min(need, r.Inventory.Qty(g))
			if eat <= 0 {
				continue
			}
			r.Inventory.Remove(g, eat)
			s.World.recordConsumed(g, eat)
			need -= eat
		}

		fed := need <= 0
		s.updateStandard(r, fed)
		s.updateWealth(r)
	}
}

// updateStandard buckets a resident's situation from cash reserves and
// whether they ate today.
func (s *Simulation) updateStandard(r *econ.Resident, fed bool) {
	switch {
	case !fed && r.Cash < 10:
		r.Standard = econ.StandardDestitute
	case r.Cash < 50:
		r.Standard = econ.StandardPoor
	case r.Cash < 250:
		r.Standard = econ.StandardModest
	case r.Cash < 1000:
		r.Standard = econ.StandardComfortable
	default:
		r.Standard = econ.StandardAffluent
	}
}

// updateWealth re-estimates non-cash net worth: inventory at book,
// shareholdings at market, futures margin at posted value.
func (s *Simulation) updateWealth(r *econ.Resident) {
	w := 0.0
	for g := 0; g < econ.NumGoods; g++ {
		w += r.Inventory[g] * econ.BasePrice(econ.GoodType(g))
	}
	for id, count := range r.Portfolio {
		if c := s.World.Idx().CompanyByID[id]; c != nil {
			w += float64(count) * c.SharePrice
		}
	}
	for _, p := range r.Futures {
		w += p.Margin
	}
	r.Wealth = w
}

// recallOrders pulls every resting order at the start of a day pass so
// escrowed goods and cash are back in their owners' hands before
// spoilage, consumption, and fresh order placement.
func (s *Simulation) recallOrders() {
	for _, c := range s.World.Companies {
		s.World.Market.CancelAllFor(c.TraderKey())
	}
	for _, r := range s.World.Residents {
		s.World.Market.CancelAllFor(r.TraderKey())
	}
}

// placeCompanyOrders states each company's daily market intent: ask out
// finished stock at a premium over last trade, bid for the raw inputs
// tomorrow's production will need.
func (s *Simulation) placeCompanyOrders(day uint64) {
	tick := s.totalTicks
	for _, c := range s.World.Companies {
		if c.IsBankrupt {
			continue
		}
		for i := range c.Lines {
			line := &c.Lines[i]
			stock := c.InventoryFor(line.Good).Qty(line.Good)
			if stock > 0 {
				price := s.World.Market.LastPrice(line.Good) * c.PricePremium
				s.World.Market.Submit(c, line.Good, market.Ask, price, stock, tick)
			}

			recipe, ok := econ.RecipeFor(line.Good)
			if !ok {
				continue
			}
			for _, in := range recipe.Inputs {
				// Keep roughly three days of inputs on hand.
				want := in.Qty * line.MaxCapacity * 3
				short := want - c.RawInv.Qty(in.Good)
				if short <= 0 {
					continue
				}
				price := s.World.Market.LastPrice(in.Good)
				affordable := math.Min(short, c.Cash/math.Max(price, 0.01))
				if affordable > 0 {
					s.World.Market.Submit(c, in.Good, market.Bid, price, affordable, tick)
				}
			}
		}
	}
}

// placeResidentOrders has hungry residents bid for food. A resident aims
// to hold two days of food, buying whichever staple is cheaper per meal.
func (s *Simulation) placeResidentOrders(day uint64) {
	tick := s.totalTicks
	for _, r := range s.World.Residents {
		held := r.Inventory.Qty(econ.GoodBread) + r.Inventory.Qty(econ.GoodGrain)
		want := econ.FoodPerResidentDay*2 - held
		if want <= 0 || r.Cash <= 0 {
			continue
		}

		good := econ.GoodGrain
		if s.World.Market.LastPrice(econ.GoodBread) < s.World.Market.LastPrice(econ.GoodGrain) {
			good = econ.GoodBread
		}
		// Bid slightly through the market so the order actually crosses.
		price := s.World.Market.LastPrice(good) * 1.05
		qty := math.Min(want, r.Cash/math.Max(price, 0.01))
		if qty > 0 {
			s.World.Market.Submit(r, good, market.Bid, price, qty, tick)
		}
	}
}
