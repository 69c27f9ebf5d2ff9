package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/mini-economy/internal/market"
	"github.com/talgya/mini-economy/internal/numutil"
)

// FiscalStatus is the treasury's current stance, derived from the
// hoarding ratio at macro cadence.
type FiscalStatus int

const (
	FiscalNeutral FiscalStatus = iota
	FiscalStimulus
	FiscalAusterity
)

var fiscalNames = [...]string{"neutral", "stimulus", "austerity"}

// FiscalName returns the lowercase stance name.
func FiscalName(s FiscalStatus) string {
	if int(s) < len(fiscalNames) {
		return fiscalNames[s]
	}
	return "unknown"
}

// Hoarding-ratio bands for fiscal stance switching.
const (
	hoardingHigh = 0.20 // above: treasury is hoarding, switch to stimulus
	hoardingLow  = 0.05 // below: treasury is strained, switch to austerity
)

// Default tax rates and daily outlays.
const (
	DefaultIncomeTax      = 0.10
	DefaultCorporateTax   = 0.15
	DefaultConsumptionTax = 0.05
	WelfareDaily          = 1.0
	PublicWagesDaily      = 20.0
)

// TaxPolicy holds the active tax rates.
type TaxPolicy struct {
	Income      float64 `json:"income" yaml:"income"`
	Corporate   float64 `json:"corporate" yaml:"corporate"`
	Consumption float64 `json:"consumption" yaml:"consumption"`
}

// Treasury is the city's fiscal agent: it collects taxes, pays welfare and
// public wages, and may be directed to print money.
type Treasury struct {
	Cash         float64      `json:"cash"`
	DailyIncome  float64      `json:"daily_income"`
	DailyExpense float64      `json:"daily_expense"`
	Status       FiscalStatus `json:"status"`
	Taxes        TaxPolicy    `json:"taxes"`
}

// NewTreasury starts neutral with default rates and no cash.
func NewTreasury() *Treasury {
	return &Treasury{
		Status: FiscalNeutral,
		Taxes: TaxPolicy{
			Income:      DefaultIncomeTax,
			Corporate:   DefaultCorporateTax,
			Consumption: DefaultConsumptionTax,
		},
	}
}

// effectiveRate applies the policy override multiplier, capped below 90%.
func (s *Simulation) effectiveRate(base float64) float64 {
	if s.World.Override != nil && s.World.Override.TaxMultiplier != nil {
		base *= *s.World.Override.TaxMultiplier
	}
	return numutil.Clamp(base, 0, 0.9)
}

// collectConsumptionTax levies the consumption tax on sellers for the
// tick's trades. Levied post-settlement so escrow accounting stays exact.
func (s *Simulation) collectConsumptionTax(trades []market.Trade) {
	rate := s.effectiveRate(s.World.Treasury.Taxes.Consumption)
	if rate <= 0 {
		return
	}
	for _, tr := range trades {
		seller := s.traderByKey(tr.SellerKey)
		if seller == nil {
			continue
		}
		tax := tr.Price * tr.Qty * rate
		if tax > seller.CashBalance() {
			tax = seller.CashBalance()
		}
		if tax <= 0 {
			continue
		}
		seller.DebitCash(tax)
		s.World.Treasury.Cash += tax
		s.World.Treasury.DailyIncome += tax
	}
}

// collectCorporateTax taxes each company's positive daily profit.
func (s *Simulation) collectCorporateTax() {
	rate := s.effectiveRate(s.World.Treasury.Taxes.Corporate)
	if rate <= 0 {
		return
	}
	for _, c := range s.World.Companies {
		if c.IsBankrupt || c.LastProfit <= 0 {
			continue
		}
		tax := c.LastProfit * rate
		if tax > c.Cash {
			tax = c.Cash
		}
		if tax <= 0 {
			continue
		}
		c.Cash -= tax
		s.World.Treasury.Cash += tax
		s.World.Treasury.DailyIncome += tax
	}
}

// disburseExpenses pays welfare to the unemployed and spreads public
// wages across all residents. Spending is clamped at treasury cash:
// the treasury never goes negative and never creates money.
func (s *Simulation) disburseExpenses() {
	t := s.World.Treasury

	welfare := WelfareDaily
	if t.Status == FiscalStimulus {
		welfare *= 2
	} else if t.Status == FiscalAusterity {
		welfare *= 0.5
	}
	for _, r := range s.World.Idx().Unemployed() {
		pay := welfare
		if pay > t.Cash {
			pay = t.Cash
		}
		if pay <= 0 {
			break
		}
		t.Cash -= pay
		t.DailyExpense += pay
		r.Cash += pay
	}

	if len(s.World.Residents) == 0 {
		return
	}
	perHead := PublicWagesDaily / float64(len(s.World.Residents))
	for _, r := range s.World.Residents {
		pay := perHead
		if pay > t.Cash {
			pay = t.Cash
		}
		if pay <= 0 {
			break
		}
		t.Cash -= pay
		t.DailyExpense += pay
		r.Cash += pay
	}
}

// runMoneyPrinter mints new gold into the treasury when a policy override
// sets a printer rate. This is the only fiscal path that creates money,
// and it is always logged.
func (s *Simulation) runMoneyPrinter(day uint64) {
	ov := s.World.Override
	if ov == nil || ov.MoneyPrinterRate == nil || *ov.MoneyPrinterRate <= 0 {
		return
	}
	amount := *ov.MoneyPrinterRate
	s.World.Treasury.Cash += amount
	s.World.LogMoney("money_printer", amount, fmt.Sprintf("printed %.2f on day %d", amount, day))
}

// recomputeFiscalStance updates the treasury status from the hoarding ratio.
func (s *Simulation) recomputeFiscalStance(day uint64) {
	t := s.World.Treasury
	ratio := s.HoardingRatio()
	prev := t.Status
	switch {
	case ratio > hoardingHigh:
		t.Status = FiscalStimulus
	case ratio < hoardingLow:
		t.Status = FiscalAusterity
	default:
		t.Status = FiscalNeutral
	}
	if t.Status != prev {
		slog.Info("fiscal stance changed", "day", day, "from", FiscalName(prev), "to", FiscalName(t.Status), "hoarding", ratio)
		s.World.EmitEvent(Event{
			Tick:        s.totalTicks,
			Description: fmt.Sprintf("treasury moved from %s to %s (hoarding %.1f%%)", FiscalName(prev), FiscalName(t.Status), ratio*100),
			Category:    "fiscal",
		})
	}
	t.DailyIncome, t.DailyExpense = 0, 0
}

// HoardingRatio is treasury cash over total money supply.
func (s *Simulation) HoardingRatio() float64 {
	return numutil.SafeDiv(s.World.Treasury.Cash, s.World.TotalMoney(), 0)
}
