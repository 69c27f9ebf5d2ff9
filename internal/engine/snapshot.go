package engine

import "github.com/talgya/mini-economy/internal/econ"

// GoodAudit is the per-good view of the conservation ledger and market.
type GoodAudit struct {
	Good         string  `json:"good"`
	LastPrice    float64 `json:"last_price"`
	Total        float64 `json:"total"`
	HeldByPeople float64 `json:"held_by_people"`
	HeldByFirms  float64 `json:"held_by_firms"`
	RestingAsks  float64 `json:"resting_asks"`
	Produced     float64 `json:"produced"`
	Consumed     float64 `json:"consumed"`
	Spoiled      float64 `json:"spoiled"`
}

// MoneyBreakdown splits the money supply by holder class.
type MoneyBreakdown struct {
	Residents     float64 `json:"residents"`
	Companies     float64 `json:"companies"`
	Treasury      float64 `json:"treasury"`
	BankReserves  float64 `json:"bank_reserves"`
	BidEscrow     float64 `json:"bid_escrow"`
	FuturesMargin float64 `json:"futures_margin"`
	Total         float64 `json:"total"`
}

// EconomicSnapshot is the read-only aggregate exposed to dashboards and
// the narrator. Building it never mutates world state.
type EconomicSnapshot struct {
	Day           uint64         `json:"day"`
	Tick          uint64         `json:"tick"`
	Stats         Stats          `json:"stats"`
	Money         MoneyBreakdown `json:"money"`
	Goods         []GoodAudit    `json:"goods"`
	PolicyRate    float64        `json:"policy_rate"`
	FiscalStance  string         `json:"fiscal_stance"`
	HoardingRatio float64        `json:"hoarding_ratio"`
	CompanyCount  int            `json:"company_count"`
	OpenLoans     int            `json:"open_loans"`
	OpenFutures   int            `json:"open_futures"`
	RecentEvents  []Event        `json:"recent_events"`
}

// Snapshot assembles the current aggregate picture.
func (s *Simulation) Snapshot() EconomicSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w := s.World

	money := MoneyBreakdown{
		Treasury:      w.Treasury.Cash,
		BankReserves:  w.Bank.Reserves,
		BidEscrow:     w.Market.EscrowedCash(),
		FuturesMargin: w.Desk.MarginHeld(),
	}
	for _, r := range w.Residents {
		money.Residents += r.Cash
	}
	for _, c := range w.Companies {
		money.Companies += c.Cash
	}
	money.Total = money.Residents + money.Companies + money.Treasury +
		money.BankReserves + money.BidEscrow + money.FuturesMargin

	goods := make([]GoodAudit, 0, econ.NumGoods)
	for g := 0; g < econ.NumGoods; g++ {
		good := econ.GoodType(g)
		ga := GoodAudit{
			Good:        econ.GoodName(good),
			LastPrice:   w.Market.LastPrice(good),
			RestingAsks: w.Market.RestingGoods(good),
		}
		for _, r := range w.Residents {
			ga.HeldByPeople += r.Inventory.Qty(good)
		}
		for _, c := range w.Companies {
			ga.HeldByFirms += c.RawInv.Qty(good) + c.FinishedInv.Qty(good)
		}
		ga.Total = ga.HeldByPeople + ga.HeldByFirms + ga.RestingAsks
		ga.Produced, ga.Consumed, ga.Spoiled = w.GoodFlows(good)
		goods = append(goods, ga)
	}

	events := w.Events
	if len(events) > 20 {
		events = events[len(events)-20:]
	}
	recent := make([]Event, len(events))
	copy(recent, events)

	return EconomicSnapshot{
		Day:           s.Day(),
		Tick:          s.totalTicks,
		Stats:         w.Stats,
		Money:         money,
		Goods:         goods,
		PolicyRate:    w.Bank.PolicyRate,
		FiscalStance:  FiscalName(w.Treasury.Status),
		HoardingRatio: s.HoardingRatio(),
		CompanyCount:  len(w.Companies),
		OpenLoans:     len(w.Bank.Loans),
		OpenFutures:   w.Desk.OpenPositions(),
		RecentEvents:  recent,
	}
}
