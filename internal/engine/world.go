// Package engine provides the closed city economy: world state, the tick
// scheduler, and the labor, production, fiscal, and audit passes that keep
// it internally consistent.
package engine

import (
	"fmt"
	"math/rand"

	"github.com/talgya/mini-economy/internal/bank"
	"github.com/talgya/mini-economy/internal/econ"
	"github.com/talgya/mini-economy/internal/futures"
	"github.com/talgya/mini-economy/internal/market"
)

// Event is a notable occurrence in the economy.
type Event struct {
	Tick        uint64 `json:"tick" db:"tick"`
	Description string `json:"description" db:"description"`
	Category    string `json:"category" db:"category"` // "market", "labor", "credit", "fiscal", "news"
}

// MoneyEvent is one explicit money creation or destruction. Every change
// to the total money stock flows through one of these — the conservation
// audit reconciles against them.
type MoneyEvent struct {
	Day    uint64  `json:"day"`
	Kind   string  `json:"kind"`   // "loan_issued", "loan_repaid", "loan_default", "futures_win", "futures_loss", "money_printer", "immigrant_cash"
	Amount float64 `json:"amount"` // positive = created, negative = destroyed
	Detail string  `json:"detail"`
}

// Stats is the per-day aggregate picture.
type Stats struct {
	Day          uint64  `json:"day"`
	Population   int     `json:"population"`
	Employed     int     `json:"employed"`
	Unemployment float64 `json:"unemployment"`
	CPI          float64 `json:"cpi"`
	Inflation    float64 `json:"inflation"` // per macro period, EMA-smoothed
	MoneySupply  float64 `json:"money_supply"`
	AvgWage      float64 `json:"avg_wage"`
	Bankruptcies int     `json:"bankruptcies"`
}

// World is the explicit, single-writer state of the whole economy. It is
// owned by the scheduler and passed to each pass; there is no ambient
// global state.
type World struct {
	Residents []*econ.Resident
	Companies []*econ.Company

	Market   *market.Engine
	Bank     *bank.Bank
	Treasury *Treasury
	Desk     *futures.Desk
	Harvest  *econ.HarvestCycle
	Spawner  *econ.Spawner

	// Seeded noise for share-price drift and event rolls. All world
	// randomness flows through this so runs are reproducible.
	Rng *rand.Rand

	Events      []Event
	MoneyEvents []MoneyEvent
	Shocks      []Shock
	Override    *PolicyOverride

	Stats        Stats
	StatsHistory []Stats

	// Conservation baselines and flow counters, reconciled at macro cadence.
	goodBaseline  [econ.NumGoods]float64
	moneyBaseline float64
	produced      [econ.NumGoods]float64
	consumed      [econ.NumGoods]float64
	spoiled       [econ.NumGoods]float64

	// Lifetime flow totals, never reset: the audit re-anchors its
	// per-period counters, but observers still see the cumulative deltas.
	producedLife [econ.NumGoods]float64
	consumedLife [econ.NumGoods]float64
	spoiledLife  [econ.NumGoods]float64

	idx     *Index
	lastDay uint64 // for money-event day stamps before the scheduler runs
}

// NewWorld assembles a world from generated components and snapshots the
// conservation baselines.
func NewWorld(seed int64, residents []*econ.Resident, companies []*econ.Company, bankReserves float64) *World {
	w := &World{
		Residents: residents,
		Companies: companies,
		Market:    market.NewEngine(),
		Treasury:  NewTreasury(),
		Harvest:   econ.NewHarvestCycle(seed),
		Spawner:   econ.NewSpawner(seed),
		Rng:       rand.New(rand.NewSource(seed + 500)),
	}
	w.Bank = bank.New(bankReserves, w.LogMoney)
	w.Desk = futures.NewDesk(w.LogMoney)
	w.ResetBaselines()
	w.Reindex()
	return w
}

// EmitEvent appends to the event log, trimming unbounded growth.
func (w *World) EmitEvent(e Event) {
	w.Events = append(w.Events, e)
	if len(w.Events) > 1000 {
		w.Events = w.Events[len(w.Events)-1000:]
	}
}

// LogMoney records an explicit money creation/destruction event. Kinds
// ending in "_repaid", "_default", or "_loss" are destructions.
func (w *World) LogMoney(kind string, amount float64, detail string) {
	signed := amount
	switch kind {
	case "loan_repaid", "loan_default", "futures_loss":
		signed = -amount
	}
	w.MoneyEvents = append(w.MoneyEvents, MoneyEvent{Day: w.lastDay, Kind: kind, Amount: signed, Detail: detail})
}

// Reindex rebuilds the O(1) lookup maps. Run once per tick so every pass
// reads consistent indexes without O(N²) scans.
func (w *World) Reindex() {
	w.idx = BuildIndex(w)
}

// Idx returns the current tick's lookup index.
func (w *World) Idx() *Index { return w.idx }

// ResidentByID resolves a resident, nil if unknown.
func (w *World) ResidentByID(id econ.ResidentID) *econ.Resident { return w.idx.ResidentByID[id] }

// CompanyByID resolves a company, nil if unknown.
func (w *World) CompanyByID(id econ.CompanyID) *econ.Company { return w.idx.CompanyByID[id] }

// TotalGood sums one good across residents, company pools, and resting
// ask orders — the quantity the conservation invariant tracks.
func (w *World) TotalGood(g econ.GoodType) float64 {
	sum := w.Market.RestingGoods(g)
	for _, r := range w.Residents {
		sum += r.Inventory.Qty(g)
	}
	for _, c := range w.Companies {
		sum += c.RawInv.Qty(g) + c.FinishedInv.Qty(g)
	}
	return sum
}

// TotalMoney sums every gold holding class: resident cash, company cash,
// treasury, bank reserves, bid escrow resting in books, and futures margin.
func (w *World) TotalMoney() float64 {
	sum := w.Treasury.Cash + w.Bank.Reserves + w.Market.EscrowedCash() + w.Desk.MarginHeld()
	for _, r := range w.Residents {
		sum += r.Cash
	}
	for _, c := range w.Companies {
		sum += c.Cash
	}
	// Deposit balances live inside bank reserves and are not double counted.
	return sum
}

// ResetBaselines re-anchors the conservation audit to current state.
func (w *World) ResetBaselines() {
	for g := 0; g < econ.NumGoods; g++ {
		w.goodBaseline[g] = w.TotalGood(econ.GoodType(g))
		w.produced[g], w.consumed[g], w.spoiled[g] = 0, 0, 0
	}
	w.moneyBaseline = w.TotalMoney()
	w.MoneyEvents = w.MoneyEvents[:0]
}

// Flow counters, fed by the production and consumption passes.

func (w *World) recordProduced(g econ.GoodType, qty float64) {
	w.produced[g] += qty
	w.producedLife[g] += qty
}

func (w *World) recordConsumed(g econ.GoodType, qty float64) {
	w.consumed[g] += qty
	w.consumedLife[g] += qty
}

func (w *World) recordSpoiled(g econ.GoodType, qty float64) {
	w.spoiled[g] += qty
	w.spoiledLife[g] += qty
}

// GoodFlows reports lifetime produced/consumed/spoiled totals. These
// survive audit re-anchoring; the audit itself uses the per-period
// counters directly.
func (w *World) GoodFlows(g econ.GoodType) (produced, consumed, spoiled float64) {
	return w.producedLife[g], w.consumedLife[g], w.spoiledLife[g]
}

// String summarizes the world for logs.
func (w *World) String() string {
	return fmt.Sprintf("world{residents: %d, companies: %d, treasury: %.0f, reserves: %.0f}",
		len(w.Residents), len(w.Companies), w.Treasury.Cash, w.Bank.Reserves)
}
