package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/mini-economy/internal/econ"
	"github.com/talgya/mini-economy/internal/numutil"
)

// ImpactType says which lever an external event pulls.
type ImpactType int

const (
	ImpactProduction ImpactType = iota
	ImpactWage
)

// ShockDurationDays is how long an applied shock stays in effect.
const ShockDurationDays = 7

// ExternalEvent is a world event delivered from outside the simulation —
// from the narrator, an operator, or a test.
type ExternalEvent struct {
	TargetGood      string     `json:"target_good"`
	ModifierPercent float64    `json:"modifier_percent"` // e.g. -30 = 30% reduction
	Impact          ImpactType `json:"impact"`
	Description     string     `json:"description"`
}

// Shock is an active modifier on one good's production or wages.
type Shock struct {
	Good        econ.GoodType `json:"good"`
	Impact      ImpactType    `json:"impact"`
	Multiplier  float64       `json:"multiplier"`
	ExpiresDay  uint64        `json:"expires_day"`
	Description string        `json:"description"`
}

// EventSource produces at most one external event per day. A nil return
// means nothing happened; errors are the source's own problem.
type EventSource interface {
	Poll(day uint64) *ExternalEvent
}

// PolicyOverride lets an operator pin policy levers. Nil fields mean
// "let the simulation decide".
type PolicyOverride struct {
	InterestRate        *float64 `json:"interest_rate,omitempty"`
	MoneyPrinterRate    *float64 `json:"money_printer_rate,omitempty"`
	MigrationMultiplier *float64 `json:"migration_multiplier,omitempty"`
	TaxMultiplier       *float64 `json:"tax_multiplier,omitempty"`
	MinWage             *float64 `json:"min_wage,omitempty"`
}

// ApplyExternalEvent validates and converts an event into an active shock.
// Unknown goods are rejected rather than guessed at.
func (s *Simulation) ApplyExternalEvent(ev *ExternalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyExternalEvent(s.Day(), ev)
}

// applyExternalEvent is the lock-free form for callers already inside
// the tick.
func (s *Simulation) applyExternalEvent(day uint64, ev *ExternalEvent) error {
	g, ok := econ.GoodFromName(ev.TargetGood)
	if !ok {
		return fmt.Errorf("apply event: unknown good %q", ev.TargetGood)
	}
	mult := numutil.Clamp(1+ev.ModifierPercent/100, 0.1, 3.0)
	s.World.Shocks = append(s.World.Shocks, Shock{
		Good:        g,
		Impact:      ev.Impact,
		Multiplier:  mult,
		ExpiresDay:  day + ShockDurationDays,
		Description: ev.Description,
	})
	s.World.EmitEvent(Event{Tick: s.totalTicks, Description: ev.Description, Category: "news"})
	slog.Info("external event applied", "day", day, "good", econ.GoodName(g), "multiplier", mult, "description", ev.Description)
	return nil
}

// expireShocks drops shocks past their expiry day.
func (s *Simulation) expireShocks(day uint64) {
	kept := s.World.Shocks[:0]
	for _, sh := range s.World.Shocks {
		if day < sh.ExpiresDay {
			kept = append(kept, sh)
		}
	}
	s.World.Shocks = kept
}

// pollEvents asks the event source for today's event, if any.
func (s *Simulation) pollEvents(day uint64) {
	if s.EventSource == nil {
		return
	}
	ev := s.EventSource.Poll(day)
	if ev == nil {
		return
	}
	if err := s.applyExternalEvent(day, ev); err != nil {
		slog.Warn("external event rejected", "day", day, "error", err)
	}
}

// productionShock is the combined yield multiplier for a good today:
// the harvest cycle times any active production shocks.
func (s *Simulation) productionShock(day uint64, g econ.GoodType) float64 {
	mult := s.World.Harvest.YieldMultiplier(day, g)
	for _, sh := range s.World.Shocks {
		if sh.Good == g && sh.Impact == ImpactProduction {
			mult *= sh.Multiplier
		}
	}
	return mult
}

// wageShock is the active wage multiplier for a good's industry.
func (s *Simulation) wageShock(g econ.GoodType) float64 {
	mult := 1.0
	for _, sh := range s.World.Shocks {
		if sh.Good == g && sh.Impact == ImpactWage {
			mult *= sh.Multiplier
		}
	}
	return mult
}
