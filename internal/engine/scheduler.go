package engine

import (
	"fmt"
	"log/slog"
	"time"
)

// Cadence controls how many ticks make up each simulation period.
// Market matching runs every MarketEveryTicks, daily passes every
// DayEveryTicks, and macro policy every MacroEveryTicks.
type Cadence struct {
	MarketEveryTicks uint64 `json:"market_every_ticks" yaml:"market_every_ticks"`
	DayEveryTicks    uint64 `json:"day_every_ticks" yaml:"day_every_ticks"`
	MacroEveryTicks  uint64 `json:"macro_every_ticks" yaml:"macro_every_ticks"`
}

// DefaultCadence matches market every tick, rolls a day every 60 ticks,
// and runs macro policy every 30 days.
func DefaultCadence() Cadence {
	return Cadence{MarketEveryTicks: 1, DayEveryTicks: 60, MacroEveryTicks: 1800}
}

// Valid checks the cadences nest: days must contain whole market periods
// and macro periods whole days.
func (c Cadence) Valid() error {
	if c.MarketEveryTicks == 0 || c.DayEveryTicks == 0 || c.MacroEveryTicks == 0 {
		return fmt.Errorf("cadence: zero period")
	}
	if c.DayEveryTicks%c.MarketEveryTicks != 0 {
		return fmt.Errorf("cadence: day period %d not divisible by market period %d", c.DayEveryTicks, c.MarketEveryTicks)
	}
	if c.MacroEveryTicks%c.DayEveryTicks != 0 {
		return fmt.Errorf("cadence: macro period %d not divisible by day period %d", c.MacroEveryTicks, c.DayEveryTicks)
	}
	return nil
}

// Engine drives a simulation in real time. Speed scales the drive rate
// only — it never changes per-tick semantics, so a run at 10x lands on
// the same state as a run at 1x.
type Engine struct {
	Sim      *Simulation
	Speed    float64
	Interval time.Duration
	Running  bool

	// OnDay, when set, fires after each completed simulation day.
	// Used for autosave; runs on the tick goroutine.
	OnDay func(day uint64)

	stop chan struct{}
}

// NewEngine wraps a simulation with a real-time driver.
func NewEngine(sim *Simulation, interval time.Duration) *Engine {
	return &Engine{Sim: sim, Speed: 1.0, Interval: interval, stop: make(chan struct{})}
}

// Run drives ticks until Stop is called or the simulation halts. While
// paused it sleeps; missed wall-clock time is never backfilled.
func (e *Engine) Run() {
	slog.Info("engine started", "interval", e.Interval, "speed", e.Speed)
	lastDay := e.Sim.Day()
	for {
		select {
		case <-e.stop:
			slog.Info("engine stopped", "ticks", e.Sim.TotalTicks())
			return
		default:
		}
		if !e.Running {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		e.Sim.Advance(1)
		if e.Sim.Halted() {
			slog.Error("simulation halted", "reason", e.Sim.HaltReason())
			return
		}
		if day := e.Sim.Day(); day != lastDay {
			lastDay = day
			if e.OnDay != nil {
				e.OnDay(day)
			}
		}
		speed := e.Speed
		if speed <= 0 {
			speed = 1.0
		}
		time.Sleep(time.Duration(float64(e.Interval) / speed))
	}
}

// Stop terminates the run loop.
func (e *Engine) Stop() {
	close(e.stop)
}

// SimTime renders a tick count as day/hour for display.
func SimTime(tick uint64, cad Cadence) string {
	day := tick / cad.DayEveryTicks
	frac := float64(tick%cad.DayEveryTicks) / float64(cad.DayEveryTicks)
	return fmt.Sprintf("day %d, %02d:00", day, int(frac*24))
}
