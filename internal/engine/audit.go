package engine

import (
	"fmt"
	"math"

	"github.com/talgya/mini-economy/internal/econ"
)

// InvariantViolation reports a conservation failure: a good or the money
// stock changed by more than its logged flows explain.
type InvariantViolation struct {
	Day      uint64
	Subject  string // good name or "money"
	Expected float64
	Actual   float64
}

func (v *InvariantViolation) Error() string {
	return fmt.Sprintf("conservation violated on day %d: %s expected %.6f, found %.6f (drift %.6g)",
		v.Day, v.Subject, v.Expected, v.Actual, v.Actual-v.Expected)
}

// auditTolerance scales with the audited magnitude so float accumulation
// over a macro period does not raise false alarms.
func auditTolerance(magnitude float64) float64 {
	return 1e-6 * math.Max(1, math.Abs(magnitude))
}

// auditConservation checks every good and the money stock against the
// baselines plus logged flows since the last macro pass. The first
// violation found is returned; callers decide whether it halts the run.
func (s *Simulation) auditConservation(day uint64) error {
	for g := 0; g < econ.NumGoods; g++ {
		good := econ.GoodType(g)
		w := s.World
		expected := w.goodBaseline[g] + w.produced[g] - w.consumed[g] - w.spoiled[g]
		actual := s.World.TotalGood(good)
		if math.Abs(actual-expected) > auditTolerance(expected) {
			return &InvariantViolation{Day: day, Subject: econ.GoodName(good), Expected: expected, Actual: actual}
		}
	}

	logged := 0.0
	for _, ev := range s.World.MoneyEvents {
		logged += ev.Amount
	}
	expected := s.World.moneyBaseline + logged
	actual := s.World.TotalMoney()
	if math.Abs(actual-expected) > auditTolerance(expected) {
		return &InvariantViolation{Day: day, Subject: "money", Expected: expected, Actual: actual}
	}
	return nil
}
