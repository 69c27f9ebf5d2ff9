// Harvest cycle — smooth deterministic modulation of raw-good yields over
// the simulated year, driven by layered simplex noise so good seasons and
// lean seasons emerge without hand-authored schedules.
package econ

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// HarvestCycle modulates raw-good base yields by simulated day.
type HarvestCycle struct {
	noise opensimplex.Noise
}

// NewHarvestCycle creates a harvest cycle from a world seed.
func NewHarvestCycle(seed int64) *HarvestCycle {
	return &HarvestCycle{noise: opensimplex.NewNormalized(seed + 700)}
}

// YieldMultiplier returns the production multiplier for a raw good on a
// given day, in [0.6, 1.4]. Finished goods are unaffected — factory output
// does not depend on the season. Each good samples its own noise row so
// cycles are decorrelated across goods.
func (h *HarvestCycle) YieldMultiplier(day uint64, g GoodType) float64 {
	if !IsRaw(g) {
		return 1.0
	}
	// Low frequency: one broad cycle roughly every 90 days.
	n := h.noise.Eval2(float64(day)/90.0, float64(g)*13.7)
	return 0.6 + 0.8*n
}
