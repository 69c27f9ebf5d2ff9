// Package numutil provides the numeric guards every simulation pass relies on.
// Feedback loops (wages, prices, rates) run for thousands of ticks; any NaN or
// Inf that leaks into the world state compounds, so all derived quantities pass
// through these helpers.
package numutil

import "math"

// Price and quantity domain for anything traded on a market.
const (
	MinPrice = 0.01
	MaxPrice = 1_000_000.0
	MaxQty   = 1_000_000.0
)

// SafeDiv divides a by b, returning fallback when b is zero or the result is
// not finite.
func SafeDiv(a, b, fallback float64) float64 {
	if b == 0 {
		return fallback
	}
	v := a / b
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// Finite returns v unless it is NaN or infinite, in which case fallback.
func Finite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampPrice bounds a price to the tradable domain. Clamp absorbs ±Inf
// into the domain edges; only NaN needs the floor fallback.
func ClampPrice(p float64) float64 {
	if math.IsNaN(p) {
		return MinPrice
	}
	return Clamp(p, MinPrice, MaxPrice)
}

// ClampQty bounds a quantity to [0, MaxQty], mapping NaN to 0.
func ClampQty(q float64) float64 {
	if math.IsNaN(q) {
		return 0
	}
	return Clamp(q, 0, MaxQty)
}

// EMA returns the exponential moving average of prev and sample with
// smoothing factor alpha in [0, 1]. alpha = 1 tracks the sample exactly.
func EMA(prev, sample, alpha float64) float64 {
	a := Clamp(alpha, 0, 1)
	return Finite(prev+a*(sample-prev), prev)
}

// Sigmoid maps x to (0, 1). Used to squash unbounded gaps (inflation,
// unemployment) into stable policy responses.
func Sigmoid(x float64) float64 {
	if x > 40 {
		return 1
	}
	if x < -40 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}
