package numutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeDiv(t *testing.T) {
	tests := []struct {
		name     string
		a, b     float64
		fallback float64
		want     float64
	}{
		{"normal", 10, 4, -1, 2.5},
		{"zero denominator", 10, 0, -1, -1},
		{"inf result", math.MaxFloat64, 1e-310, -1, -1},
		{"zero over zero", 0, 0, 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeDiv(tt.a, tt.b, tt.fallback))
		})
	}
}

func TestClampPrice(t *testing.T) {
	assert.Equal(t, MinPrice, ClampPrice(0))
	assert.Equal(t, MinPrice, ClampPrice(math.NaN()))
	assert.Equal(t, MaxPrice, ClampPrice(math.Inf(1)))
	assert.Equal(t, MinPrice, ClampPrice(math.Inf(-1)))
	assert.Equal(t, 42.5, ClampPrice(42.5))
}

func TestClampQty(t *testing.T) {
	assert.Equal(t, 0.0, ClampQty(math.NaN()))
	assert.Equal(t, 0.0, ClampQty(-5))
	assert.Equal(t, MaxQty, ClampQty(math.Inf(1)))
	assert.Equal(t, 7.5, ClampQty(7.5))
}

func TestEMA(t *testing.T) {
	assert.Equal(t, 10.0, EMA(10, 20, 0))
	assert.Equal(t, 20.0, EMA(10, 20, 1))
	assert.InDelta(t, 12.5, EMA(10, 20, 0.25), 1e-12)
	// Non-finite samples never propagate.
	assert.Equal(t, 10.0, EMA(10, math.NaN(), 0.5))
}

func TestSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, Sigmoid(0), 1e-12)
	assert.Equal(t, 1.0, Sigmoid(100))
	assert.Equal(t, 0.0, Sigmoid(-100))
	assert.Greater(t, Sigmoid(2.0), Sigmoid(1.0))
}
