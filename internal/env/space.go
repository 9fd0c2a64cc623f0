package env

import (
	"fmt"
	"math/rand"
)

// Box is a continuous action space bounded per dimension.
type Box struct {
	rng  *rand.Rand
	low  []float64
	high []float64
}

// NewBox creates a continuous space sampling uniformly in [low, high].
func NewBox(low, high []float64, rng *rand.Rand) (*Box, error) {
	if len(low) != len(high) {
		return nil, fmt.Errorf("continuous action space bounds mismatch: %d low vs %d high", len(low), len(high))
	}
	if len(low) == 0 {
		return nil, fmt.Errorf("continuous action space has no dimensions")
	}
	for i := range low {
		if low[i] > high[i] {
			return nil, fmt.Errorf("dimension %d: low %v above high %v", i, low[i], high[i])
		}
	}
	if rng == nil {
		return nil, fmt.Errorf("nil random source")
	}
	return &Box{
		rng:  rng,
		low:  append([]float64(nil), low...),
		high: append([]float64(nil), high...),
	}, nil
}

// Sample implements Space.
func (b *Box) Sample() Action {
	action := make(Action, len(b.low))
	for i := range b.low {
		action[i] = b.low[i] + b.rng.Float64()*(b.high[i]-b.low[i])
	}
	return action
}

// Dim implements Space.
func (b *Box) Dim() int {
	return len(b.low)
}

// Bounds returns copies of the per-dimension bounds.
func (b *Box) Bounds() (low, high []float64) {
	return append([]float64(nil), b.low...), append([]float64(nil), b.high...)
}
