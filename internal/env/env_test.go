package env

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox_SampleWithinBounds(t *testing.T) {
	box, err := NewBox([]float64{-1, -2, 0}, []float64{1, 2, 0}, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, 3, box.Dim())

	for i := 0; i < 200; i++ {
		action := box.Sample()
		require.Len(t, action, 3)
		assert.GreaterOrEqual(t, action[0], -1.0)
		assert.LessOrEqual(t, action[0], 1.0)
		assert.GreaterOrEqual(t, action[1], -2.0)
		assert.LessOrEqual(t, action[1], 2.0)
		assert.Equal(t, 0.0, action[2])
	}
}

func TestBox_MultipleSamplesDiffer(t *testing.T) {
	box, err := NewBox([]float64{-1}, []float64{1}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	seen := make(map[float64]bool)
	for i := 0; i < 50; i++ {
		seen[box.Sample()[0]] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestNewBox_Invalid(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := NewBox([]float64{0, 0}, []float64{1}, rng)
	assert.Error(t, err)

	_, err = NewBox(nil, nil, rng)
	assert.Error(t, err)

	_, err = NewBox([]float64{1}, []float64{0}, rng)
	assert.Error(t, err)

	_, err = NewBox([]float64{0}, []float64{1}, nil)
	assert.Error(t, err)
}

func TestInfo_Distance(t *testing.T) {
	d, err := Info{"distance": 0.25}.Distance()
	require.NoError(t, err)
	assert.Equal(t, 0.25, d)

	d, err = Info{"distance": float32(0.5)}.Distance()
	require.NoError(t, err)
	assert.Equal(t, 0.5, d)

	_, err = Info{}.Distance()
	assert.ErrorIs(t, err, ErrNoDistance)

	_, err = Info{"distance": "far"}.Distance()
	assert.ErrorIs(t, err, ErrNoDistance)
}

type countingEnv struct {
	steps int
}

func (c *countingEnv) Reset(context.Context) (State, error) { return State{}, nil }

func (c *countingEnv) Step(context.Context, Action) (StepResult, error) {
	c.steps++
	return StepResult{}, nil
}

func (c *countingEnv) ActionSpace() Space { return nil }

func TestPaced_WaitsBetweenSteps(t *testing.T) {
	inner := &countingEnv{}
	paced := NewPaced(inner, 20)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := paced.Step(ctx, Action{0})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.steps)
	// burst of one: the second and third steps each wait ~50ms
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.NoError(t, paced.Close())
}

func TestPaced_CancelledContext(t *testing.T) {
	inner := &countingEnv{}
	paced := NewPaced(inner, 0.001)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := paced.Step(ctx, Action{0})
	require.NoError(t, err)

	cancel()
	_, err = paced.Step(ctx, Action{0})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.steps)
}
