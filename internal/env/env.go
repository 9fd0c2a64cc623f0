// Package env defines the simulator contract the agents drive.
package env

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// NumCameras is the number of camera views in a State.
const NumCameras = 2

// ErrNoDistance is returned when step info carries no usable distance.
var ErrNoDistance = errors.New("info has no numeric distance")

// Action is a vector of joint commands.
type Action []float64

// State holds one RGB image per camera.
type State [NumCameras]image.Image

// Info carries auxiliary per-step scalars reported by the simulator.
type Info map[string]any

// Distance returns the goal distance reported in the info.
func (i Info) Distance() (float64, error) {
	v, ok := i["distance"]
	if !ok {
		return 0, ErrNoDistance
	}
	switch d := v.(type) {
	case float64:
		return d, nil
	case float32:
		return float64(d), nil
	case int:
		return float64(d), nil
	case int64:
		return float64(d), nil
	default:
		return 0, fmt.Errorf("%w: got %T", ErrNoDistance, v)
	}
}

// StepResult is the outcome of a single environment step.
type StepResult struct {
	State  State
	Reward float64
	Done   bool
	Info   Info
}

// Environment is a resettable episodic simulator.
type Environment interface {
	// Reset starts a new episode and returns the initial state
	Reset(ctx context.Context) (State, error)
	// Step applies an action and advances the simulation by one step
	Step(ctx context.Context, action Action) (StepResult, error)
	// ActionSpace describes the actions Step accepts
	ActionSpace() Space
}

// Space samples actions.
type Space interface {
	Sample() Action
	Dim() int
}

// Closer is implemented by environments holding external resources.
type Closer interface {
	Close() error
}
