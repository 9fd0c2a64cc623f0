// Package kinematic is a lightweight stand-in for the grasping simulator: a
// 7-joint arm, an object on a table and two rendered camera views.
package kinematic

import (
	"context"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cartridge/gather/internal/env"
)

// GraspDistance is the end effector to object distance counted as a grasp.
const GraspDistance = 0.05

// Options configures a Sim.
type Options struct {
	MaxSteps int
	Width    int
	Height   int
	Seed     int64
}

// Sim implements env.Environment.
type Sim struct {
	opts    Options
	rng     *rand.Rand
	space   *env.Box
	cameras [env.NumCameras]camera

	arm     Arm
	object  r3.Vec
	steps   int
	grasped bool
}

// New creates a simulator. Reset must be called before Step.
func New(opts Options) (*Sim, error) {
	if opts.MaxSteps <= 0 {
		return nil, fmt.Errorf("max steps must be positive")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("image size %dx%d is invalid", opts.Width, opts.Height)
	}

	low := make([]float64, NumJoints)
	high := make([]float64, NumJoints)
	for i := range low {
		low[i], high[i] = -1, 1
	}
	space, err := env.NewBox(low, high, rand.New(rand.NewSource(opts.Seed+1)))
	if err != nil {
		return nil, err
	}

	return &Sim{
		opts:  opts,
		rng:   rand.New(rand.NewSource(opts.Seed)),
		space: space,
		cameras: [env.NumCameras]camera{
			newCamera(149, -53, opts.Width, opts.Height),
			newCamera(30, -42, opts.Width, opts.Height),
		},
	}, nil
}

// Reset implements env.Environment.
func (s *Sim) Reset(ctx context.Context) (env.State, error) {
	s.arm.Home()
	s.object = r3.Vec{
		X: 0.45 + 0.2*s.rng.Float64(),
		Y: -0.2 + 0.4*s.rng.Float64(),
		Z: 0.02,
	}
	s.steps = 0
	s.grasped = false
	return s.render(), nil
}

// Step implements env.Environment.
func (s *Sim) Step(ctx context.Context, action env.Action) (env.StepResult, error) {
	if len(action) != NumJoints {
		return env.StepResult{}, fmt.Errorf("action has %d elements, want %d", len(action), NumJoints)
	}

	s.arm.Apply(action)
	s.steps++

	distance := s.Distance()
	s.grasped = distance < GraspDistance
	reward := -1.0
	if s.grasped {
		reward = 1
	}

	return env.StepResult{
		State:  s.render(),
		Reward: reward,
		Done:   s.grasped || s.steps >= s.opts.MaxSteps,
		Info: env.Info{
			"distance": distance,
			"grasped":  s.grasped,
		},
	}, nil
}

// ActionSpace implements env.Environment.
func (s *Sim) ActionSpace() env.Space {
	return s.space
}

// Distance is the current end effector to object distance.
func (s *Sim) Distance() float64 {
	return r3.Norm(r3.Sub(s.arm.EndEffector(), s.object))
}

// Steps returns the number of steps taken since the last reset.
func (s *Sim) Steps() int {
	return s.steps
}

func (s *Sim) render() env.State {
	var state env.State
	for i, cam := range s.cameras {
		state[i] = cam.render(&s.arm, s.object, s.grasped)
	}
	return state
}
