package actor

import (
	"context"
	"errors"
	"fmt"

	"github.com/cartridge/gather/internal/config"
	"github.com/cartridge/gather/internal/env"
)

// RandomAgent samples a fresh action from the action space every step.
type RandomAgent struct {
	rec Recorder
}

// NewRandom creates a RandomAgent.
func NewRandom(rec Recorder) *RandomAgent {
	return &RandomAgent{rec: rec}
}

// Name implements Agent.
func (a *RandomAgent) Name() string { return config.AgentRandom }

// Rollout resets the environment and steps with random actions until done.
// Every step is recorded, starting from step 0.
func (a *RandomAgent) Rollout(ctx context.Context, e env.Environment, episode int) (Result, error) {
	var res Result
	if _, err := e.Reset(ctx); err != nil {
		return res, fmt.Errorf("failed to reset environment: %w", err)
	}
	space := e.ActionSpace()
	if space == nil {
		return res, errors.New("environment has no action space")
	}

	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		action := space.Sample()
		out, err := e.Step(ctx, action)
		if err != nil {
			return res, fmt.Errorf("step %d: %w", step, err)
		}
		if err := a.rec.Append(episode, step, out.State, copyAction(action), out.Reward, out.Info); err != nil {
			return res, fmt.Errorf("step %d: %w", step, err)
		}
		res.observe(out)
		if out.Done {
			return res, nil
		}
	}
}
