// Package actor provides the rollout agents and the episode driver.
package actor

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/cartridge/gather/internal/config"
	"github.com/cartridge/gather/internal/env"
)

// Recorder persists one transition. *episodelog.Log satisfies it.
type Recorder interface {
	Append(episode, step int, state env.State, action env.Action, reward float64, info env.Info) error
}

// Agent plays one episode against an environment, recording every
// transition it is responsible for.
type Agent interface {
	Name() string
	Rollout(ctx context.Context, e env.Environment, episode int) (Result, error)
}

// Result summarizes one rollout.
type Result struct {
	Steps        int
	TotalReward  float64
	Done         bool
	HasDistance  bool
	LastDistance float64
	BestDistance float64
}

// observe folds one recorded transition into the result.
func (r *Result) observe(out env.StepResult) {
	r.Steps++
	r.TotalReward += out.Reward
	r.Done = out.Done
	d, err := out.Info.Distance()
	if err != nil {
		return
	}
	if !r.HasDistance || d < r.BestDistance {
		r.BestDistance = d
	}
	r.HasDistance = true
	r.LastDistance = d
}

// Options carries the collaborators shared by every agent.
type Options struct {
	Recorder Recorder
	Rand     *rand.Rand
	Logger   zerolog.Logger
	// OnTransition, when set, observes greedy accept/reject decisions.
	OnTransition func(Transition)
}

// New builds the agent registered under name.
func New(name string, opts Options) (Agent, error) {
	if opts.Recorder == nil {
		return nil, fmt.Errorf("agent %s: recorder is required", name)
	}
	switch name {
	case config.AgentRandom:
		return NewRandom(opts.Recorder), nil
	case config.AgentGreedy:
		if opts.Rand == nil {
			return nil, fmt.Errorf("agent %s: rng is required", name)
		}
		return NewGreedy(opts.Recorder, opts.Rand,
			WithLogger(opts.Logger),
			WithTransitionHook(opts.OnTransition)), nil
	default:
		return nil, fmt.Errorf("unknown agent type [%s]", name)
	}
}

// copyAction detaches the logged action from agent-owned buffers.
func copyAction(a env.Action) env.Action {
	return append(env.Action(nil), a...)
}
