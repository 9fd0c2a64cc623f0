package actor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/cartridge/gather/internal/config"
	"github.com/cartridge/gather/internal/env"
)

const (
	// GreedyAxes is the number of action axes the greedy agent explores.
	GreedyAxes = 7

	// A move is kept only if it beats the best distance by this much, so
	// a joint pinned at its limit does not count as progress.
	improvementMargin = 1e-3

	// Stepping back along a rejected axis must land this close to the
	// best distance.
	reversalTolerance = 0.1
)

// ErrIrreversible is returned when undoing a rejected move did not bring the
// arm back near the best distance.
var ErrIrreversible = errors.New("reversal did not restore best distance")

// Transition describes one greedy accept/reject decision.
type Transition struct {
	Episode      int
	Step         int
	Axis         int
	Accepted     bool
	Distance     float64
	BestDistance float64
}

// GreedyOption configures a GreedyAgent.
type GreedyOption func(*GreedyAgent)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) GreedyOption {
	return func(g *GreedyAgent) { g.logger = logger }
}

// WithTransitionHook observes every accept/reject decision.
func WithTransitionHook(fn func(Transition)) GreedyOption {
	return func(g *GreedyAgent) { g.onTransition = fn }
}

// GreedyAgent hill climbs on the info distance by pushing one axis at a time
// at full magnitude, keeping a direction while it improves and stepping back
// when it does not.
type GreedyAgent struct {
	rec          Recorder
	rng          *rand.Rand
	logger       zerolog.Logger
	onTransition func(Transition)

	axis   int
	action env.Action
}

// NewGreedy creates a GreedyAgent drawing axes and signs from rng.
func NewGreedy(rec Recorder, rng *rand.Rand, opts ...GreedyOption) *GreedyAgent {
	g := &GreedyAgent{
		rec:    rec,
		rng:    rng,
		logger: zerolog.Nop(),
		action: make(env.Action, GreedyAxes),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name implements Agent.
func (g *GreedyAgent) Name() string { return config.AgentGreedy }

// pickAxis zeroes the current axis and sets a random axis to ±1.
func (g *GreedyAgent) pickAxis() {
	g.action[g.axis] = 0
	g.axis = g.rng.Intn(GreedyAxes)
	if g.rng.Float64() <= 0.5 {
		g.action[g.axis] = -1
	} else {
		g.action[g.axis] = 1
	}
}

func (g *GreedyAgent) observe(t Transition) {
	if g.onTransition != nil {
		g.onTransition(t)
	}
}

// Rollout runs one greedy episode. A zero action is taken first, unrecorded,
// to read the starting distance. Recording starts at step 0 after that.
func (g *GreedyAgent) Rollout(ctx context.Context, e env.Environment, episode int) (Result, error) {
	var res Result
	if _, err := e.Reset(ctx); err != nil {
		return res, fmt.Errorf("failed to reset environment: %w", err)
	}

	boot, err := e.Step(ctx, make(env.Action, GreedyAxes))
	if err != nil {
		return res, fmt.Errorf("bootstrap step: %w", err)
	}
	best, err := boot.Info.Distance()
	if err != nil {
		return res, fmt.Errorf("bootstrap step: %w", err)
	}
	if boot.Done {
		g.logger.Warn().
			Int("episode", episode).
			Float64("distance", best).
			Msg("Environment done on bootstrap step, continuing")
	}

	for i := range g.action {
		g.action[i] = 0
	}
	g.pickAxis()

	step := 0
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		// try the current move
		out, err := g.step(ctx, e, episode, step, &res)
		if err != nil {
			return res, err
		}
		if out.Done {
			return res, nil
		}
		step++

		distance, err := out.Info.Distance()
		if err != nil {
			return res, fmt.Errorf("step %d: %w", step-1, err)
		}
		if distance < best-improvementMargin {
			best = distance
			g.observe(Transition{Episode: episode, Step: step - 1, Axis: g.axis, Accepted: true, Distance: distance, BestDistance: best})
			continue
		}
		g.observe(Transition{Episode: episode, Step: step - 1, Axis: g.axis, Accepted: false, Distance: distance, BestDistance: best})

		// undo it
		g.action[g.axis] *= -1
		out, err = g.step(ctx, e, episode, step, &res)
		if err != nil {
			return res, err
		}
		distance, err = out.Info.Distance()
		if err != nil {
			return res, fmt.Errorf("step %d: %w", step, err)
		}
		if math.Abs(distance-best) > reversalTolerance {
			return res, fmt.Errorf("%w: episode %d step %d: distance %.4f, best %.4f",
				ErrIrreversible, episode, step, distance, best)
		}
		if out.Done {
			return res, nil
		}
		step++
		g.pickAxis()
	}
}

// step takes the current action and records it.
func (g *GreedyAgent) step(ctx context.Context, e env.Environment, episode, step int, res *Result) (env.StepResult, error) {
	action := copyAction(g.action)
	out, err := e.Step(ctx, action)
	if err != nil {
		return out, fmt.Errorf("step %d: %w", step, err)
	}
	if err := g.rec.Append(episode, step, out.State, action, out.Reward, out.Info); err != nil {
		return out, fmt.Errorf("step %d: %w", step, err)
	}
	res.observe(out)
	return out, nil
}
