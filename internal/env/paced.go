package env

import (
	"context"

	"golang.org/x/time/rate"
)

// Paced limits how fast Step may be called on the wrapped environment.
type Paced struct {
	Environment
	limiter *rate.Limiter
}

// NewPaced wraps e so that at most stepsPerSecond steps run per second.
func NewPaced(e Environment, stepsPerSecond float64) *Paced {
	return &Paced{
		Environment: e,
		limiter:     rate.NewLimiter(rate.Limit(stepsPerSecond), 1),
	}
}

// Step waits for the limiter before stepping.
func (p *Paced) Step(ctx context.Context, action Action) (StepResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return StepResult{}, err
	}
	return p.Environment.Step(ctx, action)
}

// Close closes the wrapped environment when it holds resources.
func (p *Paced) Close() error {
	if c, ok := p.Environment.(Closer); ok {
		return c.Close()
	}
	return nil
}
