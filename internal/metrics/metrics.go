package metrics

import (
	"time"

	"github.com/rs/zerolog"
)

// Metrics collector for rollout collection
type Collector struct {
	logger zerolog.Logger
}

func NewCollector(logger zerolog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

// Track finished episodes
func (c *Collector) EpisodeCompleted(run string, episode, steps int, totalReward float64, duration time.Duration) {
	c.logger.Info().
		Str("metric", "episode_completed").
		Str("run", run).
		Int("episode", episode).
		Int("steps", steps).
		Float64("total_reward", totalReward).
		Dur("duration", duration).
		Msg("Episode metric")
}

// Track every logged transition
func (c *Collector) StepLogged(run string, episode, step int, reward float64) {
	c.logger.Debug().
		Str("metric", "step_logged").
		Str("run", run).
		Int("episode", episode).
		Int("step", step).
		Float64("reward", reward).
		Msg("Step metric")
}

// Track greedy accept/reject decisions
func (c *Collector) GreedyTransition(episode, step, axis int, accepted bool, distance, best float64) {
	c.logger.Debug().
		Str("metric", "greedy_transition").
		Int("episode", episode).
		Int("step", step).
		Int("axis", axis).
		Bool("accepted", accepted).
		Float64("distance", distance).
		Float64("best_distance", best).
		Msg("Greedy transition metric")
}

// Track API request metrics
func (c *Collector) APIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	c.logger.Info().
		Str("metric", "api_request").
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status_code", statusCode).
		Dur("duration", duration).
		Msg("API request metric")
}
