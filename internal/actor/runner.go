package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cartridge/gather/internal/env"
	"github.com/cartridge/gather/internal/events"
	"github.com/cartridge/gather/internal/metrics"
	"github.com/cartridge/gather/internal/storage"
)

// Runner drives an agent through a fixed number of episodes
type Runner struct {
	run         string
	numEpisodes int
	sessionID   string

	env       env.Environment
	agent     Agent
	store     storage.Store
	publisher events.Publisher
	metrics   *metrics.Collector
	logger    zerolog.Logger
	now       func() time.Time
}

// RunnerConfig wires a Runner. Store, Publisher and Metrics are optional.
type RunnerConfig struct {
	Run         string
	NumEpisodes int
	Env         env.Environment
	Agent       Agent
	Store       storage.Store
	Publisher   events.Publisher
	Metrics     *metrics.Collector
	Logger      zerolog.Logger
}

// NewRunner creates a Runner with a fresh session id.
func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{
		run:         cfg.Run,
		numEpisodes: cfg.NumEpisodes,
		sessionID:   uuid.NewString(),
		env:         cfg.Env,
		agent:       cfg.Agent,
		store:       cfg.Store,
		publisher:   cfg.Publisher,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		now:         time.Now,
	}
	if r.store == nil {
		r.store = storage.NewMemoryStore()
	}
	if r.publisher == nil {
		r.publisher = events.NoopPublisher{}
	}
	if r.metrics == nil {
		r.metrics = metrics.NewCollector(zerolog.Nop())
	}
	return r
}

// SessionID identifies this invocation across runs sharing a store.
func (r *Runner) SessionID() string { return r.sessionID }

// Run plays episodes 0..NumEpisodes-1 in order. The first rollout error
// aborts the run after its summary has been saved and published.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().
		Str("run", r.run).
		Str("session_id", r.sessionID).
		Str("agent", r.agent.Name()).
		Int("num_episodes", r.numEpisodes).
		Msg("Starting rollouts")

	for episode := 0; episode < r.numEpisodes; episode++ {
		select {
		case <-ctx.Done():
			r.logger.Info().Int("episode", episode).Msg("Context cancelled, stopping rollouts")
			return ctx.Err()
		default:
		}

		started := r.now()
		res, rolloutErr := r.agent.Rollout(ctx, r.env, episode)
		ended := r.now()

		summary := r.summarize(episode, res, started, ended, rolloutErr)
		if err := r.store.SaveEpisode(ctx, summary); err != nil {
			r.logger.Error().Err(err).Int("episode", episode).Msg("Failed to save episode summary")
		}
		if err := r.publisher.PublishEpisode(ctx, toEvent(summary)); err != nil {
			r.logger.Error().Err(err).Int("episode", episode).Msg("Failed to publish episode event")
		}

		if rolloutErr != nil {
			return fmt.Errorf("episode %d: %w", episode, rolloutErr)
		}
		r.metrics.EpisodeCompleted(r.run, episode, res.Steps, res.TotalReward, ended.Sub(started))

		if (episode+1)%10 == 0 {
			r.logger.Info().Int("episodes", episode+1).Msg("Completed episodes")
		}
	}

	r.logger.Info().Str("run", r.run).Int("episodes", r.numEpisodes).Msg("Rollouts finished")
	return nil
}

func (r *Runner) summarize(episode int, res Result, started, ended time.Time, err error) storage.EpisodeSummary {
	s := storage.EpisodeSummary{
		Run:          r.run,
		SessionID:    r.sessionID,
		Agent:        r.agent.Name(),
		Episode:      episode,
		Steps:        res.Steps,
		TotalReward:  res.TotalReward,
		HasDistance:  res.HasDistance,
		LastDistance: res.LastDistance,
		BestDistance: res.BestDistance,
		Done:         res.Done,
		StartedAt:    started.UTC(),
		EndedAt:      ended.UTC(),
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

func toEvent(s storage.EpisodeSummary) events.EpisodeEvent {
	return events.EpisodeEvent{
		Run:          s.Run,
		SessionID:    s.SessionID,
		Agent:        s.Agent,
		Episode:      s.Episode,
		Steps:        s.Steps,
		TotalReward:  s.TotalReward,
		LastDistance: s.LastDistance,
		BestDistance: s.BestDistance,
		Done:         s.Done,
		Error:        s.Error,
	}
}

// MeteredRecorder reports a step_logged metric for every recorded step.
type MeteredRecorder struct {
	Recorder
	run     string
	metrics *metrics.Collector
}

// NewMeteredRecorder wraps rec.
func NewMeteredRecorder(rec Recorder, run string, collector *metrics.Collector) *MeteredRecorder {
	return &MeteredRecorder{Recorder: rec, run: run, metrics: collector}
}

// Append records the transition, then reports it.
func (m *MeteredRecorder) Append(episode, step int, state env.State, action env.Action, reward float64, info env.Info) error {
	if err := m.Recorder.Append(episode, step, state, action, reward, info); err != nil {
		return err
	}
	m.metrics.StepLogged(m.run, episode, step, reward)
	return nil
}
