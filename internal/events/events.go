package events

import "context"

// Publisher is implemented by downstream fan-out mechanisms.
type Publisher interface {
	PublishEpisode(ctx context.Context, payload EpisodeEvent) error
}

// EpisodeEvent is emitted once per finished or aborted episode.
type EpisodeEvent struct {
	Run          string  `json:"run"`
	SessionID    string  `json:"session_id"`
	Agent        string  `json:"agent"`
	Episode      int     `json:"episode"`
	Steps        int     `json:"steps"`
	TotalReward  float64 `json:"total_reward"`
	LastDistance float64 `json:"last_distance"`
	BestDistance float64 `json:"best_distance"`
	Done         bool    `json:"done"`
	Error        string  `json:"error,omitempty"`
}

// Failed reports whether the episode was aborted by an error.
func (e EpisodeEvent) Failed() bool {
	return e.Error != ""
}

// NoopPublisher drops every event; used when no broker is configured.
type NoopPublisher struct{}

// PublishEpisode satisfies Publisher.
func (NoopPublisher) PublishEpisode(context.Context, EpisodeEvent) error { return nil }
