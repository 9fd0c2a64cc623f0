package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound indicates the requested episode does not exist.
	ErrNotFound = errors.New("not found")
)

// EpisodeSummary is the outcome of one rollout.
type EpisodeSummary struct {
	Run          string    `json:"run"`
	SessionID    string    `json:"session_id"`
	Agent        string    `json:"agent"`
	Episode      int       `json:"episode"`
	Steps        int       `json:"steps"`
	TotalReward  float64   `json:"total_reward"`
	HasDistance  bool      `json:"has_distance"`
	LastDistance float64   `json:"last_distance"`
	BestDistance float64   `json:"best_distance"`
	Done         bool      `json:"done"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
}

// Store captures the persistence operations the collector relies on.
type Store interface {
	SaveEpisode(ctx context.Context, summary EpisodeSummary) error
	GetEpisode(ctx context.Context, run string, episode int) (EpisodeSummary, error)
	ListEpisodes(ctx context.Context, run string) ([]EpisodeSummary, error)
}

// MemoryStore is an in-memory Store, safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	episodes map[string]map[int]EpisodeSummary // run -> episode -> summary
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		episodes: make(map[string]map[int]EpisodeSummary),
	}
}

// SaveEpisode upserts a summary; rerunning an episode index replaces it.
func (m *MemoryStore) SaveEpisode(_ context.Context, summary EpisodeSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	runEpisodes, ok := m.episodes[summary.Run]
	if !ok {
		runEpisodes = make(map[int]EpisodeSummary)
		m.episodes[summary.Run] = runEpisodes
	}
	runEpisodes[summary.Episode] = summary
	return nil
}

// GetEpisode fetches one summary.
func (m *MemoryStore) GetEpisode(_ context.Context, run string, episode int) (EpisodeSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary, ok := m.episodes[run][episode]
	if !ok {
		return EpisodeSummary{}, ErrNotFound
	}
	return summary, nil
}

// ListEpisodes returns a run's summaries ordered by episode index.
func (m *MemoryStore) ListEpisodes(_ context.Context, run string) ([]EpisodeSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runEpisodes, ok := m.episodes[run]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]EpisodeSummary, 0, len(runEpisodes))
	for _, summary := range runEpisodes {
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Episode < out[j].Episode
	})
	return out, nil
}
