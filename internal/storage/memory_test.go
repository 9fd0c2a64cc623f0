package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	summary := EpisodeSummary{
		Run:          "t1",
		SessionID:    "session-1",
		Agent:        "greedy",
		Episode:      2,
		Steps:        17,
		TotalReward:  -15,
		HasDistance:  true,
		LastDistance: 0.31,
		BestDistance: 0.12,
		Done:         true,
		StartedAt:    time.Now().Add(-time.Second),
		EndedAt:      time.Now(),
	}
	require.NoError(t, store.SaveEpisode(ctx, summary))

	got, err := store.GetEpisode(ctx, "t1", 2)
	require.NoError(t, err)
	assert.Equal(t, summary, got)

	_, err = store.GetEpisode(ctx, "t1", 3)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetEpisode(ctx, "other", 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListOrderedByEpisode(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, ep := range []int{3, 0, 2, 1} {
		require.NoError(t, store.SaveEpisode(ctx, EpisodeSummary{Run: "t1", Episode: ep}))
	}
	require.NoError(t, store.SaveEpisode(ctx, EpisodeSummary{Run: "t2", Episode: 9}))

	list, err := store.ListEpisodes(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 4)
	for i, s := range list {
		assert.Equal(t, i, s.Episode)
	}

	_, err = store.ListEpisodes(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SaveReplacesEpisode(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveEpisode(ctx, EpisodeSummary{Run: "t1", Episode: 0, Steps: 5}))
	require.NoError(t, store.SaveEpisode(ctx, EpisodeSummary{Run: "t1", Episode: 0, Steps: 8}))

	list, err := store.ListEpisodes(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 8, list[0].Steps)
}
