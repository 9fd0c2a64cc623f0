package events

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs   []published
	err    error
	closed bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return nil
}

func (f *fakeConn) Close() { f.closed = true }

func TestNATSPublisher_PublishEpisode(t *testing.T) {
	fc := &fakeConn{}
	pub := newPublisher(fc, "rollouts.episodes", zerolog.Nop())

	event := EpisodeEvent{Run: "t1", Agent: "greedy", Episode: 4, Steps: 12, Done: true}
	require.NoError(t, pub.PublishEpisode(context.Background(), event))

	require.Len(t, fc.msgs, 1)
	assert.Equal(t, "rollouts.episodes", fc.msgs[0].subject)

	var got EpisodeEvent
	require.NoError(t, json.Unmarshal(fc.msgs[0].data, &got))
	assert.Equal(t, event, got)
}

func TestNATSPublisher_FailedEpisodeRouted(t *testing.T) {
	fc := &fakeConn{}
	pub := newPublisher(fc, "rollouts.episodes", zerolog.Nop())

	event := EpisodeEvent{Run: "t1", Episode: 0, Error: "reversal did not restore best distance"}
	require.NoError(t, pub.PublishEpisode(context.Background(), event))

	require.Len(t, fc.msgs, 2)
	assert.Equal(t, "rollouts.episodes", fc.msgs[0].subject)
	assert.Equal(t, "rollouts.episodes.failed", fc.msgs[1].subject)
}

func TestNATSPublisher_PublishError(t *testing.T) {
	fc := &fakeConn{err: errors.New("connection closed")}
	pub := newPublisher(fc, "rollouts.episodes", zerolog.Nop())

	err := pub.PublishEpisode(context.Background(), EpisodeEvent{Run: "t1"})
	assert.EqualError(t, err, "connection closed")

	pub.Close()
	assert.True(t, fc.closed)
}
