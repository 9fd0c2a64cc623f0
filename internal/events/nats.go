package events

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// conn is the slice of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSPublisher implements Publisher using NATS
type NATSPublisher struct {
	conn    conn
	subject string
	logger  zerolog.Logger
}

// NewNATSPublisher creates a new NATS-backed publisher
func NewNATSPublisher(natsURL, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(natsURL, nats.Name("gather"))
	if err != nil {
		return nil, err
	}
	return newPublisher(nc, subject, logger), nil
}

func newPublisher(c conn, subject string, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:    c,
		subject: subject,
		logger:  logger,
	}
}

// Close closes the NATS connection
func (n *NATSPublisher) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

// PublishEpisode publishes the event on the main subject, and again on
// <subject>.failed when the episode was aborted.
func (n *NATSPublisher) PublishEpisode(ctx context.Context, event EpisodeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := n.conn.Publish(n.subject, data); err != nil {
		n.logger.Error().Err(err).Str("subject", n.subject).Msg("Failed to publish episode")
		return err
	}

	if event.Failed() {
		routingKey := n.subject + ".failed"
		if err := n.conn.Publish(routingKey, data); err != nil {
			n.logger.Error().Err(err).Str("routing_key", routingKey).Msg("Failed to publish to routing key")
		}
	}

	n.logger.Debug().
		Str("run", event.Run).
		Int("episode", event.Episode).
		Str("subject", n.subject).
		Msg("Published episode event")

	return nil
}
