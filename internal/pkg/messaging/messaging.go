// Package messaging publishes domain events through a broker chosen by
// configuration: Kafka, NATS, NSQ, or Google Pub/Sub. Business code sees only
// the Publisher interface.
package messaging

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrUnsupported is returned for features the selected broker lacks, such as
// delayed delivery.
var ErrUnsupported = errors.New("messaging: unsupported operation")

// Publisher sends messages to a destination. The destination names a topic,
// subject, or queue depending on the broker.
type Publisher interface {
	io.Closer
	Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error)
}

// OutgoingMessage is the broker-neutral envelope. Each backend reads the
// fields it understands and ignores the rest.
type OutgoingMessage struct {
	Body []byte

	// Key drives partitioning on Kafka-like brokers.
	Key []byte

	// Headers allow binary values and repeated keys.
	Headers []Header

	// Attributes map onto brokers with string metadata (Pub/Sub).
	Attributes map[string]string

	// OrderingKey is honored by Google Pub/Sub.
	OrderingKey string

	// Delay defers delivery where the broker supports it.
	Delay time.Duration
}

// Header is one message header entry.
type Header struct {
	Key   string
	Value []byte
}

// PublishResult carries whatever acknowledgement metadata the broker returns.
type PublishResult struct {
	MessageID string
	Topic     string
	Timestamp time.Time
}
