package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	ErrKafkaTopicRequired   = errors.New("messaging: kafka topic is required")
	ErrKafkaBrokersRequired = errors.New("messaging: kafka brokers are required")
)

// KafkaConfig configures the kafka-go backend. WriterConfig, when set,
// replaces the defaults wholesale except for topic, brokers, dialer, and
// balancer, which are filled in if missing.
type KafkaConfig struct {
	Brokers      []string
	Dialer       *kafka.Dialer
	WriterConfig *kafka.WriterConfig
}

// Kafka publishes through one lazily created writer per topic. Writers are
// reused across publishes and closed together.
type Kafka struct {
	brokers      []string
	dialer       *kafka.Dialer
	writerConfig *kafka.WriterConfig

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	closed  bool
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}
	return &Kafka{
		brokers:      append([]string{}, cfg.Brokers...),
		dialer:       cfg.Dialer,
		writerConfig: cfg.WriterConfig,
		writers:      map[string]*kafka.Writer{},
	}, nil
}

func (k *Kafka) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrKafkaTopicRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}

	wr, err := k.writerFor(destination)
	if err != nil {
		return PublishResult{}, err
	}

	out := kafka.Message{
		Key:   msg.Key,
		Value: msg.Body,
		Time:  time.Now(),
	}
	for _, h := range msg.Headers {
		if h.Key == "" {
			continue
		}
		out.Headers = append(out.Headers, kafka.Header{Key: h.Key, Value: h.Value})
	}

	if err := wr.WriteMessages(ctx, out); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: kafka publish: %w", err)
	}

	return PublishResult{Topic: destination, Timestamp: out.Time}, nil
}

func (k *Kafka) writerFor(topic string) (*kafka.Writer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, io.ErrClosedPipe
	}
	if wr, ok := k.writers[topic]; ok {
		return wr, nil
	}

	wc := kafka.WriterConfig{
		Brokers:  k.brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
		Dialer:   k.dialer,
	}
	if k.writerConfig != nil {
		wc = *k.writerConfig
		wc.Topic = topic
		if len(wc.Brokers) == 0 {
			wc.Brokers = k.brokers
		}
		if wc.Dialer == nil {
			wc.Dialer = k.dialer
		}
		if wc.Balancer == nil {
			wc.Balancer = &kafka.LeastBytes{}
		}
	}

	wr := kafka.NewWriter(wc)
	k.writers[topic] = wr
	return wr, nil
}

func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	pending := make([]*kafka.Writer, 0, len(k.writers))
	for _, wr := range k.writers {
		pending = append(pending, wr)
	}
	k.writers = nil
	k.mu.Unlock()

	var errs error
	for _, wr := range pending {
		errs = errors.Join(errs, wr.Close())
	}
	return errs
}
