package mq

import (
	"context"
	"sync"
	"testing"

	"github.com/otpgate/otpgate/internal/pkg/goroutine"
	"github.com/otpgate/otpgate/internal/pkg/instrument"
	"github.com/otpgate/otpgate/internal/pkg/messaging"
)

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
	msgs   []messaging.OutgoingMessage
}

func (p *capturePublisher) Publish(_ context.Context, destination string, msg messaging.OutgoingMessage) (messaging.PublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, destination)
	p.msgs = append(p.msgs, msg)
	return messaging.PublishResult{Topic: destination}, nil
}

func (p *capturePublisher) Close() error { return nil }

func TestPublishAfterRequestContextCanceled(t *testing.T) {
	pub := &capturePublisher{}
	gorun := goroutine.NewManager(4)
	m := NewMessaging(pub, gorun, instrument.NewNoop())

	ctx, cancel := context.WithCancel(context.Background())
	ctx = instrument.SetCorrelationID(ctx, "cid-123")
	cancel()

	m.Publish(ctx, "account.signup", map[string]any{"user_id": "1"})

	if err := gorun.Wait(); err != nil {
		t.Fatalf("Wait() error = %v, want nil", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.msgs))
	}
	if pub.topics[0] != "account.signup" {
		t.Errorf("topic = %q, want %q", pub.topics[0], "account.signup")
	}

	var gotCID string
	for _, h := range pub.msgs[0].Headers {
		if h.Key == keyOfCorrelationID {
			gotCID = string(h.Value)
		}
	}
	if gotCID != "cid-123" {
		t.Errorf("correlation id header = %q, want %q", gotCID, "cid-123")
	}
}
