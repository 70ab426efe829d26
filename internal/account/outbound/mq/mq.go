// Package mq publishes account domain events to the message broker.
package mq

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/codes"

	"github.com/otpgate/otpgate/internal/pkg/goroutine"
	"github.com/otpgate/otpgate/internal/pkg/instrument"
	"github.com/otpgate/otpgate/internal/pkg/messaging"
)

const keyOfCorrelationID string = "cID"

// Messaging fans account events out to the broker. Publishing is best effort:
// failures are logged and never surface to the business operation.
type Messaging struct {
	client messaging.Publisher
	gorun  *goroutine.Manager
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, gorun *goroutine.Manager, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, gorun: gorun, ins: ins}
}

func (m *Messaging) Publish(ctx context.Context, event string, payload map[string]any) {
	ctx, span := m.ins.Tracer("account.outbound.mq").Start(ctx, "Publish")
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "failed to marshal event payload", "event", event, "error", err)
		return
	}

	cID := instrument.GetCorrelationID(ctx)

	// The handler returns (and its context gets canceled) before the
	// goroutine runs; detach so the event still goes out, keeping the
	// context values for trace and correlation id.
	m.gorun.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		if _, err := m.client.Publish(ctx, event, messaging.OutgoingMessage{
			Body:    body,
			Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
		}); err != nil {
			slog.ErrorContext(ctx, "failed to publish event", "event", event, "error", err)
		}
		return nil
	})
}
