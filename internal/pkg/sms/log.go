package sms

import (
	"context"
	"log/slog"
)

// Log is a development SMS implementation that writes messages to the
// structured log instead of a real provider.
type Log struct{}

// NewLog constructs a logging SMS sender.
func NewLog() *Log {
	return &Log{}
}

// Send logs the message at info level.
func (l *Log) Send(ctx context.Context, msg Message) error {
	slog.InfoContext(ctx, "sms delivery (log driver)", "to", msg.To, "body", msg.Body)
	return nil
}

// Close implements io.Closer for interface compatibility.
func (l *Log) Close() error {
	return nil
}
