// Package sms defines the contract for sending text messages.
//
// Like the mail package, it keeps the application independent from a specific
// SMS provider. Use cases depend on the SMS interface; the concrete provider
// (Twilio-compatible API, local logger for development) lives in this package.
package sms

import (
	"context"
	"io"
)

// Message represents a text message payload.
type Message struct {
	// To is the recipient phone number in E.164 format.
	To string
	// Body is the message text.
	Body string
}

// SMS abstracts a text message provider.
type SMS interface {
	io.Closer
	// Send dispatches the given message using the underlying provider.
	Send(ctx context.Context, msg Message) error
}
