// Package mail abstracts email delivery behind a provider-neutral interface.
// The account module hands it verification and reset codes; only this package
// knows the transport is SMTP.
package mail

import (
	"context"
	"io"
)

// Message is an email payload. TextBody and HTMLBody may both be set; the
// sender then builds a multipart/alternative body.
type Message struct {
	// From overrides the configured default sender when non-empty.
	From     string
	To       []string
	Cc       []string
	Bcc      []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mail sends messages through some provider.
type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
