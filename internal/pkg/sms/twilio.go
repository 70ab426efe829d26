package sms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrTwilioCredentialsRequired is returned when AccountSID/AuthToken are missing.
	ErrTwilioCredentialsRequired = errors.New("twilio account sid and auth token are required")
	// ErrTwilioNoSender is returned when the configured From number is empty.
	ErrTwilioNoSender = errors.New("no sender number provided")
	// ErrTwilioNoRecipient is returned when Message.To is empty.
	ErrTwilioNoRecipient = errors.New("no recipient number provided")
)

// Twilio is an SMS implementation backed by the Twilio Messages REST API.
type Twilio struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

// TwilioConfig configures the Twilio implementation.
type TwilioConfig struct {
	// AccountSID is the Twilio account identifier.
	AccountSID string
	// AuthToken is the API auth token.
	AuthToken string
	// From is the sender phone number in E.164 format.
	From string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
}

// NewTwilio constructs a Twilio SMS sender.
func NewTwilio(cfg TwilioConfig) (*Twilio, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, ErrTwilioCredentialsRequired
	}
	if cfg.From == "" {
		return nil, ErrTwilioNoSender
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}

	return &Twilio{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		client:     &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Send delivers a message through the Twilio API.
func (t *Twilio) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrTwilioNoRecipient
	}

	form := url.Values{}
	form.Set("From", t.from)
	form.Set("To", msg.To)
	form.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("twilio: send failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Close implements io.Closer for interface compatibility.
func (t *Twilio) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
