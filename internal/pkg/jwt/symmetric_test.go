package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fixedUUID struct{ id string }

func (u fixedUUID) Generate() string { return u.id }

func testConfig() Config {
	return Config{
		Secret:    []byte(strings.Repeat("s", 64)),
		Issuer:    "otpgate",
		Audiences: []string{"otpgate-api"},
		TTL:       15 * time.Minute,
		Clock:     fixedClock{now: time.Now()},
		UUID:      fixedUUID{id: "token-id-1"},
	}
}

func TestNewHS512ShortSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Secret = []byte("too-short")

	if _, err := NewHS512(cfg); !errors.Is(err, ErrSigningKeyTooShort) {
		t.Fatalf("NewHS512 error = %v, want %v", err, ErrSigningKeyTooShort)
	}
}

func TestSymmetricRoundTrip(t *testing.T) {
	s, err := NewHS512(testConfig())
	if err != nil {
		t.Fatalf("NewHS512 error = %v", err)
	}

	token, err := s.Generate(42, "amel@example.com")
	if err != nil {
		t.Fatalf("Generate error = %v", err)
	}

	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	if claims.Subject != "amel@example.com" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "amel@example.com")
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
}

func TestSymmetricVerifyUniformFailure(t *testing.T) {
	s, err := NewHS512(testConfig())
	if err != nil {
		t.Fatalf("NewHS512 error = %v", err)
	}

	other := testConfig()
	other.Secret = []byte(strings.Repeat("x", 64))
	forger, err := NewHS512(other)
	if err != nil {
		t.Fatalf("NewHS512 error = %v", err)
	}

	expired := testConfig()
	expired.Clock = fixedClock{now: time.Now().Add(-time.Hour)}
	stale, err := NewHS512(expired)
	if err != nil {
		t.Fatalf("NewHS512 error = %v", err)
	}

	forged, _ := forger.Generate(1, "a@example.com")
	old, _ := stale.Generate(1, "a@example.com")

	tests := []struct {
		name  string
		token string
	}{
		{name: "Garbage", token: "not-a-token"},
		{name: "Empty", token: ""},
		{name: "WrongSignature", token: forged},
		{name: "Expired", token: old},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify error = %v, want %v", err, ErrInvalidToken)
			}
		})
	}
}
