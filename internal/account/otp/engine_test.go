package otp

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
)

type memStore struct {
	mu         sync.Mutex
	challenges []entity.OtpChallenge
}

func (s *memStore) Create(_ context.Context, ch entity.OtpChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges = append(s.challenges, ch)
	return nil
}

func (s *memStore) MostRecent(_ context.Context, identifier string, purpose entity.Purpose) (*entity.OtpChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.challenges) - 1; i >= 0; i-- {
		if s.challenges[i].Identifier == identifier && s.challenges[i].Purpose == purpose {
			ch := s.challenges[i]
			return &ch, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (s *memStore) AddAttempt(_ context.Context, id uint64, expectedAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.challenges {
		if s.challenges[i].ID == id {
			if s.challenges[i].Verified || s.challenges[i].Attempts != expectedAttempts {
				return goerror.ErrConflict
			}
			s.challenges[i].Attempts++
			return nil
		}
	}
	return goerror.ErrNotFound
}

func (s *memStore) MarkVerified(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.challenges {
		if s.challenges[i].ID == id {
			if s.challenges[i].Verified {
				return goerror.ErrConflict
			}
			s.challenges[i].Verified = true
			return nil
		}
	}
	return goerror.ErrNotFound
}

func (s *memStore) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.challenges {
		if s.challenges[i].ID == id {
			s.challenges = append(s.challenges[:i], s.challenges[i+1:]...)
			return nil
		}
	}
	return goerror.ErrNotFound
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

type memSender struct {
	mu     sync.Mutex
	emails []string
	phones []string
	fail   bool
}

func (m *memSender) SendEmailCode(_ context.Context, _ string, _ entity.Purpose, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp unreachable")
	}
	m.emails = append(m.emails, code)
	return nil
}

func (m *memSender) SendPhoneCode(_ context.Context, _ string, _ entity.Purpose, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("sms gateway unreachable")
	}
	m.phones = append(m.phones, code)
	return nil
}

func (m *memSender) lastEmail() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.emails) == 0 {
		return ""
	}
	return m.emails[len(m.emails)-1]
}

type plainHasher struct{}

func (plainHasher) Hash(plaintext string) ([]byte, error) { return []byte("h:" + plaintext), nil }
func (plainHasher) Verify(hashed, plaintext string) bool  { return hashed == "h:"+plaintext }

type movableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *movableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *movableClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seqID struct {
	mu   sync.Mutex
	next uint64
}

func (s *seqID) Generate() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next
}

func newTestEngine() (*Engine, *memStore, *memSender, *movableClock) {
	store := &memStore{}
	sender := &memSender{}
	clk := &movableClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	eng := NewEngine(Dependency{
		Store:  store,
		Sender: sender,
		Hasher: plainHasher{},
		Clock:  clk,
		UID:    &seqID{},
		Config: Config{TTL: 5 * time.Minute, Cooldown: time.Minute, MaxAttempts: 3},
	})
	return eng, store, sender, clk
}

func TestIssueDeliversSixDigitCode(t *testing.T) {
	eng, store, sender, _ := newTestEngine()

	if err := eng.Issue(context.Background(), "a@example.com", entity.ChannelEmail, entity.PurposeEmailVerification); err != nil {
		t.Fatalf("Issue error = %v", err)
	}

	code := sender.lastEmail()
	if !regexp.MustCompile(`^[1-9]\d{5}$`).MatchString(code) {
		t.Errorf("delivered code %q is not a 6-digit code", code)
	}

	ch, err := store.MostRecent(context.Background(), "a@example.com", entity.PurposeEmailVerification)
	if err != nil {
		t.Fatalf("MostRecent error = %v", err)
	}
	if ch.CodeHash == code {
		t.Error("raw code was persisted instead of its hash")
	}
	if ch.Attempts != 0 || ch.Verified {
		t.Errorf("fresh challenge = %+v, want attempts 0 and unverified", ch)
	}
}

func TestIssueCooldown(t *testing.T) {
	eng, _, _, clk := newTestEngine()
	ctx := context.Background()

	if err := eng.Issue(ctx, "a@example.com", entity.ChannelEmail, entity.PurposeEmailVerification); err != nil {
		t.Fatalf("Issue error = %v", err)
	}

	clk.advance(30 * time.Second)
	if err := eng.Issue(ctx, "a@example.com", entity.ChannelEmail, entity.PurposeEmailVerification); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Issue during cooldown error = %v, want %v", err, ErrRateLimited)
	}

	// A different purpose has its own cooldown window.
	if err := eng.Issue(ctx, "a@example.com", entity.ChannelEmail, entity.PurposeForgotPassword); err != nil {
		t.Fatalf("Issue for other purpose error = %v", err)
	}

	clk.advance(31 * time.Second)
	if err := eng.Issue(ctx, "a@example.com", entity.ChannelEmail, entity.PurposeEmailVerification); err != nil {
		t.Fatalf("Issue after cooldown error = %v", err)
	}
}

func TestIssueAfterVerificationSkipsCooldown(t *testing.T) {
	eng, _, sender, _ := newTestEngine()
	ctx := context.Background()

	if err := eng.Issue(ctx, "a@example.com", entity.ChannelEmail, entity.PurposeEmailVerification); err != nil {
		t.Fatalf("Issue error = %v", err)
	}
	if err := eng.Verify(ctx, "a@example.com", entity.PurposeEmailVerification, sender.lastEmail()); err != nil {
		t.Fatalf("Verify error = %v", err)
	}

	// The live challenge is spent, so a new request needs no waiting.
	if err := eng.Issue(ctx, "a@example.com", entity.ChannelEmail, entity.PurposeEmailVerification); err != nil {
		t.Fatalf("Issue after verification error = %v", err)
	}
}

func TestIssueDeliveryFailureRollsBack(t *testing.T) {
	eng, store, sender, _ := newTestEngine()
	ctx := context.Background()

	sender.fail = true
	err := eng.Issue(ctx, "a@example.com", entity.ChannelEmail, entity.PurposeEmailVerification)

	var dErr *DeliveryError
	if !errors.As(err, &dErr) {
		t.Fatalf("Issue error = %v, want DeliveryError", err)
	}
	if store.count() != 0 {
		t.Errorf("challenge count = %d after failed delivery, want 0", store.count())
	}

	// The failed issue must not rate-limit an immediate retry.
	sender.fail = false
	if err := eng.Issue(ctx, "a@example.com", entity.ChannelEmail, entity.PurposeEmailVerification); err != nil {
		t.Fatalf("Issue retry error = %v", err)
	}
}

func TestVerifyNoChallenge(t *testing.T) {
	eng, _, _, _ := newTestEngine()

	err := eng.Verify(context.Background(), "nobody@example.com", entity.PurposeEmailVerification, "123456")
	if !errors.Is(err, ErrNoChallenge) {
		t.Fatalf("Verify error = %v, want %v", err, ErrNoChallenge)
	}
}

func TestVerifyWrongCodeCountsDown(t *testing.T) {
	eng, _, sender, _ := newTestEngine()
	ctx := context.Background()

	if err := eng.Issue(ctx, "a@example.com", entity.ChannelEmail, entity.PurposeEmailVerification); err != nil {
		t.Fatalf("Issue error = %v", err)
	}

	for want := 2; want >= 0; want-- {
		err := eng.Verify(ctx, "a@example.com", entity.PurposeEmailVerification, "000000")
		var iErr *InvalidCodeError
		if !errors.As(err, &iErr) {
			t.Fatalf("Verify error = %v, want InvalidCodeError", err)
		}
		if iErr.Remaining != want {
			t.Errorf("Remaining = %d, want %d", iErr.Remaining, want)
		}
	}

	// Budget is spent; even the correct code is refused now.
	err := eng.Verify(ctx, "a@example.com", entity.PurposeEmailVerification, sender.lastEmail())
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("Verify error = %v, want %v", err, ErrTooManyAttempts)
	}
}

func TestVerifySuccessIsTerminal(t *testing.T) {
	eng, _, sender, _ := newTestEngine()
	ctx := context.Background()

	if err := eng.Issue(ctx, "a@example.com", entity.ChannelEmail, entity.PurposeEmailVerification); err != nil {
		t.Fatalf("Issue error = %v", err)
	}

	code := sender.lastEmail()
	if err := eng.Verify(ctx, "a@example.com", entity.PurposeEmailVerification, code); err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	if err := eng.Verify(ctx, "a@example.com", entity.PurposeEmailVerification, code); !errors.Is(err, ErrCodeUsed) {
		t.Fatalf("Verify replay error = %v, want %v", err, ErrCodeUsed)
	}
}

func TestVerifyExpired(t *testing.T) {
	eng, _, sender, clk := newTestEngine()
	ctx := context.Background()

	if err := eng.Issue(ctx, "a@example.com", entity.ChannelEmail, entity.PurposeEmailVerification); err != nil {
		t.Fatalf("Issue error = %v", err)
	}

	clk.advance(5*time.Minute + time.Second)

	err := eng.Verify(ctx, "a@example.com", entity.PurposeEmailVerification, sender.lastEmail())
	var eErr *ExpiredError
	if !errors.As(err, &eErr) {
		t.Fatalf("Verify error = %v, want ExpiredError", err)
	}
	if eErr.TTL != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", eErr.TTL)
	}
}

func TestNewCodeSupersedesOldOne(t *testing.T) {
	eng, _, sender, clk := newTestEngine()
	ctx := context.Background()

	if err := eng.Issue(ctx, "a@example.com", entity.ChannelEmail, entity.PurposeEmailVerification); err != nil {
		t.Fatalf("Issue error = %v", err)
	}
	first := sender.lastEmail()

	clk.advance(2 * time.Minute)
	if err := eng.Issue(ctx, "a@example.com", entity.ChannelEmail, entity.PurposeEmailVerification); err != nil {
		t.Fatalf("second Issue error = %v", err)
	}
	second := sender.lastEmail()

	if first == second {
		// One-in-900000 collision would invalidate the assertions below.
		t.Skip("codes collided")
	}

	err := eng.Verify(ctx, "a@example.com", entity.PurposeEmailVerification, first)
	var iErr *InvalidCodeError
	if !errors.As(err, &iErr) {
		t.Fatalf("Verify with superseded code error = %v, want InvalidCodeError", err)
	}

	if err := eng.Verify(ctx, "a@example.com", entity.PurposeEmailVerification, second); err != nil {
		t.Fatalf("Verify with latest code error = %v", err)
	}
}

// verifiedRaceStore simulates a challenge verified by another process between
// this request's read and its attempt write.
type verifiedRaceStore struct {
	memStore
}

func (s *verifiedRaceStore) AddAttempt(ctx context.Context, id uint64, _ int) error {
	if err := s.memStore.MarkVerified(ctx, id); err != nil {
		return err
	}
	return goerror.ErrConflict
}

// exhaustedRaceStore simulates other processes consuming the attempt budget
// between this request's read and its attempt write.
type exhaustedRaceStore struct {
	memStore
}

func (s *exhaustedRaceStore) AddAttempt(_ context.Context, id uint64, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.challenges {
		if s.challenges[i].ID == id {
			s.challenges[i].Attempts = 3
		}
	}
	return goerror.ErrConflict
}

func TestVerifyLostWriteReportsWinnerOutcome(t *testing.T) {
	newEngine := func(store ChallengeStore, sender *memSender) *Engine {
		return NewEngine(Dependency{
			Store:  store,
			Sender: sender,
			Hasher: plainHasher{},
			Clock:  &movableClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
			UID:    &seqID{},
			Config: Config{TTL: 5 * time.Minute, Cooldown: time.Minute, MaxAttempts: 3},
		})
	}
	ctx := context.Background()

	t.Run("winner verified the challenge", func(t *testing.T) {
		sender := &memSender{}
		eng := newEngine(&verifiedRaceStore{}, sender)

		if err := eng.Issue(ctx, "a@example.com", entity.ChannelEmail, entity.PurposeEmailVerification); err != nil {
			t.Fatalf("Issue error = %v", err)
		}
		err := eng.Verify(ctx, "a@example.com", entity.PurposeEmailVerification, "000000")
		if !errors.Is(err, ErrCodeUsed) {
			t.Fatalf("Verify error = %v, want %v", err, ErrCodeUsed)
		}
	})

	t.Run("winners consumed the attempts", func(t *testing.T) {
		sender := &memSender{}
		eng := newEngine(&exhaustedRaceStore{}, sender)

		if err := eng.Issue(ctx, "a@example.com", entity.ChannelEmail, entity.PurposeEmailVerification); err != nil {
			t.Fatalf("Issue error = %v", err)
		}
		err := eng.Verify(ctx, "a@example.com", entity.PurposeEmailVerification, "000000")
		if !errors.Is(err, ErrTooManyAttempts) {
			t.Fatalf("Verify error = %v, want %v", err, ErrTooManyAttempts)
		}
	})
}

func TestConcurrentIssueSingleWinner(t *testing.T) {
	eng, store, _, _ := newTestEngine()
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = eng.Issue(ctx, "a@example.com", entity.ChannelEmail, entity.PurposeEmailVerification)
		}()
	}
	wg.Wait()

	issued := 0
	for _, err := range results {
		switch {
		case err == nil:
			issued++
		case errors.Is(err, ErrRateLimited):
		default:
			t.Fatalf("unexpected Issue error = %v", err)
		}
	}
	if issued != 1 {
		t.Errorf("successful issues = %d, want exactly 1", issued)
	}
	if store.count() != 1 {
		t.Errorf("stored challenges = %d, want 1", store.count())
	}
}
