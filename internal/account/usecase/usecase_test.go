package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/account/otp"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/pkg/idempotency"
	"github.com/otpgate/otpgate/internal/pkg/instrument"
	"github.com/otpgate/otpgate/internal/pkg/jwt"
	"github.com/otpgate/otpgate/internal/pkg/validator"
)

type memUsers struct {
	mu    sync.Mutex
	users map[uint64]entity.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[uint64]entity.User)}
}

func (m *memUsers) Create(_ context.Context, user entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email || u.Phone == user.Phone {
			return goerror.ErrConflict
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id uint64) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, goerror.ErrNotFound
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (m *memUsers) FindByPhone(_ context.Context, phone string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Phone == phone {
			u := u
			return &u, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (m *memUsers) MarkVerified(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return goerror.ErrNotFound
	}
	u.EmailVerified = true
	u.PhoneVerified = true
	m.users[id] = u
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id uint64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return goerror.ErrNotFound
	}
	u.PasswordHash = passwordHash
	m.users[id] = u
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, user entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return goerror.ErrNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *memUsers) UpdateAvatar(_ context.Context, id uint64, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return goerror.ErrNotFound
	}
	u.AvatarURL = url
	m.users[id] = u
	return nil
}

type issuedCode struct {
	Identifier string
	Channel    entity.Channel
	Purpose    entity.Purpose
}

// fakeOtp records issued codes and accepts "123456" on verify unless a canned
// error is set.
type fakeOtp struct {
	mu        sync.Mutex
	issued    []issuedCode
	issueErr  error
	verifyErr error
}

func (f *fakeOtp) Issue(_ context.Context, identifier string, channel entity.Channel, purpose entity.Purpose) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.issueErr != nil {
		return f.issueErr
	}
	f.issued = append(f.issued, issuedCode{identifier, channel, purpose})
	return nil
}

func (f *fakeOtp) Verify(_ context.Context, _ string, _ entity.Purpose, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return f.verifyErr
	}
	if code != "123456" {
		return &otp.InvalidCodeError{Remaining: 2}
	}
	return nil
}

func (f *fakeOtp) issuedFor(purpose entity.Purpose) []issuedCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []issuedCode
	for _, c := range f.issued {
		if c.Purpose == purpose {
			out = append(out, c)
		}
	}
	return out
}

type memEvents struct {
	mu     sync.Mutex
	events []string
}

func (m *memEvents) Publish(_ context.Context, event string, _ map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

type plainHash struct{}

func (plainHash) Hash(plaintext string) ([]byte, error) { return []byte("h:" + plaintext), nil }

func (plainHash) Verify(hashed, plaintext string) bool { return hashed == "h:"+plaintext }

type fakeJWT struct{ err error }

func (f fakeJWT) Generate(uid uint64, email string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token-for-" + email, nil
}

func (fakeJWT) Verify(string) (jwt.Claims, error) { return jwt.Claims{}, jwt.ErrInvalidToken }

type passIdem struct{}

func (passIdem) Acquire(context.Context, string, time.Duration) (idempotency.State, error) {
	return idempotency.StateNone, nil
}

func (passIdem) MarkCompleted(context.Context, string, time.Duration) error { return nil }

func (passIdem) MarkFailed(context.Context, string, time.Duration) error { return nil }

func (passIdem) Exec(ctx context.Context, _ string, fn func(context.Context) error, _ ...idempotency.Option) error {
	return fn(ctx)
}

type stubClock struct{ now time.Time }

func (c stubClock) Now() time.Time { return c.now }

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

type fixture struct {
	uc     *Usecase
	users  *memUsers
	otp    *fakeOtp
	events *memEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("NewV10Validator() error = %v", err)
	}

	users := newMemUsers()
	fOtp := &fakeOtp{}
	events := &memEvents{}

	uc := New(Dependency{
		Validator:    v,
		Hash:         plainHash{},
		JWT:          fakeJWT{},
		Clock:        stubClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		UID:          &seqID{},
		Tele:         instrument.NewNoop(),
		Users:        users,
		Otp:          fOtp,
		Events:       events,
		Idem:         passIdem{},
		AvatarBucket: "avatars",
		AvatarURLTTL: 15 * time.Minute,
	})

	return &fixture{uc: uc, users: users, otp: fOtp, events: events}
}

func validSignup() SignupInput {
	return SignupInput{
		FirstName:       "Ava",
		LastName:        "Stone",
		City:            "Lisbon",
		Email:           "ava@example.com",
		Phone:           "+14155550100",
		Password:        "Sup3r$ecret",
		ConfirmPassword: "Sup3r$ecret",
	}
}

func (f *fixture) signupAndVerify(t *testing.T) entity.User {
	t.Helper()
	ctx := context.Background()

	if err := f.uc.Signup(ctx, validSignup()); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	err := f.uc.VerifyAccount(ctx, VerifyAccountInput{
		Email:     "ava@example.com",
		Phone:     "+14155550100",
		EmailCode: "123456",
		PhoneCode: "123456",
	})
	if err != nil {
		t.Fatalf("VerifyAccount() error = %v", err)
	}

	user, err := f.users.FindByEmail(ctx, "ava@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	return *user
}

func authCtx(userID uint64, _ string) context.Context {
	return jwt.SetAuth(context.Background(), jwt.Claims{UserID: userID})
}

func assertCode(t *testing.T, err error, want goerror.Code) {
	t.Helper()
	var ge *goerror.Error
	if !errors.As(err, &ge) {
		t.Fatalf("error = %v, want *goerror.Error", err)
	}
	if ge.Code() != want {
		t.Fatalf("error code = %v, want %v", ge.Code(), want)
	}
}

func TestSignupIssuesBothVerificationCodes(t *testing.T) {
	f := newFixture(t)

	if err := f.uc.Signup(context.Background(), validSignup()); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	if got := f.otp.issuedFor(entity.PurposeEmailVerification); len(got) != 1 || got[0].Identifier != "ava@example.com" || got[0].Channel != entity.ChannelEmail {
		t.Fatalf("email verification issues = %+v", got)
	}
	if got := f.otp.issuedFor(entity.PurposePhoneVerification); len(got) != 1 || got[0].Identifier != "+14155550100" || got[0].Channel != entity.ChannelSMS {
		t.Fatalf("phone verification issues = %+v", got)
	}

	user, err := f.users.FindByEmail(context.Background(), "ava@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if user.EmailVerified || user.PhoneVerified {
		t.Fatalf("fresh signup should be unverified, got %+v", user)
	}
	if user.PasswordHash == "Sup3r$ecret" {
		t.Fatal("password stored in plaintext")
	}
}

func TestSignupPasswordMismatch(t *testing.T) {
	f := newFixture(t)

	in := validSignup()
	in.ConfirmPassword = "Different1$"
	err := f.uc.Signup(context.Background(), in)
	assertCode(t, err, goerror.CodeInvalidInput)
}

func TestSignupWeakPasswordRejectedBeforeAnyWrite(t *testing.T) {
	f := newFixture(t)

	in := validSignup()
	in.Password = "weak"
	in.ConfirmPassword = "weak"
	err := f.uc.Signup(context.Background(), in)
	assertCode(t, err, goerror.CodeInvalidInput)

	if _, err := f.users.FindByEmail(context.Background(), "ava@example.com"); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("user should not exist, err = %v", err)
	}
	if len(f.otp.issued) != 0 {
		t.Fatalf("no codes should be issued, got %d", len(f.otp.issued))
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.uc.Signup(ctx, validSignup()); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	in := validSignup()
	in.Phone = "+14155550199"
	err := f.uc.Signup(ctx, in)
	assertCode(t, err, goerror.CodeConflict)
}

func TestSignupDuplicatePhone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.uc.Signup(ctx, validSignup()); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	in := validSignup()
	in.Email = "other@example.com"
	err := f.uc.Signup(ctx, in)
	assertCode(t, err, goerror.CodeConflict)
}

func TestVerifyAccountFlipsBothFlags(t *testing.T) {
	f := newFixture(t)

	user := f.signupAndVerify(t)
	if !user.EmailVerified || !user.PhoneVerified {
		t.Fatalf("both flags should be set, got %+v", user)
	}

	found := false
	for _, e := range f.events.events {
		if e == entity.EventUserVerified {
			found = true
		}
	}
	if !found {
		t.Fatalf("verified event not published, events = %v", f.events.events)
	}
}

func TestVerifyAccountPhoneMismatchIsGeneric(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.uc.Signup(ctx, validSignup()); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	err := f.uc.VerifyAccount(ctx, VerifyAccountInput{
		Email:     "ava@example.com",
		Phone:     "+14155550999",
		EmailCode: "123456",
		PhoneCode: "123456",
	})
	assertCode(t, err, goerror.CodeInvalidInput)
	if !strings.Contains(err.Error(), "Verification failed") {
		t.Fatalf("error = %v, want generic verification failure", err)
	}
}

func TestVerifyAccountBadCodeLeavesFlagsDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.uc.Signup(ctx, validSignup()); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	err := f.uc.VerifyAccount(ctx, VerifyAccountInput{
		Email:     "ava@example.com",
		Phone:     "+14155550100",
		EmailCode: "123456",
		PhoneCode: "000000",
	})
	assertCode(t, err, goerror.CodeInvalidInput)

	user, err2 := f.users.FindByEmail(ctx, "ava@example.com")
	if err2 != nil {
		t.Fatalf("FindByEmail() error = %v", err2)
	}
	if user.EmailVerified || user.PhoneVerified {
		t.Fatalf("flags must stay down on failed verification, got %+v", user)
	}
}

func TestLoginUnknownEmailAndWrongPasswordLookIdentical(t *testing.T) {
	f := newFixture(t)
	f.signupAndVerify(t)
	ctx := context.Background()

	_, errUnknown := f.uc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "Sup3r$ecret"})
	_, errWrong := f.uc.Login(ctx, LoginInput{Email: "ava@example.com", Password: "WrongPass1$"})

	assertCode(t, errUnknown, goerror.CodeUnauthorized)
	assertCode(t, errWrong, goerror.CodeUnauthorized)
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("responses differ: %q vs %q", errUnknown, errWrong)
	}
}

func TestLoginUnverifiedAccountForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.uc.Signup(ctx, validSignup()); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	_, err := f.uc.Login(ctx, LoginInput{Email: "ava@example.com", Password: "Sup3r$ecret"})
	assertCode(t, err, goerror.CodeForbidden)
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	f.signupAndVerify(t)

	out, err := f.uc.Login(context.Background(), LoginInput{Email: "ava@example.com", Password: "Sup3r$ecret"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if out.AccessToken == "" {
		t.Fatal("access token is empty")
	}
	if out.User.Email != "ava@example.com" {
		t.Fatalf("user email = %q", out.User.Email)
	}
}

func TestPhoneLoginSendRequiresVerifiedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.uc.Signup(ctx, validSignup()); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	err := f.uc.PhoneLoginSend(ctx, PhoneLoginSendInput{Phone: "+14155550100"})
	assertCode(t, err, goerror.CodeForbidden)
}

func TestPhoneLoginRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.signupAndVerify(t)
	ctx := context.Background()

	if err := f.uc.PhoneLoginSend(ctx, PhoneLoginSendInput{Phone: "+14155550100"}); err != nil {
		t.Fatalf("PhoneLoginSend() error = %v", err)
	}
	if got := f.otp.issuedFor(entity.PurposePhoneLogin); len(got) != 1 {
		t.Fatalf("phone login issues = %+v", got)
	}

	out, err := f.uc.PhoneLoginVerify(ctx, PhoneLoginVerifyInput{Phone: "+14155550100", Code: "123456"})
	if err != nil {
		t.Fatalf("PhoneLoginVerify() error = %v", err)
	}
	if out.AccessToken == "" {
		t.Fatal("access token is empty")
	}
}

func TestPhoneLoginSendUnknownPhone(t *testing.T) {
	f := newFixture(t)

	err := f.uc.PhoneLoginSend(context.Background(), PhoneLoginSendInput{Phone: "+14155550111"})
	assertCode(t, err, goerror.CodeNotFound)
}

func TestPasswordChange(t *testing.T) {
	f := newFixture(t)
	user := f.signupAndVerify(t)
	ctx := authCtx(user.ID, user.Email)

	err := f.uc.PasswordChange(ctx, PasswordChangeInput{OldPassword: "WrongPass1$", NewPassword: "N3w$ecret!!"})
	assertCode(t, err, goerror.CodeUnauthorized)

	err = f.uc.PasswordChange(ctx, PasswordChangeInput{OldPassword: "Sup3r$ecret", NewPassword: "Sup3r$ecret"})
	assertCode(t, err, goerror.CodeInvalidInput)

	if err := f.uc.PasswordChange(ctx, PasswordChangeInput{OldPassword: "Sup3r$ecret", NewPassword: "N3w$ecret!!"}); err != nil {
		t.Fatalf("PasswordChange() error = %v", err)
	}

	if _, err := f.uc.Login(context.Background(), LoginInput{Email: user.Email, Password: "N3w$ecret!!"}); err != nil {
		t.Fatalf("Login() with new password error = %v", err)
	}
}

func TestPasswordChangeUnauthenticated(t *testing.T) {
	f := newFixture(t)

	err := f.uc.PasswordChange(context.Background(), PasswordChangeInput{OldPassword: "a1A$aaaa", NewPassword: "b1B$bbbb"})
	assertCode(t, err, goerror.CodeUnauthorized)
}

func TestPasswordForgotUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)

	if err := f.uc.PasswordForgot(context.Background(), PasswordForgotInput{Email: "ghost@example.com"}); err != nil {
		t.Fatalf("PasswordForgot() error = %v", err)
	}
	if len(f.otp.issued) != 0 {
		t.Fatalf("no code should be issued for unknown email, got %d", len(f.otp.issued))
	}
}

func TestPasswordResetRoundTrip(t *testing.T) {
	f := newFixture(t)
	user := f.signupAndVerify(t)
	ctx := context.Background()

	if err := f.uc.PasswordForgot(ctx, PasswordForgotInput{Email: user.Email}); err != nil {
		t.Fatalf("PasswordForgot() error = %v", err)
	}
	if got := f.otp.issuedFor(entity.PurposeForgotPassword); len(got) != 1 || got[0].Channel != entity.ChannelEmail {
		t.Fatalf("forgot password issues = %+v", got)
	}

	err := f.uc.PasswordReset(ctx, PasswordResetInput{
		Email:           user.Email,
		Code:            "000000",
		NewPassword:     "R3set$pass!",
		ConfirmPassword: "R3set$pass!",
	})
	assertCode(t, err, goerror.CodeInvalidInput)

	err = f.uc.PasswordReset(ctx, PasswordResetInput{
		Email:           user.Email,
		Code:            "123456",
		NewPassword:     "R3set$pass!",
		ConfirmPassword: "R3set$pass!",
	})
	if err != nil {
		t.Fatalf("PasswordReset() error = %v", err)
	}

	if _, err := f.uc.Login(ctx, LoginInput{Email: user.Email, Password: "R3set$pass!"}); err != nil {
		t.Fatalf("Login() with reset password error = %v", err)
	}
}

func TestProfileUpdateEmailChangeDropsFlagAndReissues(t *testing.T) {
	f := newFixture(t)
	user := f.signupAndVerify(t)
	ctx := authCtx(user.ID, user.Email)

	err := f.uc.ProfileUpdate(ctx, ProfileUpdateInput{Email: "new@example.com"})
	if err != nil {
		t.Fatalf("ProfileUpdate() error = %v", err)
	}

	updated, err := f.users.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if updated.Email != "new@example.com" {
		t.Fatalf("email = %q", updated.Email)
	}
	if updated.EmailVerified {
		t.Fatal("email flag should drop on change")
	}
	if !updated.PhoneVerified {
		t.Fatal("phone flag should survive an email change")
	}

	issues := f.otp.issuedFor(entity.PurposeEmailVerification)
	if len(issues) != 2 || issues[1].Identifier != "new@example.com" {
		t.Fatalf("email verification issues = %+v", issues)
	}

	// Half-verified accounts cannot log in.
	_, err = f.uc.Login(context.Background(), LoginInput{Email: "new@example.com", Password: "Sup3r$ecret"})
	assertCode(t, err, goerror.CodeForbidden)
}

func TestProfileUpdateEmailTaken(t *testing.T) {
	f := newFixture(t)
	user := f.signupAndVerify(t)

	other := validSignup()
	other.Email = "taken@example.com"
	other.Phone = "+14155550101"
	if err := f.uc.Signup(context.Background(), other); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	err := f.uc.ProfileUpdate(authCtx(user.ID, user.Email), ProfileUpdateInput{Email: "taken@example.com"})
	assertCode(t, err, goerror.CodeConflict)
}

func TestProfileUpdateNamesOnly(t *testing.T) {
	f := newFixture(t)
	user := f.signupAndVerify(t)

	err := f.uc.ProfileUpdate(authCtx(user.ID, user.Email), ProfileUpdateInput{FirstName: "Avery", City: "Porto"})
	if err != nil {
		t.Fatalf("ProfileUpdate() error = %v", err)
	}

	updated, _ := f.users.FindByID(context.Background(), user.ID)
	if updated.FirstName != "Avery" || updated.LastName != "Stone" || updated.City != "Porto" {
		t.Fatalf("profile = %+v", updated)
	}
	if !updated.EmailVerified || !updated.PhoneVerified {
		t.Fatal("name changes must not touch verification flags")
	}
}

func TestProfileReturnsAccount(t *testing.T) {
	f := newFixture(t)
	user := f.signupAndVerify(t)

	got, err := f.uc.Profile(authCtx(user.ID, user.Email))
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if got.Email != user.Email || got.FirstName != "Ava" {
		t.Fatalf("profile = %+v", got)
	}
}
