package authflow

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/membit-bot/botctl/internal/client"
)

type fakeAPI struct {
	setupCalls  int
	verifyCalls int
	loginCalls  int

	setupErr  error
	verifyErr error
	loginErr  error

	gotCode string
}

func (f *fakeAPI) Setup(_ context.Context, _, _ string) (*client.Enrollment, error) {
	f.setupCalls++
	if f.setupErr != nil {
		return nil, f.setupErr
	}

	return &client.Enrollment{TOTPSecret: "JBSWY3DPEHPK3PXP", BackupCodes: []string{"A1B2C3D4"}}, nil
}

func (f *fakeAPI) VerifySetup(_ context.Context, code string) error {
	f.verifyCalls++
	f.gotCode = code

	return f.verifyErr
}

func (f *fakeAPI) Login(_ context.Context, _, _, code string) error {
	f.loginCalls++
	f.gotCode = code

	return f.loginErr
}

func validationMessage(t *testing.T, err error) string {
	t.Helper()

	var v *client.ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("error = %v (%T), want *client.ValidationError", err, err)
	}

	return v.Message
}

func TestWizard_SubmitCredentialsValidation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		confirm  string
		wantMsg  string
	}{
		{name: "short username", username: "ab", password: "password1", confirm: "password1", wantMsg: MsgUsernameTooShort},
		{name: "short password", username: "admin", password: "short", confirm: "short", wantMsg: MsgPasswordTooShort},
		{name: "mismatch", username: "admin", password: "password1", confirm: "password2", wantMsg: MsgPasswordMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			w := NewWizard(api)

			err := w.SubmitCredentials(context.Background(), tt.username, tt.password, tt.confirm)
			if got := validationMessage(t, err); got != tt.wantMsg {
				t.Errorf("message = %q, want %q", got, tt.wantMsg)
			}

			if api.setupCalls != 0 {
				t.Errorf("Setup calls = %d, want 0", api.setupCalls)
			}

			if w.Step() != StepCredentials {
				t.Errorf("Step() = %v, want credentials", w.Step())
			}
		})
	}
}

func TestWizard_HappyPath(t *testing.T) {
	api := &fakeAPI{}
	w := NewWizard(api)
	ctx := context.Background()

	if err := w.SubmitCredentials(ctx, "admin", "password1", "password1"); err != nil {
		t.Fatalf("SubmitCredentials() error = %v", err)
	}

	if w.Step() != StepEnrollment || w.Enrollment() == nil || w.Username() != "admin" {
		t.Fatalf("after credentials: step=%v enrollment=%v", w.Step(), w.Enrollment())
	}

	if err := w.Acknowledge(); err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}

	if err := w.Back(); err != nil {
		t.Fatalf("Back() error = %v", err)
	}

	if w.Step() != StepEnrollment {
		t.Fatalf("Step() after Back = %v, want enrollment", w.Step())
	}

	if err := w.Acknowledge(); err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}

	if err := w.Verify(ctx, "123 456"); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if api.gotCode != "123456" {
		t.Errorf("code sent = %q, want %q", api.gotCode, "123456")
	}

	if w.Step() != StepComplete {
		t.Errorf("Step() = %v, want complete", w.Step())
	}
}

func TestWizard_NoSkippingSteps(t *testing.T) {
	ctx := context.Background()
	w := NewWizard(&fakeAPI{})

	if err := w.Acknowledge(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Acknowledge() from credentials error = %v, want ErrInvalidTransition", err)
	}

	if err := w.Verify(ctx, "123456"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Verify() from credentials error = %v, want ErrInvalidTransition", err)
	}

	if err := w.Back(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Back() from credentials error = %v, want ErrInvalidTransition", err)
	}

	if err := w.SubmitCredentials(ctx, "admin", "password1", "password1"); err != nil {
		t.Fatalf("SubmitCredentials() error = %v", err)
	}

	if err := w.Verify(ctx, "123456"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Verify() from enrollment error = %v, want ErrInvalidTransition", err)
	}

	if err := w.SubmitCredentials(ctx, "admin", "password1", "password1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SubmitCredentials() twice error = %v, want ErrInvalidTransition", err)
	}
}

func TestWizard_VerifyFailureKeepsCode(t *testing.T) {
	api := &fakeAPI{verifyErr: &client.RejectedError{Op: "verify setup", Message: "Invalid verification code"}}
	w := NewWizard(api)
	ctx := context.Background()

	_ = w.SubmitCredentials(ctx, "admin", "password1", "password1")
	_ = w.Acknowledge()

	if err := w.Verify(ctx, "654321"); err == nil {
		t.Fatal("Verify() error = nil, want rejection")
	}

	if w.Step() != StepVerification {
		t.Errorf("Step() = %v, want verification", w.Step())
	}

	if w.Code.Value() != "654321" {
		t.Errorf("Code = %q, want it kept", w.Code.Value())
	}
}

func TestWizard_VerifyShortCodeNoRequest(t *testing.T) {
	api := &fakeAPI{}
	w := NewWizard(api)
	ctx := context.Background()

	_ = w.SubmitCredentials(ctx, "admin", "password1", "password1")
	_ = w.Acknowledge()

	if got := validationMessage(t, w.Verify(ctx, "12345")); got != MsgCodeLength {
		t.Errorf("message = %q, want %q", got, MsgCodeLength)
	}

	if api.verifyCalls != 0 {
		t.Errorf("VerifySetup calls = %d, want 0", api.verifyCalls)
	}
}

func TestLoginForm_Validation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		code     string
		wantMsg  string
	}{
		{name: "missing username", password: "pw", code: "123456", wantMsg: MsgFieldsRequired},
		{name: "missing code", username: "admin", password: "pw", wantMsg: MsgFieldsRequired},
		{name: "short code", username: "admin", password: "pw", code: "12345", wantMsg: MsgCodeLength},
		{name: "long code", username: "admin", password: "pw", code: "1234567", wantMsg: MsgCodeLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			f := NewLoginForm(api)
			f.Username = tt.username
			f.Password = tt.password
			f.Code.Set(tt.code)

			if got := validationMessage(t, f.Submit(context.Background())); got != tt.wantMsg {
				t.Errorf("message = %q, want %q", got, tt.wantMsg)
			}

			if api.loginCalls != 0 {
				t.Errorf("Login calls = %d, want 0", api.loginCalls)
			}
		})
	}
}

func TestLoginForm_RejectionClearsOnlyCode(t *testing.T) {
	api := &fakeAPI{loginErr: &client.RejectedError{Op: "login", Message: "Invalid credentials"}}
	f := NewLoginForm(api)
	f.Username = "admin"
	f.Password = "password1"
	f.Code.Set("123456")

	err := f.Submit(context.Background())
	if client.UserMessage(err) != "Invalid credentials" {
		t.Errorf("UserMessage() = %q", client.UserMessage(err))
	}

	if f.Code.Value() != "" {
		t.Errorf("Code = %q, want cleared", f.Code.Value())
	}

	if f.Username != "admin" || f.Password != "password1" {
		t.Errorf("username/password changed: %q / %q", f.Username, f.Password)
	}
}

func TestLoginForm_BareServerRejectionClearsCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false}`))
	}))
	defer server.Close()

	f := NewLoginForm(client.New(server.URL))
	f.Username = "admin"
	f.Password = "password1"
	f.Code.Set("123456")

	err := f.Submit(context.Background())
	if client.UserMessage(err) != "Login failed" {
		t.Errorf("UserMessage() = %q, want the login fallback", client.UserMessage(err))
	}

	if f.Code.Value() != "" {
		t.Errorf("Code = %q, want cleared", f.Code.Value())
	}

	if f.Username != "admin" || f.Password != "password1" {
		t.Errorf("username/password changed: %q / %q", f.Username, f.Password)
	}
}

func TestLoginForm_TransportErrorKeepsFields(t *testing.T) {
	api := &fakeAPI{loginErr: &client.TransportError{Op: "login", Err: errors.New("refused")}}
	f := NewLoginForm(api)
	f.Username = "admin"
	f.Password = "password1"
	f.Code.Set("123456")

	err := f.Submit(context.Background())
	if client.UserMessage(err) != client.NetworkErrorMessage {
		t.Errorf("UserMessage() = %q, want network message", client.UserMessage(err))
	}

	if f.Code.Value() != "123456" {
		t.Errorf("Code = %q, want kept", f.Code.Value())
	}
}

func TestLoginForm_OnSuccess(t *testing.T) {
	called := false
	f := NewLoginForm(&fakeAPI{})
	f.Username = "admin"
	f.Password = "password1"
	f.Code.Set("123456")
	f.OnSuccess = func() error {
		called = true
		return nil
	}

	if err := f.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if !called {
		t.Error("OnSuccess was not called")
	}
}

func TestCodeField_Type(t *testing.T) {
	var f CodeField

	f.Type("12a")
	f.Type("-3 4")
	f.Type("56789")

	if f.Value() != "123456" {
		t.Errorf("Value() = %q, want %q", f.Value(), "123456")
	}

	if !f.Complete() {
		t.Error("Complete() = false, want true")
	}

	f.Backspace()

	if f.Value() != "12345" {
		t.Errorf("Value() after Backspace = %q, want %q", f.Value(), "12345")
	}
}

func TestGenerateCode(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	code, err := GenerateCode(strings.ToLower(secret), now)
	if err != nil {
		t.Fatalf("GenerateCode() error = %v", err)
	}

	if len(code) != CodeLength || StripNonDigits(code) != code {
		t.Fatalf("GenerateCode() = %q, want 6 digits", code)
	}

	want, _ := totp.GenerateCode(secret, now)
	if code != want {
		t.Errorf("GenerateCode() = %q, want %q", code, want)
	}
}

func TestBackupCodesText(t *testing.T) {
	generated := time.Date(2026, 3, 9, 14, 5, 7, 0, time.UTC)

	got := BackupCodesText("admin", []string{"AAAA1111", "BBBB2222"}, generated)
	want := "Twitter Bot - Backup Codes\n\n" +
		"Username: admin\n" +
		"Generated: 3/9/2026, 2:05:07 PM\n\n" +
		"AAAA1111\nBBBB2222\n\n" +
		"Keep these codes in a safe place. Each code can only be used once."

	if got != want {
		t.Errorf("BackupCodesText() =\n%s\nwant\n%s", got, want)
	}
}
