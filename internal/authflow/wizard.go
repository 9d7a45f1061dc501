package authflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/membit-bot/botctl/internal/client"
)

// Setup validation messages.
const (
	MsgUsernameTooShort = "Username must be at least 3 characters"
	MsgPasswordTooShort = "Password must be at least 8 characters"
	MsgPasswordMismatch = "Passwords do not match"
	MsgCodeLength       = "Code must be 6 digits"
)

const (
	minUsernameLength = 3
	minPasswordLength = 8
)

// ErrInvalidTransition is returned when a wizard action is called from a
// step that does not allow it.
var ErrInvalidTransition = errors.New("invalid setup step transition")

// Step is a wizard state.
type Step int

// Wizard steps in order.
const (
	StepCredentials Step = iota
	StepEnrollment
	StepVerification
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepCredentials:
		return "credentials"
	case StepEnrollment:
		return "enrollment"
	case StepVerification:
		return "verification"
	case StepComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// SetupAPI is the part of the backend the wizard talks to.
type SetupAPI interface {
	Setup(ctx context.Context, username, password string) (*client.Enrollment, error)
	VerifySetup(ctx context.Context, code string) error
}

// Wizard walks Credentials → Enrollment → Verification → Complete.
type Wizard struct {
	api        SetupAPI
	step       Step
	username   string
	enrollment *client.Enrollment

	// Code is the verification code field. It keeps its value on failure.
	Code CodeField
}

// NewWizard returns a wizard at the credentials step.
func NewWizard(api SetupAPI) *Wizard {
	return &Wizard{api: api, step: StepCredentials}
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	return w.step
}

// Username returns the username accepted by the server.
func (w *Wizard) Username() string {
	return w.username
}

// Enrollment returns the server-issued enrollment, or nil before it exists.
func (w *Wizard) Enrollment() *client.Enrollment {
	return w.enrollment
}

// SubmitCredentials validates and submits the account credentials.
// Validation failures never reach the server.
func (w *Wizard) SubmitCredentials(ctx context.Context, username, password, confirm string) error {
	if w.step != StepCredentials {
		return fmt.Errorf("%w: submit credentials from %s", ErrInvalidTransition, w.step)
	}

	if err := ValidateCredentials(username, password, confirm); err != nil {
		return err
	}

	enrollment, err := w.api.Setup(ctx, username, password)
	if err != nil {
		return err
	}

	w.username = username
	w.enrollment = enrollment
	w.step = StepEnrollment

	return nil
}

// Acknowledge confirms the backup codes were saved.
func (w *Wizard) Acknowledge() error {
	if w.step != StepEnrollment {
		return fmt.Errorf("%w: acknowledge from %s", ErrInvalidTransition, w.step)
	}

	w.step = StepVerification

	return nil
}

// Back returns from verification to the enrollment details.
func (w *Wizard) Back() error {
	if w.step != StepVerification {
		return fmt.Errorf("%w: back from %s", ErrInvalidTransition, w.step)
	}

	w.step = StepEnrollment

	return nil
}

// Verify submits code to finish enrollment. On failure the wizard stays at
// verification and the code is kept.
func (w *Wizard) Verify(ctx context.Context, code string) error {
	if w.step != StepVerification {
		return fmt.Errorf("%w: verify from %s", ErrInvalidTransition, w.step)
	}

	w.Code.Set(code)

	if !w.Code.Complete() {
		return &client.ValidationError{Field: "code", Message: MsgCodeLength}
	}

	if err := w.api.VerifySetup(ctx, w.Code.Value()); err != nil {
		return err
	}

	w.step = StepComplete

	return nil
}

// ValidateCredentials checks setup credentials in the order the operator
// sees them.
func ValidateCredentials(username, password, confirm string) error {
	switch {
	case len([]rune(username)) < minUsernameLength:
		return &client.ValidationError{Field: "username", Message: MsgUsernameTooShort}
	case len([]rune(password)) < minPasswordLength:
		return &client.ValidationError{Field: "password", Message: MsgPasswordTooShort}
	case password != confirm:
		return &client.ValidationError{Field: "confirm", Message: MsgPasswordMismatch}
	default:
		return nil
	}
}
