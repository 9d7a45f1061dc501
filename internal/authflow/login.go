package authflow

import (
	"context"
	"errors"

	"github.com/membit-bot/botctl/internal/client"
)

// MsgFieldsRequired is shown when any login field is empty.
const MsgFieldsRequired = "All fields are required"

// LoginAPI is the part of the backend the login form talks to.
type LoginAPI interface {
	Login(ctx context.Context, username, password, code string) error
}

// LoginForm is the single-step login form.
type LoginForm struct {
	api LoginAPI

	Username string
	Password string
	Code     CodeField

	// OnSuccess runs after the server accepts the login, typically to
	// persist the session cookie.
	OnSuccess func() error
}

// NewLoginForm returns an empty form.
func NewLoginForm(api LoginAPI) *LoginForm {
	return &LoginForm{api: api}
}

// Validate checks the form without contacting the server.
func (f *LoginForm) Validate() error {
	if f.Username == "" || f.Password == "" || f.Code.Value() == "" {
		return &client.ValidationError{Message: MsgFieldsRequired}
	}

	if !f.Code.Complete() {
		return &client.ValidationError{Field: "code", Message: MsgCodeLength}
	}

	return nil
}

// Submit validates and sends the form. A server rejection clears only the
// code; a transport failure keeps every field.
func (f *LoginForm) Submit(ctx context.Context) error {
	if err := f.Validate(); err != nil {
		return err
	}

	err := f.api.Login(ctx, f.Username, f.Password, f.Code.Value())
	if err != nil {
		var rejected *client.RejectedError
		if errors.As(err, &rejected) {
			f.Code.Clear()
		}

		return err
	}

	if f.OnSuccess != nil {
		return f.OnSuccess()
	}

	return nil
}
