package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// Enrollment is what the server issues when the operator account is created.
type Enrollment struct {
	QRCode      string   `json:"qr_code"`
	TOTPSecret  string   `json:"totp_secret"`
	BackupCodes []string `json:"backup_codes"`
}

// QRCodePNG decodes the enrollment QR code image.
// The server may send either raw base64 or a data: URL.
func (e *Enrollment) QRCodePNG() ([]byte, error) {
	data := e.QRCode
	if i := strings.Index(data, ","); strings.HasPrefix(data, "data:") && i >= 0 {
		data = data[i+1:]
	}

	png, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode QR code: %w", err)
	}

	return png, nil
}

// AuthStatus returns the current session. It issues exactly one request.
func (c *Client) AuthStatus(ctx context.Context) (*Session, error) {
	var session Session

	err := c.do(ctx, request{
		op:     "auth status",
		method: http.MethodGet,
		path:   "/api/auth/status",
		out:    &session,
	})
	if err != nil {
		return nil, err
	}

	session = session.Normalize()

	return &session, nil
}

// Setup creates the operator account and starts two-factor enrollment.
func (c *Client) Setup(ctx context.Context, username, password string) (*Enrollment, error) {
	var enrollment Enrollment

	err := c.act(ctx, request{
		op:       "setup",
		method:   http.MethodPost,
		path:     "/api/auth/setup",
		body:     map[string]string{"username": username, "password": password},
		out:      &enrollment,
		authForm: true,
	}, "Setup failed")
	if err != nil {
		return nil, err
	}

	return &enrollment, nil
}

// VerifySetup confirms enrollment with a code from the authenticator app.
func (c *Client) VerifySetup(ctx context.Context, code string) error {
	return c.act(ctx, request{
		op:       "verify setup",
		method:   http.MethodPost,
		path:     "/api/auth/verify-setup",
		body:     map[string]string{"totp_code": code},
		authForm: true,
	}, "Invalid code")
}

// Login establishes a session. On success the session cookie is held by the
// client and can be read with SessionCookie.
func (c *Client) Login(ctx context.Context, username, password, code string) error {
	return c.act(ctx, request{
		op:     "login",
		method: http.MethodPost,
		path:   "/api/auth/login",
		body: map[string]string{
			"username":  username,
			"password":  password,
			"totp_code": code,
		},
		authForm: true,
	}, "Login failed")
}

// Logout ends the session on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{
		op:       "logout",
		method:   http.MethodPost,
		path:     "/api/auth/logout",
		authForm: true,
	})
}
