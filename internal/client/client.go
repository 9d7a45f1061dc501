// Package client provides the API client for the bot backend.
//
// The client keeps the backend's cookie session and provides methods for:
//   - Resolving the authentication/setup status
//   - First-run setup, two-factor verification, login and logout
//   - Reading and writing bot configuration, API keys and the prompt template
//   - Point-in-time status and log snapshots
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	neturl "net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/membit-bot/botctl/internal/buildinfo"
)

const (
	// DefaultBaseURL is the default backend endpoint.
	DefaultBaseURL = "http://localhost:5000"
	// SessionCookieName is the name of the backend's session cookie.
	SessionCookieName = "session"
)

// Client is the bot backend API client.
type Client struct {
	baseURL    string
	base       *neturl.URL
	jar        http.CookieJar
	httpClient *http.Client
}

// New creates a new API client for the backend at baseURL.
func New(baseURL string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")

	base, err := neturl.Parse(baseURL)
	if err != nil || base.Host == "" {
		base, _ = neturl.Parse(DefaultBaseURL)
	}

	// cookiejar.New only fails for a non-nil PublicSuffixList.
	jar, _ := cookiejar.New(nil)

	return &Client{
		baseURL: baseURL,
		base:    base,
		jar:     jar,
		// No client-side timeout: requests end when the caller's context
		// does, and retrying is left to the operator.
		httpClient: &http.Client{
			Jar:       jar,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SessionCookie returns the current session cookie value, or "" when there is none.
func (c *Client) SessionCookie() string {
	for _, cookie := range c.jar.Cookies(c.base) {
		if cookie.Name == SessionCookieName {
			return cookie.Value
		}
	}

	return ""
}

// SetSessionCookie restores a previously persisted session cookie.
func (c *Client) SetSessionCookie(value string) {
	if value == "" {
		return
	}

	c.jar.SetCookies(c.base, []*http.Cookie{{
		Name:  SessionCookieName,
		Value: value,
		Path:  "/",
	}})
}

// Cookies returns the cookies the client would send to the backend.
// The live channel uses them to authenticate its websocket handshake.
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.base)
}

// request describes one JSON round-trip to the backend.
type request struct {
	op     string
	method string
	path   string
	body   any
	out    any

	// authForm marks endpoints where 401/400 means "credentials rejected"
	// rather than "session expired".
	authForm bool
	// fallback is shown when the server rejects without a reason.
	fallback string
}

// actionResponse is the {success, error} envelope used by write endpoints.
type actionResponse struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	if body != nil && body != http.NoBody {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// do performs r and decodes the response into r.out, mapping failures onto
// the client error taxonomy.
func (c *Client) do(ctx context.Context, r request) error {
	raw, err := c.roundTrip(ctx, r)
	if err != nil {
		return err
	}

	return decodeInto(r, raw)
}

// act performs a write against an endpoint that answers with the
// {success, error} envelope. fallback is used when the server rejects the
// request without a reason.
func (c *Client) act(ctx context.Context, r request, fallback string) error {
	r.fallback = fallback

	raw, err := c.roundTrip(ctx, r)
	if err != nil {
		return err
	}

	var env actionResponse
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("failed to parse %s response: %w", r.op, err)
		}
	}

	if env.Success != nil && !*env.Success {
		msg := env.Error
		if msg == "" {
			msg = fallback
		}

		return &RejectedError{Op: r.op, Message: msg, StatusCode: http.StatusOK}
	}

	return decodeInto(r, raw)
}

func (c *Client) roundTrip(ctx context.Context, r request) ([]byte, error) {
	var body io.Reader = http.NoBody

	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		body = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, r.method, r.path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: r.op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &TransportError{Op: r.op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusFailure(r, resp.StatusCode, raw)
	}

	return raw, nil
}

func decodeInto(r request, raw []byte) error {
	if r.out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, r.out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", r.op, err)
	}

	return nil
}

func statusFailure(r request, statusCode int, raw []byte) error {
	var env actionResponse
	_ = json.Unmarshal(raw, &env)

	if statusCode == http.StatusUnauthorized && !r.authForm {
		return &SessionError{Op: r.op, Message: env.Error}
	}

	if env.Error != "" {
		return &RejectedError{Op: r.op, Message: env.Error, StatusCode: statusCode}
	}

	// {"success": false} is a rejection whatever the status code.
	if env.Success != nil && !*env.Success && r.fallback != "" {
		return &RejectedError{Op: r.op, Message: r.fallback, StatusCode: statusCode}
	}

	return unexpectedStatus(r.op, statusCode, bytes.NewReader(raw))
}

func unexpectedStatus(operation string, statusCode int, body io.Reader) error {
	snippet, _ := io.ReadAll(io.LimitReader(body, 512))

	return &StatusError{
		Op:         operation,
		StatusCode: statusCode,
		Body:       strings.TrimSpace(string(snippet)),
	}
}

// IsUnauthorized reports whether err means the session is missing or expired.
func IsUnauthorized(err error) bool {
	var sessionErr *SessionError
	return errors.As(err, &sessionErr)
}
