// Package doctor runs diagnostic checks against the configured bot backend.
//
// Checks run in order and later checks can depend on what earlier ones
// learned: the credential and live channel checks are skipped when there is
// no logged-in session.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/membit-bot/botctl/internal/auth"
	"github.com/membit-bot/botctl/internal/buildinfo"
	"github.com/membit-bot/botctl/internal/client"
	"github.com/membit-bot/botctl/internal/session"
)

// Status represents the result of a diagnostic check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical failure.
	StatusFail
)

// Result holds the outcome of a single check.
type Result struct {
	Name    string `json:"name"`
	Status  Status `json:"-"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Check is a diagnostic check function.
type Check func(ctx context.Context) Result

// Backend is the part of the HTTP client the checks call.
type Backend interface {
	AuthStatus(ctx context.Context) (*client.Session, error)
	GetKeys(ctx context.Context) (*client.Credentials, error)
}

// Options wire the checks to the environment.
type Options struct {
	ServerURL string
	Backend   Backend
	// StoredSession reports where the session cookie was loaded from.
	StoredSession func() auth.Source
	// DialLive opens and closes one live channel connection.
	DialLive func(ctx context.Context) error
}

// Runner executes diagnostic checks.
type Runner struct {
	opts   Options
	checks []namedCheck

	route session.Route
}

type namedCheck struct {
	name  string
	check Check
}

// New creates a runner with the default checks registered.
func New(opts Options) *Runner {
	r := &Runner{opts: opts, route: session.RouteLogin}

	r.AddCheck("Server", r.checkServer)
	r.AddCheck("Session", r.checkSession)
	r.AddCheck("Stored session", r.checkStoredSession)
	r.AddCheck("API keys", r.checkCredentials)
	r.AddCheck("Live channel", r.checkLiveChannel)
	r.AddCheck("CLI version", checkCLIVersion)

	return r
}

// AddCheck registers a diagnostic check.
func (r *Runner) AddCheck(name string, check Check) {
	r.checks = append(r.checks, namedCheck{name: name, check: check})
}

// Run executes all registered checks and returns the results.
func (r *Runner) Run(ctx context.Context) []Result {
	results := make([]Result, 0, len(r.checks))

	for _, nc := range r.checks {
		result := nc.check(ctx)
		result.Name = nc.name
		results = append(results, result)
	}

	return results
}

// Summary returns counts of passed, failed, and warning checks.
func Summary(results []Result) (passed, failed, warnings int) {
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			passed++
		case StatusFail:
			failed++
		case StatusWarn:
			warnings++
		}
	}

	return passed, failed, warnings
}

// checkServer reaches the unauthenticated status endpoint and records the
// route for the checks that follow.
func (r *Runner) checkServer(ctx context.Context) Result {
	start := time.Now()

	s, err := r.opts.Backend.AuthStatus(ctx)
	elapsed := time.Since(start)

	if err != nil {
		var transport *client.TransportError
		if errors.As(err, &transport) {
			return Result{Status: StatusFail, Message: r.opts.ServerURL, Detail: transport.Err.Error()}
		}

		return Result{Status: StatusFail, Message: r.opts.ServerURL, Detail: err.Error()}
	}

	r.route = session.RouteFor(*s)

	return Result{Status: StatusPass, Message: fmt.Sprintf("%s (%dms)", r.opts.ServerURL, elapsed.Milliseconds())}
}

func (r *Runner) checkSession(context.Context) Result {
	switch r.route {
	case session.RouteDashboard:
		return Result{Status: StatusPass, Message: "Logged in"}
	case session.RouteSetup:
		return Result{Status: StatusFail, Message: "Setup not completed", Detail: "Run 'botctl setup' to create the admin account"}
	default:
		return Result{Status: StatusWarn, Message: "Not logged in", Detail: "Run 'botctl login' to sign in"}
	}
}

func (r *Runner) checkStoredSession(context.Context) Result {
	if r.opts.StoredSession == nil {
		return Result{Status: StatusWarn, Message: "Unknown"}
	}

	source := r.opts.StoredSession()
	if source == auth.SourceNone {
		return Result{Status: StatusWarn, Message: "No session cookie stored"}
	}

	if source == auth.SourceFile {
		return Result{Status: StatusWarn, Message: "Stored in " + string(source), Detail: "No OS keyring available; the cookie is kept in a 0600 file"}
	}

	return Result{Status: StatusPass, Message: "Stored in " + string(source)}
}

func (r *Runner) checkCredentials(ctx context.Context) Result {
	if r.route != session.RouteDashboard {
		return Result{Status: StatusWarn, Message: "Skipped (not logged in)"}
	}

	creds, err := r.opts.Backend.GetKeys(ctx)
	if err != nil {
		return Result{Status: StatusFail, Message: "Could not load API keys", Detail: client.UserMessage(err)}
	}

	if missing := creds.Missing(); len(missing) > 0 {
		return Result{
			Status:  StatusWarn,
			Message: "Missing " + strings.Join(missing, ", "),
			Detail:  "Run 'botctl settings set' to add them; the bot cannot start without them",
		}
	}

	return Result{Status: StatusPass, Message: "Required keys configured"}
}

func (r *Runner) checkLiveChannel(ctx context.Context) Result {
	if r.route != session.RouteDashboard || r.opts.DialLive == nil {
		return Result{Status: StatusWarn, Message: "Skipped (not logged in)"}
	}

	start := time.Now()
	if err := r.opts.DialLive(ctx); err != nil {
		return Result{Status: StatusFail, Message: "Could not connect", Detail: err.Error()}
	}

	return Result{Status: StatusPass, Message: fmt.Sprintf("Connected (%dms)", time.Since(start).Milliseconds())}
}

func checkCLIVersion(context.Context) Result {
	if buildinfo.Version == "dev" {
		return Result{Status: StatusWarn, Message: "Development build"}
	}

	return Result{Status: StatusPass, Message: "v" + buildinfo.Version}
}

// RenderResults formats results through the given printers.
func RenderResults(results []Result, successFn, warningFn, failureFn, mutedFn func(format string, args ...any)) {
	width := 0
	for _, r := range results {
		width = max(width, len(r.Name))
	}

	for _, r := range results {
		switch r.Status {
		case StatusPass:
			successFn("%-*s%s", width+4, r.Name, r.Message)
		case StatusWarn:
			warningFn("%-*s%s", width+4, r.Name, r.Message)
		default:
			failureFn("%-*s%s", width+4, r.Name, r.Message)
		}

		if r.Detail != "" {
			mutedFn("    %s", r.Detail)
		}
	}
}

// Symbol returns the status symbol for display.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}
