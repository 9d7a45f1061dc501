package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/membit-bot/botctl/internal/auth"
	"github.com/membit-bot/botctl/internal/client"
	"github.com/membit-bot/botctl/internal/config"
	"github.com/membit-bot/botctl/internal/dashboard"
	clierrors "github.com/membit-bot/botctl/internal/errors"
	"github.com/membit-bot/botctl/internal/livechannel"
	"github.com/membit-bot/botctl/internal/observability"
	"github.com/membit-bot/botctl/internal/session"
)

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// configFrom returns the configuration loaded by the root command, or a
// fresh load when a subcommand runs on its own (tests).
func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}

	return config.Load()
}

// newBackendClient creates an API client for the configured server with any
// stored session cookie restored.
//
// This consolidates the repeated pattern of:
//
//	cfg := config.Load()
//	_, cookie := auth.SessionCookie(cfg.ServerURL())
//	c := client.New(cfg.ServerURL())
//	c.SetSessionCookie(cookie)
func newBackendClient(ctx context.Context) (*config.Config, *client.Client) {
	cfg := configFrom(ctx)
	server := cfg.ServerURL()

	c := client.New(server)

	if _, cookie := auth.SessionCookie(server); cookie != "" {
		c.SetSessionCookie(cookie)
	}

	return cfg, c
}

// requireSession runs the session gate and turns anything but the dashboard
// route into an error naming the command to run next.
func requireSession(ctx context.Context, c *client.Client) (client.Session, error) {
	decision := session.NewGate(c).Resolve(ctx)

	switch decision.Route {
	case session.RouteDashboard:
		return decision.Session, nil
	case session.RouteSetup:
		return decision.Session, clierrors.SetupRequired()
	}

	if decision.Err != nil {
		observability.FromContext(ctx).Debug("session gate failed",
			"event.type", "session.gate_failed",
			"error", decision.Err.Error(),
		)

		var transport *client.TransportError
		if errors.As(decision.Err, &transport) {
			return decision.Session, clierrors.ServerUnreachable(c.BaseURL(), decision.Err)
		}
	}

	return decision.Session, clierrors.NotAuthenticated()
}

// clientError maps the client error taxonomy onto CLI errors and exit codes.
func clientError(serverURL string, err error) error {
	if err == nil {
		return nil
	}

	var (
		cliErr     *clierrors.CLIError
		validation *client.ValidationError
		rejected   *client.RejectedError
		transport  *client.TransportError
		sessionErr *client.SessionError
	)

	switch {
	case errors.As(err, &cliErr):
		return cliErr
	case errors.As(err, &validation):
		return clierrors.InvalidInput(validation.Message)
	case errors.As(err, &sessionErr):
		return clierrors.SessionExpired()
	case errors.As(err, &rejected):
		return clierrors.Rejected(rejected.Message)
	case errors.As(err, &transport):
		return clierrors.ServerUnreachable(serverURL, err)
	default:
		return clierrors.Wrap(clierrors.ExitGeneral, client.UserMessage(err), err)
	}
}

// dialLive opens a live channel authenticated with c's cookies.
func dialLive(ctx context.Context, cfg *config.Config, c *client.Client) (*livechannel.Channel, error) {
	return livechannel.Dial(ctx, livechannel.Options{
		BaseURL:              c.BaseURL(),
		Cookies:              c.Cookies(),
		CommandRate:          rate.Limit(cfg.CommandRate()),
		CommandBurst:         cfg.CommandBurst(),
		MaxReconnectInterval: cfg.MaxReconnectInterval(),
		Logger:               observability.FromContext(ctx),
	})
}

// liveError maps a live-channel dial failure. An authentication rejection
// means the stored session is no longer valid.
func liveError(err error) error {
	var rejected *livechannel.RejectedError
	if errors.As(err, &rejected) && rejected.Message == dashboard.AuthRequiredMessage {
		return clierrors.SessionExpired()
	}

	return clierrors.LiveChannelFailed(err)
}

// persistSession stores the session cookie c currently holds.
func persistSession(c *client.Client) (auth.Source, error) {
	cookie := c.SessionCookie()
	if cookie == "" {
		return auth.SourceNone, fmt.Errorf("server did not set a session cookie")
	}

	source, err := auth.StoreSessionCookie(c.BaseURL(), cookie)
	if err != nil {
		return auth.SourceNone, clierrors.ConfigFailed("store session", err)
	}

	return source, nil
}

// writePrivateFile writes data readable only by the current user.
func writePrivateFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory for %s: %w", path, err)
		}
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
