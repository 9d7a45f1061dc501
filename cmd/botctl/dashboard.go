package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/membit-bot/botctl/internal/client"
	"github.com/membit-bot/botctl/internal/dashboard"
	clierrors "github.com/membit-bot/botctl/internal/errors"
	"github.com/membit-bot/botctl/internal/observability"
	"github.com/membit-bot/botctl/internal/output"
	"github.com/membit-bot/botctl/internal/session"
	"github.com/membit-bot/botctl/internal/settings"
)

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the live bot dashboard",
		Long: `Open a full-screen dashboard connected to the live channel. Status and
activity logs update as the server pushes them; s starts the schedule, x stops
it, r runs one cycle now, t toggles the activity terminal, c reconnects and q
quits. Controls are disabled when they do not apply to the current state.`,
		Example: `  botctl dashboard`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			logger := observability.FromContext(ctx)
			cfg, c := newBackendClient(ctx)

			if !out.Terminal().IsTTY {
				return clierrors.New(clierrors.ExitUsage, "The dashboard needs an interactive terminal").
					WithHint("Use 'botctl status' or 'botctl logs --follow' instead")
			}

			if _, err := requireSession(ctx, c); err != nil {
				return err
			}

			opts := dashboard.Options{
				Dial: func(ctx context.Context) (dashboard.Channel, error) {
					ch, err := dialLive(ctx, cfg, c)
					if err != nil {
						return nil, err
					}

					return ch, nil
				},
				LoadSettings: func(ctx context.Context) (client.BotConfig, client.Credentials, error) {
					snap, err := settings.NewStore(c, logger).Load(ctx)
					return snap.Config, snap.Credentials, err
				},
				Logger: logger,
			}

			if recorder := openRecorder(ctx, cfg, "dashboard"); recorder != nil {
				defer recorder.Close()

				opts.Recorder = recorder
			}

			program := tea.NewProgram(dashboard.New(opts), tea.WithAltScreen(), tea.WithContext(ctx))

			final, err := program.Run()
			if err != nil {
				return fmt.Errorf("run dashboard: %w", err)
			}

			if m, ok := final.(dashboard.Model); ok && m.Route() == session.RouteLogin {
				return clierrors.SessionExpired()
			}

			return nil
		},
	}
}
