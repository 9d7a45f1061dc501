package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/membit-bot/botctl/internal/auth"
	"github.com/membit-bot/botctl/internal/doctor"
	"github.com/membit-bot/botctl/internal/output"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose common issues",
		Long: `Run diagnostic checks to identify configuration and connectivity issues.

Checks performed:
  - Backend reachability and response time
  - Session state (setup, login, dashboard) and where the cookie is stored
  - Whether the bot's required API keys are set
  - Live channel handshake`,
		Example: `  botctl doctor
  botctl doctor --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			cfg, c := newBackendClient(ctx)
			server := c.BaseURL()

			runner := doctor.New(doctor.Options{
				ServerURL: server,
				Backend:   c,
				StoredSession: func() auth.Source {
					source, _ := auth.SessionCookie(server)
					return source
				},
				DialLive: func(ctx context.Context) error {
					ch, err := dialLive(ctx, cfg, c)
					if err != nil {
						return err
					}

					return ch.Close()
				},
			})

			results := runner.Run(ctx)

			if out.JSON {
				return out.PrintJSON(results)
			}

			renderDoctor(out, results)

			return nil
		},
	}
}

func renderDoctor(out *output.Writer, results []doctor.Result) {
	out.Println("botctl doctor")
	out.Println("=============")
	out.Println()

	doctor.RenderResults(results, out.Success, out.Warning, out.Failure, out.Muted)

	passed, failed, warnings := doctor.Summary(results)
	out.Println()
	out.Print("%d passed", passed)

	if failed > 0 {
		out.Print(", %d failed", failed)
	}

	if warnings > 0 {
		out.Print(", %d warning(s)", warnings)
	}

	out.Println()
}
