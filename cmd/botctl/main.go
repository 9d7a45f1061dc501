// Package main is the entry point for the botctl CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/membit-bot/botctl/internal/buildinfo"
	"github.com/membit-bot/botctl/internal/config"
	clierrors "github.com/membit-bot/botctl/internal/errors"
	"github.com/membit-bot/botctl/internal/observability"
	"github.com/membit-bot/botctl/internal/output"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprint(os.Stderr, "\033[?25h")
			panic(r)
		}
	}()

	buildinfo.Version = version
	buildinfo.Commit = commit

	out := output.Default()

	if err := newRootCmd().Execute(); err != nil {
		return handleError(out, err)
	}

	return clierrors.ExitSuccess
}

// handleError prints err and returns the process exit code.
func handleError(out *output.Writer, err error) int {
	var cliErr *clierrors.CLIError
	if clierrors.As(err, &cliErr) {
		out.Failure("%s", cliErr.Message)

		if cliErr.Hint != "" {
			out.Info("%s", cliErr.Hint)
		}

		return cliErr.Code
	}

	msg := err.Error()

	if strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag") ||
		strings.Contains(msg, "required flag") {
		out.Failure("%s", msg)

		if !strings.Contains(msg, "--help") {
			out.Info("Run 'botctl --help' for usage")
		}

		return clierrors.ExitUsage
	}

	out.Failure("%s", msg)

	return clierrors.ExitGeneral
}

func newRootCmd() *cobra.Command {
	out := output.Default()

	var (
		jsonOutput bool
		quiet      bool
		noColor    bool
		noInput    bool
		server     string
		logLevel   string
		logFormat  string
		logFile    string
		logStderr  string
	)

	rootCmd := &cobra.Command{
		Use:   "botctl",
		Short: "Operator console for the scheduled posting bot",
		Long: `botctl drives the bot backend: first-time setup with two-factor
enrollment, login, live start/stop control, settings and activity logs.

Get started:
  botctl setup          Create the operator account and enroll 2FA
  botctl login          Sign in with username, password and 6-digit code
  botctl dashboard      Open the live dashboard
  botctl settings show  Review API keys and bot configuration
  botctl doctor         Diagnose connectivity and session problems`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			out.JSON = pickBoolFlagOrEnv(jsonOutput, "BOTCTL_JSON")
			out.Quiet = pickBoolFlagOrEnv(quiet, "BOTCTL_QUIET")
			out.NoInput = pickBoolFlagOrEnv(noInput, "BOTCTL_NO_INPUT") || pickBoolFlagOrEnv(false, "CI")

			if noColor {
				out.SetNoColor(true)

				color.NoColor = true
			}

			cfg := config.Load()
			if s := strings.TrimSpace(server); s != "" {
				cfg.Override("server.url", strings.TrimRight(s, "/"))
			}

			logCfg := observability.Config{
				Level:          pickFlagOrEnv(logLevel, "BOTCTL_LOG_LEVEL", "info"),
				Format:         pickFlagOrEnv(logFormat, "BOTCTL_LOG_FORMAT", "json"),
				LogFile:        pickFlagOrEnv(logFile, "BOTCTL_LOG_FILE", ""),
				StderrMode:     pickFlagOrEnv(logStderr, "BOTCTL_LOG_STDERR", "auto"),
				InteractiveTTY: out.Terminal().IsTTY && isInteractiveCommand(cmd.CommandPath()),
				SessionID:      uuid.NewString(),
				CommandPath:    cmd.CommandPath(),
				ServerURL:      cfg.ServerURL(),
				Version:        version,
				Commit:         commit,
			}

			logger, cleanup, err := observability.NewLogger(&logCfg)
			if err != nil {
				return &clierrors.CLIError{
					Message: fmt.Sprintf("Invalid logging configuration: %v", err),
					Hint:    "Use --log-level (error|warn|info|debug), --log-format (json|text), --log-stderr (auto|on|off), and/or --log-file",
					Code:    clierrors.ExitUsage,
				}
			}

			slog.SetDefault(logger)

			ctx := out.WithContext(cmd.Context())
			ctx = observability.WithLogger(ctx, logger)
			ctx = withConfig(ctx, cfg)
			cmd.SetContext(ctx)

			cmd.PostRunE = wrapNamedPostRunCleanup(cmd.PostRunE, "logger resources", cleanup)

			shutdown, telemetryErr := observability.SetupTelemetry(ctx, &observability.TelemetryConfig{
				Enabled:   observability.IsTelemetryEnabled(),
				ServerURL: cfg.ServerURL(),
				Version:   version,
				Commit:    commit,
			})
			if telemetryErr != nil {
				logger.Warn("telemetry initialization failed", slog.String("error", telemetryErr.Error()))
			}

			cmd.PostRunE = wrapNamedPostRunCleanup(cmd.PostRunE, "telemetry resources", func() error {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				return shutdown(shutdownCtx)
			})

			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	flags.BoolVar(&quiet, "quiet", false, "Minimal output (for CI)")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flags.BoolVar(&noInput, "no-input", false, "Disable interactive prompts")
	flags.StringVar(&server, "server", "", "Bot backend URL (overrides server.url)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: error, warn, info, debug")
	flags.StringVar(&logFormat, "log-format", "", "Log format: json, text")
	flags.StringVar(&logFile, "log-file", "", "Optional structured log file path")
	flags.StringVar(&logStderr, "log-stderr", "", "Structured logging to stderr: auto, on, off")

	rootCmd.SuggestionsMinimumDistance = 2

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &clierrors.CLIError{
			Message: err.Error(),
			Hint:    fmt.Sprintf("Run '%s --help' for available flags", cmd.CommandPath()),
			Code:    clierrors.ExitUsage,
		}
	})

	rootCmd.AddGroup(
		&cobra.Group{ID: "session", Title: "Session:"},
		&cobra.Group{ID: "bot", Title: "Bot:"},
	)

	for _, c := range []*cobra.Command{newSetupCmd(), newLoginCmd(), newLogoutCmd(), newWhoamiCmd()} {
		c.GroupID = "session"
		rootCmd.AddCommand(c)
	}

	for _, c := range []*cobra.Command{
		newDashboardCmd(),
		newBotCommandCmd(botStart),
		newBotCommandCmd(botStop),
		newBotCommandCmd(botRunOnce),
		newStatusCmd(),
		newLogsCmd(),
		newSettingsCmd(),
	} {
		c.GroupID = "bot"
		rootCmd.AddCommand(c)
	}

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newGuideCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func wrapNamedPostRunCleanup(postRun func(*cobra.Command, []string) error, name string, cleanup func() error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if postRun != nil {
			if err := postRun(cmd, args); err != nil {
				_ = cleanup()
				return err
			}
		}

		if err := cleanup(); err != nil {
			return fmt.Errorf("cleanup %s: %w", name, err)
		}

		return nil
	}
}

func pickBoolFlagOrEnv(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}

	v := strings.ToLower(strings.TrimSpace(os.Getenv(envKey)))

	return v == "1" || v == "true" || v == "yes"
}

func pickFlagOrEnv(flagValue, envKey, fallback string) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}

	if envValue := strings.TrimSpace(os.Getenv(envKey)); envValue != "" {
		return envValue
	}

	return fallback
}

// isInteractiveCommand reports commands that own the terminal, where log
// lines on stderr would corrupt the screen.
func isInteractiveCommand(path string) bool {
	return path == "botctl dashboard" || path == "botctl setup" || path == "botctl login"
}

// noArgs rejects positional arguments with a friendlier message than cobra.NoArgs.
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &clierrors.CLIError{
			Message: fmt.Sprintf("'%s' accepts no arguments", cmd.CommandPath()),
			Hint:    fmt.Sprintf("Run '%s --help' for usage", cmd.CommandPath()),
			Code:    clierrors.ExitUsage,
		}
	}

	return nil
}

// VersionInfo represents version information for JSON output.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show version information",
		Long:    "Print the botctl version, commit and build date. With --json the same fields are written as a JSON object.",
		Example: `  botctl version
  botctl version --json`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			if out.JSON {
				return out.PrintJSON(VersionInfo{Version: version, Commit: commit, Date: date})
			}

			out.Print("botctl %s\n", version)
			out.Print("  commit: %s\n", commit)
			out.Print("  built:  %s\n", date)

			return nil
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long:  `Write a completion script for the given shell to stdout.`,
		Example: `  botctl completion bash > /etc/bash_completion.d/botctl
  botctl completion zsh > "${fpath[1]}/_botctl"
  botctl completion fish > ~/.config/fish/completions/botctl.fish`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			w := cmd.OutOrStdout()

			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(w, true)
			case "zsh":
				return root.GenZshCompletion(w)
			case "fish":
				return root.GenFishCompletion(w, true)
			default:
				return root.GenPowerShellCompletionWithDesc(w)
			}
		},
	}
}
