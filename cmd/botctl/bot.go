package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/membit-bot/botctl/internal/ansi"
	"github.com/membit-bot/botctl/internal/client"
	"github.com/membit-bot/botctl/internal/config"
	"github.com/membit-bot/botctl/internal/dashboard"
	clierrors "github.com/membit-bot/botctl/internal/errors"
	"github.com/membit-bot/botctl/internal/history"
	"github.com/membit-bot/botctl/internal/livechannel"
	"github.com/membit-bot/botctl/internal/observability"
	"github.com/membit-bot/botctl/internal/output"
)

// botCommand describes one fire-and-forget live-channel command.
type botCommand struct {
	use     string
	short   string
	long    string
	example string
	command livechannel.Command
	// allowed reports whether the command makes sense for the current state;
	// skip is printed when it does not.
	allowed func(dashboard.ControlState) bool
	skip    string
	// confirmed reports whether a pushed status reflects the command. The
	// server pushes its current status on connect, so a bare status_update
	// is not enough.
	confirmed func(before, after client.BotStatus) bool
}

var (
	botStart = botCommand{
		use:   "start",
		short: "Start the posting schedule",
		long: `Start the bot's posting schedule and wait for the server to confirm the new
state. The server refuses to start without the Membit, Gemini and Twitter API
keys; its refusal is reported as an error.`,
		example: `  botctl start
  botctl start --wait 30s`,
		command:   livechannel.CommandStart,
		allowed:   func(c dashboard.ControlState) bool { return c.StartEnabled },
		skip:      "Bot is already running",
		confirmed: func(_, after client.BotStatus) bool { return after.Running },
	}

	botStop = botCommand{
		use:       "stop",
		short:     "Stop the posting schedule",
		long:      `Stop the bot's posting schedule and wait for the server to confirm the new state.`,
		example:   `  botctl stop`,
		command:   livechannel.CommandStop,
		allowed:   func(c dashboard.ControlState) bool { return c.StopEnabled },
		skip:      "Bot is not running",
		confirmed: func(_, after client.BotStatus) bool { return !after.Running },
	}

	botRunOnce = botCommand{
		use:   "run-once",
		short: "Generate and post one tweet now",
		long: `Ask the bot to run a single generate-and-post cycle immediately, outside the
schedule. Activity logs are printed until the run's status update arrives.`,
		example: `  botctl run-once
  botctl run-once --wait 2m`,
		command: livechannel.CommandRunOnce,
		allowed: func(c dashboard.ControlState) bool { return c.RunOnceEnabled },
		confirmed: func(before, after client.BotStatus) bool {
			return after.LastRun != before.LastRun ||
				after.SuccessCount+after.ErrorCount != before.SuccessCount+before.ErrorCount
		},
	}
)

// CommandResult represents a bot command outcome for JSON output.
type CommandResult struct {
	Command   string            `json:"command"`
	Confirmed bool              `json:"confirmed"`
	Status    *client.BotStatus `json:"status,omitempty"`
}

func newBotCommandCmd(bc botCommand) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:     bc.use,
		Short:   bc.short,
		Long:    bc.long,
		Example: bc.example,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			cfg, c := newBackendClient(ctx)
			server := c.BaseURL()

			if _, err := requireSession(ctx, c); err != nil {
				return err
			}

			state, err := loadControlState(ctx, c)
			if err != nil {
				return clientError(server, err)
			}

			if !bc.allowed(dashboard.Controls(state)) {
				if bc.skip == "" {
					return clierrors.CredentialsMissing()
				}

				out.Info("%s", bc.skip)

				return nil
			}

			if !cmd.Flags().Changed("wait") {
				wait = cfg.CommandWait()
			}

			ch, err := dialLive(ctx, cfg, c)
			if err != nil {
				return liveError(err)
			}
			defer ch.Close()

			if err := emitCommand(ctx, ch, bc.command); err != nil {
				return clierrors.Wrap(clierrors.ExitNetwork, "Failed to send "+string(bc.command), err)
			}

			result := CommandResult{Command: string(bc.command)}

			if wait > 0 {
				before := state.Status
				status, err := awaitStatus(ctx, out, ch, wait, func(after client.BotStatus) bool {
					return bc.confirmed(before, after)
				})
				if err != nil {
					return err
				}

				result.Status = status
				result.Confirmed = status != nil
			}

			if out.JSON {
				return out.PrintJSON(result)
			}

			switch {
			case result.Confirmed:
				out.Success("Sent %s", bc.command)
				out.Table(output.StatusRows(*result.Status))
			case wait > 0:
				out.Warning("Sent %s; no status update within %s", bc.command, wait)
			default:
				out.Success("Sent %s", bc.command)
			}

			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", config.DefaultCommandWait*time.Second, "How long to wait for the next status update (0 to return immediately)")

	return cmd
}

func emitCommand(ctx context.Context, ch *livechannel.Channel, command livechannel.Command) error {
	_, span := observability.StartSpan(ctx, "bot.command", observability.AttrBotCommand.String(string(command)))

	err := ch.Emit(command)
	observability.EndSpan(span, err)

	if err != nil {
		return err
	}

	observability.FromContext(ctx).Info("bot command sent",
		"event.type", "bot.command",
		"bot.command", string(command),
	)

	return nil
}

// loadControlState fetches the snapshot the control rules are evaluated on.
func loadControlState(ctx context.Context, c *client.Client) (dashboard.State, error) {
	status, err := c.GetStatus(ctx)
	if err != nil {
		return dashboard.State{}, err
	}

	creds, err := c.GetKeys(ctx)
	if err != nil {
		return dashboard.State{}, err
	}

	state := dashboard.NewState()
	state.Status = *status
	state.CredentialsReady = creds.Ready()

	return state, nil
}

// awaitStatus prints log pushes until a status_update satisfying done
// arrives. The history the server replays on connect is not printed, and an
// error event ends the wait as a refusal. It returns a nil status when wait
// elapses first.
func awaitStatus(ctx context.Context, out *output.Writer, ch *livechannel.Channel, wait time.Duration, done func(client.BotStatus) bool) (*client.BotStatus, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case ev, ok := <-ch.Events():
			if !ok {
				return nil, clierrors.LiveChannelFailed(errors.New("connection closed"))
			}

			switch ev.Kind {
			case livechannel.KindStatus:
				if ev.Status != nil && done(*ev.Status) {
					return ev.Status, nil
				}
			case livechannel.KindLog:
				if ev.Log != nil && !ev.Replayed && !out.JSON {
					out.LogEntry(*ev.Log)
				}
			case livechannel.KindError:
				if ev.Error == dashboard.AuthRequiredMessage {
					return nil, clierrors.SessionExpired()
				}

				if !ev.Replayed {
					return nil, clierrors.CommandRefused(ansi.Sanitize(ev.Error))
				}
			case livechannel.KindReconnected:
				if !out.JSON {
					out.Muted("%s", dashboard.ReconnectedNotice)
				}
			}
		}
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show a bot status snapshot",
		Long: `Fetch the bot's current status once: running state, schedule, success and
error counters, and the most recent tweet or error.`,
		Example: `  botctl status
  botctl status --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			_, c := newBackendClient(ctx)

			if _, err := requireSession(ctx, c); err != nil {
				return err
			}

			status, err := c.GetStatus(ctx)
			if err != nil {
				return clientError(c.BaseURL(), err)
			}

			if out.JSON {
				return out.PrintJSON(status)
			}

			out.Table(output.StatusRows(*status))

			return nil
		},
	}
}

func newLogsCmd() *cobra.Command {
	var (
		follow bool
		tail   int
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent bot activity",
		Long: `Print the activity log the server retains. With --follow, keep the live
channel open and print new entries as they arrive until interrupted; followed
entries are also recorded to local history unless history.enabled is false.`,
		Example: `  botctl logs
  botctl logs --tail 20
  botctl logs --follow`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			cfg, c := newBackendClient(ctx)

			if _, err := requireSession(ctx, c); err != nil {
				return err
			}

			entries, err := c.GetLogs(ctx)
			if err != nil {
				return clientError(c.BaseURL(), err)
			}

			if tail > 0 && len(entries) > tail {
				entries = entries[len(entries)-tail:]
			}

			if !follow {
				if out.JSON {
					return out.PrintJSON(entries)
				}

				if len(entries) == 0 {
					out.Muted("No activity yet")
					return nil
				}

				for _, e := range entries {
					out.LogEntry(e)
				}

				return nil
			}

			for _, e := range entries {
				printLogEntry(out, e)
			}

			return followLogs(ctx, out, cfg, c)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream new entries from the live channel")
	cmd.Flags().IntVarP(&tail, "tail", "n", 0, "Show only the last N retained entries")

	return cmd
}

func printLogEntry(out *output.Writer, e client.LogEntry) {
	if out.JSON {
		_ = out.PrintJSON(e)
		return
	}

	out.LogEntry(e)
}

// followLogs streams log pushes until the context is canceled or the channel
// closes.
func followLogs(ctx context.Context, out *output.Writer, cfg *config.Config, c *client.Client) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ch, err := dialLive(ctx, cfg, c)
	if err != nil {
		return liveError(err)
	}
	defer ch.Close()

	recorder := openRecorder(ctx, cfg, "logs")
	if recorder != nil {
		defer recorder.Close()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch.Events():
			if !ok {
				return clierrors.LiveChannelFailed(errors.New("connection closed"))
			}

			if recorder != nil {
				if err := recorder.Record(ev); err != nil {
					observability.FromContext(ctx).Debug("history write failed", "error", err.Error())
				}
			}

			switch ev.Kind {
			case livechannel.KindLog:
				if ev.Log != nil {
					printLogEntry(out, *ev.Log)
				}
			case livechannel.KindError:
				if ev.Error == dashboard.AuthRequiredMessage {
					return clierrors.SessionExpired()
				}

				out.Warning("%s", ansi.Sanitize(ev.Error))
			case livechannel.KindReconnected:
				out.Muted("%s", dashboard.ReconnectedNotice)
			}
		}
	}
}

// openRecorder starts a history session, or returns nil when history is
// disabled or cannot be written.
func openRecorder(ctx context.Context, cfg *config.Config, source string) *history.Recorder {
	if !cfg.HistoryEnabled() {
		return nil
	}

	recorder, err := history.NewRecorder(history.Options{
		SessionID: uuid.NewString(),
		Dir:       cfg.HistoryDir(),
		Server:    cfg.ServerURL(),
		Source:    source,
	})
	if err != nil {
		observability.FromContext(ctx).Warn("history disabled for this session",
			"event.type", "history.open_failed",
			"error", err.Error(),
		)

		return nil
	}

	return recorder
}
