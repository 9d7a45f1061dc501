package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/membit-bot/botctl/internal/ansi"
	"github.com/membit-bot/botctl/internal/client"
	"github.com/membit-bot/botctl/internal/history"
	"github.com/membit-bot/botctl/internal/output"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect locally recorded activity",
		Long: `Inspect the activity recorded by 'botctl dashboard' and 'botctl logs --follow':
status pushes, log entries, errors and the commands you sent.`,
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryViewCmd())
	cmd.AddCommand(newHistoryPruneCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions",
		Long:  `List recorded sessions, newest first.`,
		Example: `  botctl history list
  botctl history list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			dir := configFrom(cmd.Context()).HistoryDir()

			sessions, err := history.ListSessions(dir)
			if err != nil {
				return err
			}

			if out.JSON {
				return out.PrintJSON(sessions)
			}

			if len(sessions) == 0 {
				out.Muted("No recorded sessions found.")
				return nil
			}

			for _, s := range sessions {
				closed := "open"
				if s.ClosedAt != nil {
					closed = s.ClosedAt.Format(time.RFC3339)
				}

				out.Print("%s  %-9s  started=%s  closed=%s  %s\n",
					s.SessionID, s.Source, s.StartedAt.Format(time.RFC3339), closed, s.Server)
			}

			return nil
		},
	}
}

func newHistoryViewCmd() *cobra.Command {
	var (
		search string
		kind   string
	)

	cmd := &cobra.Command{
		Use:   "view <session-id>",
		Short: "View recorded entries for a session",
		Long:  `Print a recorded session in order. Log entries are shown as in 'botctl logs'.`,
		Example: `  botctl history view 3f2a...
  botctl history view 3f2a... --kind log --search error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			dir := configFrom(cmd.Context()).HistoryDir()

			entries, err := history.ReadEntries(dir, args[0])
			if err != nil {
				return err
			}

			filtered := entries[:0]

			for _, e := range entries {
				if kind != "" && e.Kind != kind {
					continue
				}

				if search != "" && !strings.Contains(strings.ToLower(describeEntry(e)), strings.ToLower(search)) {
					continue
				}

				filtered = append(filtered, e)
			}

			if out.JSON {
				return out.PrintJSON(filtered)
			}

			for _, e := range filtered {
				if e.Log != nil {
					out.LogEntry(*e.Log)
					continue
				}

				out.Print("[%s] %s\n", e.TS.Format(time.RFC3339), describeEntry(e))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Only show entries containing this text")
	cmd.Flags().StringVar(&kind, "kind", "", "Only show entries of this kind (status_update, log, error, reconnected, command)")

	return cmd
}

func describeEntry(e history.Entry) string {
	switch {
	case e.Log != nil:
		return ansi.Sanitize(e.Log.Message)
	case e.Status != nil:
		return "status " + statusLine(*e.Status)
	case e.Error != "":
		return "error " + ansi.Sanitize(e.Error)
	case e.Command != "":
		return "sent " + e.Command
	default:
		return e.Kind
	}
}

func statusLine(s client.BotStatus) string {
	state := "stopped"
	if s.Running {
		state = "running"
	}

	return fmt.Sprintf("%s success=%d errors=%d total=%d", state, s.SuccessCount, s.ErrorCount, s.TotalTweets)
}

func newHistoryPruneCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete sessions older than a duration",
		Long:  `Delete recorded sessions that started before the retention window.`,
		Example: `  botctl history prune
  botctl history prune --older-than 168h`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			dir := configFrom(cmd.Context()).HistoryDir()

			removed, err := history.PruneOlderThan(dir, time.Now().Add(-olderThan))
			if err != nil {
				return err
			}

			out.Success("Removed %d session(s)", removed)

			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", history.DefaultRetention(), "Retention window")

	return cmd
}
