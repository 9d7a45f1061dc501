package main

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/membit-bot/botctl/internal/client"
	"github.com/membit-bot/botctl/internal/dashboard"
	clierrors "github.com/membit-bot/botctl/internal/errors"
	"github.com/membit-bot/botctl/internal/observability"
	"github.com/membit-bot/botctl/internal/output"
	"github.com/membit-bot/botctl/internal/settings"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "View and change bot settings",
		Long: `View and change the settings the backend holds for the bot: API keys, the
posting schedule and limits, image generation, trend sources and the prompt
template. Only groups that actually changed are written.`,
	}

	cmd.AddCommand(newSettingsShowCmd())
	cmd.AddCommand(newSettingsSetCmd())
	cmd.AddCommand(newSettingsApplyCmd())

	return cmd
}

// SettingsView represents the server settings for JSON output. Keys are masked.
type SettingsView struct {
	Keys      map[string]string `json:"keys"`
	KeysReady bool              `json:"keys_ready"`
	Config    client.BotConfig  `json:"config"`
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show API keys and bot configuration",
		Long: `Show the current settings. API keys are always masked; the prompt template
is printed in full.`,
		Example: `  botctl settings show
  botctl settings show --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)

			store, err := loadSettingsStore(ctx)
			if err != nil {
				return err
			}

			snap := store.Baseline()

			if out.JSON {
				view := SettingsView{
					Keys:      make(map[string]string),
					KeysReady: snap.Credentials.Ready(),
					Config:    snap.Config,
				}

				for _, f := range snap.Credentials.Fields() {
					view.Keys[f.Name] = client.Mask(f.Value)
				}

				return out.PrintJSON(view)
			}

			out.Println(settings.GroupCredentials.Label())

			keyRows := make([][2]string, 0, 6)
			for _, f := range snap.Credentials.Fields() {
				keyRows = append(keyRows, [2]string{f.Label, client.Mask(f.Value)})
			}

			out.Table(keyRows)

			if missing := snap.Credentials.Missing(); len(missing) > 0 {
				out.Warning("Missing: %s", strings.Join(missing, ", "))
			}

			out.Println()
			out.Println(settings.GroupConfig.Label())
			out.Table(dashboard.ConfigSummary(snap.Config))
			out.Println()
			out.Println(settings.GroupPrompt.Label())

			if strings.TrimSpace(snap.Config.PromptTemplate) == "" {
				out.Muted("(empty)")
			} else {
				out.Println(snap.Config.PromptTemplate)
			}

			return nil
		},
	}
}

// settingsFlags binds one flag per settable field. Only flags the operator
// actually passed end up in the draft.
type settingsFlags struct {
	membit, gemini, twitterKey, twitterSecret, twitterToken, twitterAccessSecret string

	scheduleHours, maxRetries, maxTweetLength int

	image       bool
	imageStyle  string
	imageWidth  int
	imageHeight int
	clusterInfo bool
	posts       bool
	prompt      string
	promptFile  string
}

func (f *settingsFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.membit, "membit-key", "", "Membit API key")
	fs.StringVar(&f.gemini, "gemini-key", "", "Gemini API key")
	fs.StringVar(&f.twitterKey, "twitter-key", "", "Twitter API key")
	fs.StringVar(&f.twitterSecret, "twitter-secret", "", "Twitter API secret")
	fs.StringVar(&f.twitterToken, "twitter-token", "", "Twitter access token")
	fs.StringVar(&f.twitterAccessSecret, "twitter-access-secret", "", "Twitter access token secret")

	fs.IntVar(&f.scheduleHours, "schedule-hours", 0, "Hours between posts (1-24)")
	fs.IntVar(&f.maxRetries, "max-retries", 0, "Generation retries per run (1-10)")
	fs.IntVar(&f.maxTweetLength, "max-tweet-length", 0, "Maximum tweet length (100-280)")

	fs.BoolVar(&f.image, "image", false, "Generate an image for each tweet")
	fs.StringVar(&f.imageStyle, "image-style", "", "Image style: "+strings.Join(client.ImageStyles, ", "))
	fs.IntVar(&f.imageWidth, "image-width", 0, "Image width in pixels")
	fs.IntVar(&f.imageHeight, "image-height", 0, "Image height in pixels")

	fs.BoolVar(&f.clusterInfo, "cluster-info", false, "Include Membit cluster info as a trend source")
	fs.BoolVar(&f.posts, "posts", false, "Include Membit posts as a trend source")

	fs.StringVar(&f.prompt, "prompt", "", "Prompt template")
	fs.StringVar(&f.promptFile, "prompt-file", "", "Read the prompt template from a file")
}

// draft builds a settings draft from the flags that were changed.
func (f *settingsFlags) draft(fs *pflag.FlagSet) (*settings.Draft, error) {
	var d settings.Draft

	str := func(name string, v string) *string {
		if !fs.Changed(name) {
			return nil
		}

		return &v
	}

	num := func(name string, v int) *int {
		if !fs.Changed(name) {
			return nil
		}

		return &v
	}

	flag := func(name string, v bool) *bool {
		if !fs.Changed(name) {
			return nil
		}

		return &v
	}

	keys := settings.DraftKeys{
		Membit:              str("membit-key", f.membit),
		Gemini:              str("gemini-key", f.gemini),
		TwitterKey:          str("twitter-key", f.twitterKey),
		TwitterSecret:       str("twitter-secret", f.twitterSecret),
		TwitterToken:        str("twitter-token", f.twitterToken),
		TwitterAccessSecret: str("twitter-access-secret", f.twitterAccessSecret),
	}
	if keys != (settings.DraftKeys{}) {
		d.Keys = &keys
	}

	bot := settings.DraftBot{
		ScheduleHours:  num("schedule-hours", f.scheduleHours),
		MaxRetries:     num("max-retries", f.maxRetries),
		MaxTweetLength: num("max-tweet-length", f.maxTweetLength),
	}
	if bot != (settings.DraftBot{}) {
		d.Bot = &bot
	}

	image := settings.DraftImage{
		Enabled: flag("image", f.image),
		Style:   str("image-style", f.imageStyle),
		Width:   num("image-width", f.imageWidth),
		Height:  num("image-height", f.imageHeight),
	}
	if image != (settings.DraftImage{}) {
		d.Image = &image
	}

	source := settings.DraftSource{
		ClusterInfo: flag("cluster-info", f.clusterInfo),
		Posts:       flag("posts", f.posts),
	}
	if source != (settings.DraftSource{}) {
		d.Source = &source
	}

	switch {
	case fs.Changed("prompt") && fs.Changed("prompt-file"):
		return nil, clierrors.InvalidInput("Use either --prompt or --prompt-file, not both")
	case fs.Changed("prompt"):
		d.Prompt = str("prompt", f.prompt)
	case fs.Changed("prompt-file"):
		data, err := os.ReadFile(f.promptFile) //nolint:gosec // G304: operator-supplied prompt file
		if err != nil {
			return nil, clierrors.InvalidInput("Cannot read prompt file: " + err.Error())
		}

		prompt := strings.TrimRight(string(data), "\n")
		d.Prompt = &prompt
	}

	return &d, nil
}

func newSettingsSetCmd() *cobra.Command {
	var (
		flags  settingsFlags
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change individual settings with flags",
		Long: `Change settings by passing only the flags for the values you want to change.
Everything else keeps its current server value. Each changed group (API keys,
configuration, prompt template) is saved with one request; groups that did not
change are not sent.`,
		Example: `  botctl settings set --schedule-hours 4
  botctl settings set --image --image-style realistic
  botctl settings set --membit-key mk_... --gemini-key AIza...
  botctl settings set --prompt-file prompt.txt --dry-run`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := flags.draft(cmd.Flags())
			if err != nil {
				return err
			}

			return saveDraft(cmd.Context(), draft, dryRun)
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show which groups would change without saving")

	return cmd
}

func newSettingsApplyCmd() *cobra.Command {
	var (
		file   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply settings from a YAML or TOML file",
		Long: `Apply a desired-settings document. Only the fields present in the file are
applied; the rest keep their current server value. The file type is chosen by
extension (.yaml, .yml or .toml) and unknown fields are rejected.`,
		Example: `  botctl settings apply -f bot.yaml
  botctl settings apply -f bot.toml --dry-run`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := settings.LoadDraftFile(file)
			if err != nil {
				return clierrors.InvalidInput(err.Error())
			}

			return saveDraft(cmd.Context(), draft, dryRun)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Settings file (.yaml, .yml or .toml)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show which groups would change without saving")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// SaveResult represents a settings save for JSON output.
type SaveResult struct {
	Changed []string `json:"changed"`
	Saved   []string `json:"saved"`
	DryRun  bool     `json:"dry_run,omitempty"`
}

func loadSettingsStore(ctx context.Context) (*settings.Store, error) {
	_, c := newBackendClient(ctx)

	if _, err := requireSession(ctx, c); err != nil {
		return nil, err
	}

	store := settings.NewStore(c, observability.FromContext(ctx))
	if _, err := store.Load(ctx); err != nil {
		return nil, clientError(c.BaseURL(), err)
	}

	return store, nil
}

func saveDraft(ctx context.Context, draft *settings.Draft, dryRun bool) error {
	out := output.FromContext(ctx)

	store, err := loadSettingsStore(ctx)
	if err != nil {
		return err
	}

	next := draft.Apply(store.Baseline())
	changed := store.Diff(next)

	if len(changed) == 0 {
		if out.JSON {
			return out.PrintJSON(SaveResult{Changed: []string{}, Saved: []string{}, DryRun: dryRun})
		}

		out.Info("%s", settings.NoChangesMessage)

		return nil
	}

	if dryRun {
		if err := settings.Validate(next, changed); err != nil {
			return clierrors.InvalidInput(err.Error())
		}

		if out.JSON {
			return out.PrintJSON(SaveResult{Changed: groupLabels(changed), Saved: []string{}, DryRun: true})
		}

		out.Info("Would save: %s", strings.Join(groupLabels(changed), ", "))

		return nil
	}

	spin := out.Spinner("Saving " + strings.Join(groupLabels(changed), ", "))
	spin.Start()

	saved, err := store.Save(ctx, next)
	if err != nil {
		spin.Stop()
		return settingsError(saved, err)
	}

	spin.Stop()

	if out.JSON {
		return out.PrintJSON(SaveResult{Changed: groupLabels(changed), Saved: groupLabels(saved)})
	}

	for _, g := range saved {
		out.Success("Saved %s", g.Label())
	}

	return nil
}

func settingsError(saved []settings.Group, err error) error {
	var (
		validation *client.ValidationError
		saveErr    *settings.SaveError
		sessionErr *client.SessionError
	)

	switch {
	case errors.Is(err, settings.ErrNoChanges):
		return nil
	case errors.As(err, &saveErr):
		if errors.As(err, &sessionErr) {
			return clierrors.SessionExpired()
		}

		cliErr := clierrors.SettingsPartiallySaved(saveErr.FailedLabels(), err)
		if len(saved) > 0 {
			cliErr.Hint = "Saved: " + strings.Join(groupLabels(saved), ", ") + ". " + cliErr.Hint
		}

		return cliErr
	case errors.As(err, &validation):
		return clierrors.InvalidInput(err.Error())
	default:
		return clierrors.Wrap(clierrors.ExitGeneral, "Failed to save settings", err)
	}
}

func groupLabels(groups []settings.Group) []string {
	labels := make([]string, 0, len(groups))
	for _, g := range groups {
		labels = append(labels, g.Label())
	}

	return labels
}
