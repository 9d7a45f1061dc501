package main

import (
	"embed"
	"strings"

	"github.com/spf13/cobra"

	clierrors "github.com/membit-bot/botctl/internal/errors"
	"github.com/membit-bot/botctl/internal/output"
)

//go:embed guide/*.txt
var guideFS embed.FS

type guideTopic struct {
	name    string
	summary string
}

var guideTopics = []guideTopic{
	{"usage", "Getting API keys, configuring and operating the bot"},
	{"prompt", "Writing an effective prompt template"},
	{"rate-limits", "Twitter API limits and safe schedules"},
	{"troubleshooting", "Common problems and fixes"},
}

func guideTopicNames() []string {
	names := make([]string, 0, len(guideTopics))
	for _, t := range guideTopics {
		names = append(names, t.name)
	}

	return names
}

func newGuideCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guide [topic]",
		Short: "Read the operator guide",
		Long: `Read the operator guide. Without a topic, list the available topics.
Topics cover first-time configuration, the prompt template, Twitter rate
limits and troubleshooting.`,
		Example: `  botctl guide
  botctl guide usage
  botctl guide rate-limits`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: guideTopicNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			if len(args) == 0 {
				out.Println("Guide topics:")

				for _, t := range guideTopics {
					out.Print("  %-16s %s\n", t.name, t.summary)
				}

				out.Println()
				out.Muted("Run 'botctl guide <topic>' to read one")

				return nil
			}

			topic := strings.ToLower(args[0])

			data, err := guideFS.ReadFile("guide/" + topic + ".txt")
			if err != nil {
				return clierrors.UnknownGuideTopic(args[0], guideTopicNames())
			}

			out.Print("%s", data)

			return nil
		},
	}
}
