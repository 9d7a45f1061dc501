package main

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/membit-bot/botctl/internal/config"
	clierrors "github.com/membit-bot/botctl/internal/errors"
	"github.com/membit-bot/botctl/internal/output"
	"github.com/membit-bot/botctl/internal/paths"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage local CLI configuration",
		Long: `View and modify botctl's own configuration. Bot settings held by the
backend are managed with 'botctl settings'.`,
	}

	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		Long:  `Display all configuration settings and their current values, including defaults.`,
		Example: `  botctl config list
  botctl config list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			settings := configFrom(cmd.Context()).All()

			if out.JSON {
				return out.PrintJSON(settings)
			}

			keys := flattenKeys("", settings)
			sort.Strings(keys)

			for _, key := range keys {
				out.Print("%s = %v\n", key, lookup(settings, key))
			}

			out.Println()

			configFile := "<user config dir>/botctl/config.yaml"
			if resolved, err := paths.ConfigFile(); err == nil {
				configFile = resolved
			}

			out.Muted("Config file: %s", configFile)
			out.Muted("Default server: %s", config.DefaultServerURL)

			return nil
		},
	}
}

// flattenKeys returns dotted keys for the leaves of a nested settings map.
func flattenKeys(prefix string, m map[string]any) []string {
	var keys []string

	for k, v := range m {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}

		if nested, ok := v.(map[string]any); ok {
			keys = append(keys, flattenKeys(full, nested)...)
			continue
		}

		keys = append(keys, full)
	}

	return keys
}

func lookup(m map[string]any, dotted string) any {
	var cur any = m

	for _, part := range strings.Split(dotted, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil
		}

		cur = node[part]
	}

	return cur
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Get a configuration value",
		Long:    `Retrieve and display the current value of a single configuration key.`,
		Example: `  botctl config get server.url`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key := args[0]
			value := configFrom(cmd.Context()).Get(key)

			if value == nil {
				out.Muted("%s is not set", key)
				return nil
			}

			out.Print("%s = %v\n", key, value)

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  `Set a configuration key to the given value. The value is persisted to the config file.`,
		Example: `  botctl config set server.url http://bot.internal:5000
  botctl config set live.command_wait 30`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key, value := args[0], args[1]

			if err := config.Load().Set(key, value); err != nil {
				return clierrors.ConfigFailed("set config", err)
			}

			out.Success("Set %s = %s", key, value)

			return nil
		},
	}
}
