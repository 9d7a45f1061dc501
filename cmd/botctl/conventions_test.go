package main

import (
	"fmt"
	"regexp"
	"strings"
	"testing"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// collectAllCommands returns every command in the tree (including root).
func collectAllCommands(root *cobra.Command) []*cobra.Command {
	all := []*cobra.Command{root}
	for _, child := range root.Commands() {
		all = append(all, collectAllCommands(child)...)
	}

	return all
}

// commandRule returns one violation per problem found on cmd.
type commandRule func(cmd *cobra.Command) []string

func runnableOnly(rule commandRule) commandRule {
	return func(cmd *cobra.Command) []string {
		if !cmd.Runnable() {
			return nil
		}

		return rule(cmd)
	}
}

var kebabCase = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

func TestCommandConventions(t *testing.T) {
	rules := []struct {
		name string
		hint string
		rule commandRule
	}{
		{
			name: "args validator",
			hint: "Add Args: noArgs (or another validator).",
			rule: runnableOnly(func(cmd *cobra.Command) []string {
				if cmd.Args == nil {
					return []string{"missing Args"}
				}

				return nil
			}),
		},
		{
			name: "example",
			hint: "Add Example: `  botctl <cmd> ...`.",
			rule: runnableOnly(func(cmd *cobra.Command) []string {
				if strings.TrimSpace(cmd.Example) == "" {
					return []string{"missing Example"}
				}

				var bad []string

				for _, line := range strings.Split(cmd.Example, "\n") {
					if strings.TrimSpace(line) != "" && !strings.Contains(line, "botctl ") {
						bad = append(bad, fmt.Sprintf("example line does not invoke botctl: %q", line))
					}
				}

				return bad
			}),
		},
		{
			name: "long description",
			hint: "Long explains the command; examples belong in Example.",
			rule: runnableOnly(func(cmd *cobra.Command) []string {
				switch {
				case strings.TrimSpace(cmd.Long) == "":
					return []string{"missing Long"}
				case strings.Contains(cmd.Long, "Example:"), strings.Contains(cmd.Long, "```"):
					return []string{"example embedded in Long"}
				}

				return nil
			}),
		},
		{
			name: "short description",
			hint: "Short starts uppercase, has no trailing period and fits in 60 characters.",
			rule: func(cmd *cobra.Command) []string {
				short := cmd.Short
				if short == "" {
					return nil
				}

				var bad []string
				if !unicode.IsUpper([]rune(short)[0]) {
					bad = append(bad, "starts lowercase: "+short)
				}

				if strings.HasSuffix(short, ".") {
					bad = append(bad, "ends with period: "+short)
				}

				if len(short) > 60 {
					bad = append(bad, fmt.Sprintf("%d chars: %s", len(short), short))
				}

				return bad
			},
		},
		{
			name: "flags",
			hint: "Flags are kebab-case, shorthands unique, --force is -f and --wait is a duration.",
			rule: func(cmd *cobra.Command) []string {
				var bad []string

				seen := map[string]string{}

				cmd.Flags().VisitAll(func(f *pflag.Flag) {
					if !kebabCase.MatchString(f.Name) {
						bad = append(bad, "not kebab-case: --"+f.Name)
					}

					if f.Shorthand != "" {
						if other, ok := seen[f.Shorthand]; ok {
							bad = append(bad, fmt.Sprintf("-%s claimed by --%s and --%s", f.Shorthand, other, f.Name))
						}

						seen[f.Shorthand] = f.Name
					}

					if f.Name == "force" && f.Shorthand != "f" {
						bad = append(bad, "--force without -f")
					}

					if f.Name == "wait" && f.Value.Type() != "duration" {
						bad = append(bad, "--wait is "+f.Value.Type())
					}
				})

				return bad
			},
		},
	}

	root := newRootCmd()
	commands := collectAllCommands(root)

	for _, tt := range rules {
		t.Run(tt.name, func(t *testing.T) {
			var violations []string

			for _, cmd := range commands {
				for _, v := range tt.rule(cmd) {
					violations = append(violations, cmd.CommandPath()+": "+v)
				}
			}

			if len(violations) > 0 {
				t.Errorf("%s violations:\n  %s\n\n%s", tt.name, strings.Join(violations, "\n  "), tt.hint)
			}
		})
	}
}

// TestDataCommandsSupportJSON forces every data-producing command into
// jsonSupported or jsonDeferred.
func TestDataCommandsSupportJSON(t *testing.T) {
	jsonSupported := map[string]bool{
		"botctl status":        true,
		"botctl logs":          true,
		"botctl settings show": true,
		"botctl history list":  true,
		"botctl history view":  true,
		"botctl config list":   true,
		"botctl version":       true,
	}

	jsonDeferred := map[string]bool{
		"botctl config get": true,
	}

	dataVerbs := map[string]bool{"list": true, "show": true, "status": true, "logs": true, "view": true, "get": true}

	var unregistered []string

	for _, cmd := range collectAllCommands(newRootCmd()) {
		if !cmd.Runnable() || !dataVerbs[cmd.Name()] {
			continue
		}

		path := cmd.CommandPath()
		if !jsonSupported[path] && !jsonDeferred[path] {
			unregistered = append(unregistered, path)
		}
	}

	if len(unregistered) > 0 {
		t.Errorf("data commands not registered for --json support:\n  %s\n\nAdd each command to jsonSupported or jsonDeferred.",
			strings.Join(unregistered, "\n  "))
	}
}

// TestBackendCommandsAreGrouped keeps every command that talks to the bot
// server under one of the two help groups.
func TestBackendCommandsAreGrouped(t *testing.T) {
	local := map[string]bool{
		"config": true, "guide": true, "history": true, "doctor": true,
		"version": true, "completion": true, "help": true,
	}

	for _, cmd := range newRootCmd().Commands() {
		if local[cmd.Name()] {
			continue
		}

		if cmd.GroupID != "session" && cmd.GroupID != "bot" {
			t.Errorf("%s has group %q, want session or bot", cmd.Name(), cmd.GroupID)
		}
	}
}
