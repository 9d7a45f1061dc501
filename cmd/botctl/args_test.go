package main

import (
	"strings"
	"testing"

	clierrors "github.com/membit-bot/botctl/internal/errors"
)

// TestUsageErrors checks that bad invocations surface as ExitUsage CLI
// errors pointing at the right help page.
func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		message  string
		hintPath string
	}{
		{
			name:     "unknown flag",
			args:     []string{"version", "--bogus"},
			message:  "unknown flag",
			hintPath: "botctl version",
		},
		{
			name:     "extra argument",
			args:     []string{"version", "extra"},
			message:  "accepts no arguments",
			hintPath: "botctl version",
		},
		{
			name:     "bot command with argument",
			args:     []string{"start", "now"},
			message:  "accepts no arguments",
			hintPath: "botctl start",
		},
		{
			name:     "bad wait duration",
			args:     []string{"run-once", "--wait", "soon"},
			message:  "invalid argument",
			hintPath: "botctl run-once",
		},
		{
			name:    "unknown guide topic",
			args:    []string{"guide", "nope"},
			message: "nope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)

			root := newRootCmd()
			root.SetArgs(tt.args)

			err := root.Execute()
			if err == nil {
				t.Fatalf("botctl %s: expected error", strings.Join(tt.args, " "))
			}

			var cliErr *clierrors.CLIError
			if !clierrors.As(err, &cliErr) {
				t.Fatalf("expected CLIError, got %T: %v", err, err)
			}

			if cliErr.Code != clierrors.ExitUsage {
				t.Errorf("exit code = %d, want %d (ExitUsage)", cliErr.Code, clierrors.ExitUsage)
			}

			if !strings.Contains(cliErr.Message, tt.message) {
				t.Errorf("message = %q, want to contain %q", cliErr.Message, tt.message)
			}

			if tt.hintPath == "" {
				return
			}

			if !strings.Contains(cliErr.Hint, tt.hintPath+" --help") {
				t.Errorf("hint = %q, want to point at '%s --help'", cliErr.Hint, tt.hintPath)
			}
		})
	}
}
