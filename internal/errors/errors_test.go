package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCLIError_ErrorIncludesCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := ServerUnreachable("http://localhost:5000", cause)

	if !strings.Contains(err.Error(), "Network error") {
		t.Errorf("Error() = %q, want network wording", err.Error())
	}

	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q, want cause included", err.Error())
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	if err.Code != ExitNetwork {
		t.Errorf("Code = %d, want %d", err.Code, ExitNetwork)
	}
}

func TestAs_FindsWrappedCLIError(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", NotAuthenticated())

	var cliErr *CLIError
	if !As(wrapped, &cliErr) {
		t.Fatal("As() = false, want true")
	}

	if cliErr.Code != ExitAuth {
		t.Errorf("Code = %d, want %d", cliErr.Code, ExitAuth)
	}
}

func TestSettingsPartiallySaved_NamesGroups(t *testing.T) {
	err := SettingsPartiallySaved([]string{"Configuration", "Prompt Template"}, nil)

	if err.Message != "Failed to save: Configuration, Prompt Template" {
		t.Errorf("Message = %q", err.Message)
	}

	if err.Hint == "" {
		t.Error("Hint should explain that other groups were saved")
	}
}

func TestConstructors_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *CLIError
		want int
	}{
		{name: "setup required", err: SetupRequired(), want: ExitAuth},
		{name: "not authenticated", err: NotAuthenticated(), want: ExitAuth},
		{name: "session expired", err: SessionExpired(), want: ExitAuth},
		{name: "rejected", err: Rejected("Invalid credentials"), want: ExitAuth},
		{name: "invalid input", err: InvalidInput("Code must be 6 digits"), want: ExitUsage},
		{name: "cannot prompt", err: CannotPrompt("pass --username"), want: ExitUsage},
		{name: "config failed", err: ConfigFailed("store session", nil), want: ExitConfig},
		{name: "credentials missing", err: CredentialsMissing(), want: ExitConfig},
		{name: "command refused", err: CommandRefused("Bot is already running"), want: ExitGeneral},
		{name: "live channel", err: LiveChannelFailed(nil), want: ExitNetwork},
		{name: "guide topic", err: UnknownGuideTopic("x", []string{"usage"}), want: ExitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.want {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.want)
			}
		})
	}
}

func TestWithHint(t *testing.T) {
	err := New(ExitGeneral, "boom").WithHint("try again")
	if err.Hint != "try again" {
		t.Errorf("Hint = %q, want %q", err.Hint, "try again")
	}
}
