package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	clierrors "github.com/membit-bot/botctl/internal/errors"
)

func TestSettingsShow_JSONMasksKeys(t *testing.T) {
	backend := newTestBackend(t)
	loginBackend(t, backend)
	backend.SetKeys(readyKeys())

	got, err := runJSON(t, newSettingsShowCmd())
	if err != nil {
		t.Fatalf("settings show: %v", err)
	}

	var view SettingsView
	if err := json.Unmarshal([]byte(got), &view); err != nil {
		t.Fatalf("settings show output is not JSON: %v\n%s", err, got)
	}

	if !view.KeysReady {
		t.Error("keys_ready = false, want true")
	}

	if view.Config.ScheduleHours != 6 {
		t.Errorf("schedule_hours = %d, want 6", view.Config.ScheduleHours)
	}

	if got := view.Keys["membit_key"]; got != "mb_.****1234" {
		t.Errorf("membit_key = %q, want masked", got)
	}

	if got := view.Keys["twitter_secret"]; got != "(not set)" {
		t.Errorf("twitter_secret = %q, want (not set)", got)
	}
}

func TestSettingsShow_TextWarnsMissingKeys(t *testing.T) {
	backend := newTestBackend(t)
	loginBackend(t, backend)

	got, err := runCmd(t, newSettingsShowCmd())
	if err != nil {
		t.Fatalf("settings show: %v", err)
	}

	for _, want := range []string{"API Keys", "Missing: Membit API Key, Gemini API Key, Twitter API Key", "Write a tweet about {topic}"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestSettingsSet_OnlyChangedGroupIsSent(t *testing.T) {
	backend := newTestBackend(t)
	loginBackend(t, backend)

	got, err := runCmd(t, newSettingsSetCmd(), "--schedule-hours", "4")
	if err != nil {
		t.Fatalf("settings set: %v\n%s", err, got)
	}

	if backend.Config().ScheduleHours != 4 {
		t.Errorf("schedule_hours = %d, want 4", backend.Config().ScheduleHours)
	}

	if backend.Calls("POST", "/api/config") != 1 {
		t.Errorf("config saves = %d, want 1", backend.Calls("POST", "/api/config"))
	}

	if backend.Calls("POST", "/api/keys") != 0 || backend.Calls("POST", "/api/prompt") != 0 {
		t.Error("unchanged groups were sent")
	}

	if !strings.Contains(got, "Saved Configuration") {
		t.Errorf("output = %q, want saved notice", got)
	}
}

func TestSettingsSet_NoChanges(t *testing.T) {
	backend := newTestBackend(t)
	loginBackend(t, backend)

	got, err := runCmd(t, newSettingsSetCmd(), "--schedule-hours", "6")
	if err != nil {
		t.Fatalf("settings set: %v", err)
	}

	if !strings.Contains(got, "No changes detected") {
		t.Errorf("output = %q, want no changes", got)
	}

	if backend.Calls("POST", "/api/config") != 0 {
		t.Error("config saved without changes")
	}
}

func TestSettingsSet_DryRun(t *testing.T) {
	backend := newTestBackend(t)
	loginBackend(t, backend)

	got, err := runJSON(t, newSettingsSetCmd(), "--prompt", "Tweet about {topic} briefly", "--membit-key", "mk_new", "--dry-run")
	if err != nil {
		t.Fatalf("settings set: %v", err)
	}

	var result SaveResult
	if err := json.Unmarshal([]byte(got), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, got)
	}

	if !result.DryRun || strings.Join(result.Changed, ",") != "API Keys,Prompt Template" {
		t.Errorf("result = %+v", result)
	}

	if backend.Calls("POST", "/api/keys") != 0 || backend.Calls("POST", "/api/prompt") != 0 {
		t.Error("dry run sent a save")
	}
}

func TestSettingsSet_InvalidValue(t *testing.T) {
	backend := newTestBackend(t)
	loginBackend(t, backend)

	_, err := runCmd(t, newSettingsSetCmd(), "--schedule-hours", "48")

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) || cliErr.Code != clierrors.ExitUsage {
		t.Fatalf("settings set error = %v, want usage error", err)
	}

	if backend.Calls("POST", "/api/config") != 0 {
		t.Error("invalid config was sent")
	}
}

func TestSettingsSet_PromptFlagsExclusive(t *testing.T) {
	backend := newTestBackend(t)
	loginBackend(t, backend)

	_, err := runCmd(t, newSettingsSetCmd(), "--prompt", "x", "--prompt-file", "p.txt")

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) || cliErr.Code != clierrors.ExitUsage {
		t.Fatalf("settings set error = %v, want usage error", err)
	}
}

func TestSettingsSet_PartialFailureNamesGroups(t *testing.T) {
	backend := newTestBackend(t)
	loginBackend(t, backend)
	backend.Fail("POST", "/api/prompt", 500, `{"error":"disk full"}`)

	_, err := runCmd(t, newSettingsSetCmd(), "--schedule-hours", "3", "--prompt", "New prompt about {topic}")

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) {
		t.Fatalf("settings set error = %v, want CLIError", err)
	}

	if !strings.Contains(cliErr.Message, "Prompt Template") {
		t.Errorf("message = %q, want failed group named", cliErr.Message)
	}

	if !strings.Contains(cliErr.Hint, "Saved: Configuration") {
		t.Errorf("hint = %q, want saved group named", cliErr.Hint)
	}

	if backend.Config().ScheduleHours != 3 {
		t.Errorf("schedule_hours = %d, want 3", backend.Config().ScheduleHours)
	}
}

func TestSettingsApply_YAML(t *testing.T) {
	backend := newTestBackend(t)
	loginBackend(t, backend)

	path := filepath.Join(t.TempDir(), "bot.yaml")
	doc := `bot:
  schedule_hours: 12
image:
  enabled: true
  style: realistic
prompt: "Share one insight about {topic}"
`

	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := runCmd(t, newSettingsApplyCmd(), "-f", path); err != nil {
		t.Fatalf("settings apply: %v", err)
	}

	cfg := backend.Config()

	if cfg.ScheduleHours != 12 || !cfg.EnableImage || cfg.ImageStyle != "realistic" {
		t.Errorf("config = %+v", cfg)
	}

	if cfg.PromptTemplate != "Share one insight about {topic}" {
		t.Errorf("prompt = %q", cfg.PromptTemplate)
	}

	if backend.Calls("POST", "/api/keys") != 0 {
		t.Error("keys were sent without changes")
	}
}

func TestSettingsApply_RejectsUnknownFields(t *testing.T) {
	backend := newTestBackend(t)
	loginBackend(t, backend)

	path := filepath.Join(t.TempDir(), "bot.toml")
	if err := os.WriteFile(path, []byte("[bot]\nschedule_hourz = 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := runCmd(t, newSettingsApplyCmd(), "-f", path)

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) || cliErr.Code != clierrors.ExitUsage {
		t.Fatalf("settings apply error = %v, want usage error", err)
	}
}
