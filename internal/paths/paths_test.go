package paths

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigRoot_PrefersXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ConfigRoot()
	if err != nil {
		t.Fatalf("ConfigRoot() error = %v", err)
	}

	want := filepath.Join(dir, "botctl")
	if got != want {
		t.Errorf("ConfigRoot() = %q, want %q", got, want)
	}
}

func TestConfigRoot_IgnoresRelativeXDG(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "relative/path")

	got, err := ConfigRoot()
	if err != nil {
		t.Fatalf("ConfigRoot() error = %v", err)
	}

	if strings.HasPrefix(got, "relative") {
		t.Errorf("ConfigRoot() = %q, relative XDG value should be ignored", got)
	}
}

func TestStateRoot_FallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_STATE_HOME", "")

	got, err := StateRoot()
	if err != nil {
		t.Fatalf("StateRoot() error = %v", err)
	}

	want := filepath.Join(home, ".local", "state", "botctl")
	if got != want {
		t.Errorf("StateRoot() = %q, want %q", got, want)
	}
}

func TestSecretFile_SeparatesServers(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	a, err := SecretFile("session", "http://localhost:5000")
	if err != nil {
		t.Fatalf("SecretFile() error = %v", err)
	}

	b, err := SecretFile("session", "https://bot.example.com")
	if err != nil {
		t.Fatalf("SecretFile() error = %v", err)
	}

	if a == b {
		t.Fatalf("SecretFile() returned the same path for different servers: %q", a)
	}

	if !strings.HasPrefix(filepath.Base(a), "session-") {
		t.Errorf("SecretFile() base = %q, want session- prefix", filepath.Base(a))
	}
}

func TestStatePaths_ShareStateRoot(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	logFile, err := DefaultLogFile()
	if err != nil {
		t.Fatalf("DefaultLogFile() error = %v", err)
	}

	history, err := HistoryDir()
	if err != nil {
		t.Fatalf("HistoryDir() error = %v", err)
	}

	if want := filepath.Join(state, "botctl", "logs", "botctl.log"); logFile != want {
		t.Errorf("DefaultLogFile() = %q, want %q", logFile, want)
	}

	if want := filepath.Join(state, "botctl", "history"); history != want {
		t.Errorf("HistoryDir() = %q, want %q", history, want)
	}
}
