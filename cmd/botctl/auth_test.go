package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/membit-bot/botctl/internal/auth"
	"github.com/membit-bot/botctl/internal/client"
	clierrors "github.com/membit-bot/botctl/internal/errors"
	"github.com/membit-bot/botctl/internal/testutil"
)

// newTestBackend starts a fake backend and points the CLI at it.
func newTestBackend(t *testing.T) *testutil.Backend {
	t.Helper()

	isolateEnv(t)

	backend := testutil.NewBackend(t)
	t.Setenv("BOTCTL_SERVER_URL", backend.URL())

	return backend
}

// loginBackend marks the backend session live and stores its cookie.
func loginBackend(t *testing.T, backend *testutil.Backend) {
	t.Helper()

	backend.SetSession(client.Session{SetupCompleted: true, LoggedIn: true, Username: testutil.BackendUsername})

	if _, err := auth.StoreSessionCookie(backend.URL(), testutil.BackendCookie); err != nil {
		t.Fatalf("store session cookie: %v", err)
	}
}

func TestSetup_NonInteractive(t *testing.T) {
	backend := newTestBackend(t)
	backend.SetSession(client.Session{})
	t.Setenv(passwordEnv, testutil.BackendPassword)

	dir := t.TempDir()
	codesFile := filepath.Join(dir, "codes.txt")

	got, err := runCmd(t, newSetupCmd(),
		"--username", testutil.BackendUsername,
		"--code", testutil.BackendCode,
		"--qr-file", filepath.Join(dir, "qr.png"),
		"--backup-codes-file", codesFile,
	)
	if err != nil {
		t.Fatalf("setup: %v\n%s", err, got)
	}

	if !backend.Session().SetupCompleted {
		t.Error("backend setup not completed")
	}

	for _, want := range []string{testutil.BackendSecret, "A1B2C3D4", "Setup complete for admin"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	codes, err := os.ReadFile(codesFile)
	if err != nil {
		t.Fatalf("read backup codes file: %v", err)
	}

	if !strings.Contains(string(codes), "E5F6A7B8") {
		t.Errorf("backup codes file = %q, want both codes", codes)
	}
}

func TestSetup_RememberSecret(t *testing.T) {
	backend := newTestBackend(t)
	backend.SetSession(client.Session{})
	t.Setenv(passwordEnv, testutil.BackendPassword)

	dir := t.TempDir()

	_, err := runCmd(t, newSetupCmd(),
		"--username", testutil.BackendUsername,
		"--code", testutil.BackendCode,
		"--qr-file", "",
		"--backup-codes-file", filepath.Join(dir, "codes.txt"),
		"--remember-secret",
	)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	if _, secret := auth.Get(auth.KindTOTP, backend.URL()); secret != testutil.BackendSecret {
		t.Errorf("stored secret = %q, want %q", secret, testutil.BackendSecret)
	}
}

func TestSetup_WrongCodeKeepsSetupOpen(t *testing.T) {
	backend := newTestBackend(t)
	backend.SetSession(client.Session{})
	t.Setenv(passwordEnv, testutil.BackendPassword)

	dir := t.TempDir()

	_, err := runCmd(t, newSetupCmd(),
		"--username", testutil.BackendUsername,
		"--code", "000000",
		"--qr-file", "",
		"--backup-codes-file", filepath.Join(dir, "codes.txt"),
	)
	if err == nil {
		t.Fatal("expected error for wrong code")
	}

	if backend.Session().SetupCompleted {
		t.Error("setup completed despite a wrong code")
	}
}

func TestSetup_AlreadyComplete(t *testing.T) {
	newTestBackend(t)

	got, err := runCmd(t, newSetupCmd())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	if !strings.Contains(got, "Setup is already complete") {
		t.Errorf("output = %q, want already complete notice", got)
	}
}

func TestSetup_NonInteractiveNeedsPassword(t *testing.T) {
	backend := newTestBackend(t)
	backend.SetSession(client.Session{})

	_, err := runCmd(t, newSetupCmd(), "--username", testutil.BackendUsername)

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) || cliErr.Code != clierrors.ExitUsage {
		t.Fatalf("setup error = %v, want usage error", err)
	}

	if !strings.Contains(cliErr.Hint, passwordEnv) {
		t.Errorf("hint = %q, want to mention %s", cliErr.Hint, passwordEnv)
	}
}

func TestLogin_StoresSessionCookie(t *testing.T) {
	backend := newTestBackend(t)
	t.Setenv(passwordEnv, testutil.BackendPassword)

	got, err := runCmd(t, newLoginCmd(), "--username", testutil.BackendUsername, "--code", testutil.BackendCode)
	if err != nil {
		t.Fatalf("login: %v\n%s", err, got)
	}

	if !strings.Contains(got, "Logged in as admin") {
		t.Errorf("output = %q, want success message", got)
	}

	if _, cookie := auth.SessionCookie(backend.URL()); cookie != testutil.BackendCookie {
		t.Errorf("stored cookie = %q, want %q", cookie, testutil.BackendCookie)
	}
}

func TestLogin_JSON(t *testing.T) {
	backend := newTestBackend(t)
	t.Setenv(passwordEnv, testutil.BackendPassword)

	got, err := runJSON(t, newLoginCmd(), "--username", testutil.BackendUsername, "--code", testutil.BackendCode)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	var status LoginStatus
	if err := json.Unmarshal([]byte(got), &status); err != nil {
		t.Fatalf("login output is not JSON: %v\n%s", err, got)
	}

	if status.Username != testutil.BackendUsername || status.Server != backend.URL() {
		t.Errorf("status = %+v", status)
	}
}

func TestLogin_FromKeyringSecret(t *testing.T) {
	backend := newTestBackend(t)
	t.Setenv(passwordEnv, testutil.BackendPassword)

	// The fake accepts only its fixed code, so a stored secret must reach the
	// server as a well-formed code; a rejection proves the keyring path ran.
	if _, err := auth.Store(auth.KindTOTP, backend.URL(), testutil.BackendSecret); err != nil {
		t.Fatalf("store secret: %v", err)
	}

	_, err := runCmd(t, newLoginCmd(), "--username", testutil.BackendUsername, "--totp-from-keyring")
	if err != nil {
		var cliErr *clierrors.CLIError
		if !clierrors.As(err, &cliErr) || cliErr.Message != "Invalid verification code" {
			t.Fatalf("login error = %v, want success or a code rejection", err)
		}
	}

	if backend.Calls("POST", "/api/auth/login") != 1 {
		t.Errorf("login calls = %d, want 1", backend.Calls("POST", "/api/auth/login"))
	}
}

func TestLogin_KeyringWithoutSecret(t *testing.T) {
	newTestBackend(t)
	t.Setenv(passwordEnv, testutil.BackendPassword)

	_, err := runCmd(t, newLoginCmd(), "--username", testutil.BackendUsername, "--totp-from-keyring")

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) || cliErr.Code != clierrors.ExitConfig {
		t.Fatalf("login error = %v, want config error", err)
	}
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name     string
		password string
		code     string
		wantCode int
		wantMsg  string
	}{
		{
			name:     "wrong password",
			password: "nope",
			code:     testutil.BackendCode,
			wantCode: clierrors.ExitAuth,
			wantMsg:  "Invalid credentials",
		},
		{
			name:     "wrong code",
			password: testutil.BackendPassword,
			code:     "000000",
			wantCode: clierrors.ExitAuth,
			wantMsg:  "Invalid verification code",
		},
		{
			name:     "malformed code",
			password: testutil.BackendPassword,
			code:     "12ab",
			wantCode: clierrors.ExitUsage,
		},
		{
			name:     "no password",
			code:     testutil.BackendCode,
			wantCode: clierrors.ExitUsage,
			wantMsg:  "Cannot prompt in non-interactive mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newTestBackend(t)
			t.Setenv(passwordEnv, tt.password)

			_, err := runCmd(t, newLoginCmd(), "--username", testutil.BackendUsername, "--code", tt.code)

			var cliErr *clierrors.CLIError
			if !clierrors.As(err, &cliErr) {
				t.Fatalf("login error = %v, want CLIError", err)
			}

			if cliErr.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", cliErr.Code, tt.wantCode)
			}

			if tt.wantMsg != "" && cliErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", cliErr.Message, tt.wantMsg)
			}

			if _, cookie := auth.SessionCookie(backend.URL()); cookie != "" {
				t.Errorf("cookie stored after failed login: %q", cookie)
			}
		})
	}
}

func TestLogin_SetupPending(t *testing.T) {
	backend := newTestBackend(t)
	backend.SetSession(client.Session{})

	_, err := runCmd(t, newLoginCmd())

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) || cliErr.Hint != clierrors.SetupRequired().Hint {
		t.Fatalf("login error = %v, want setup required", err)
	}
}

func TestLogin_AlreadyLoggedIn(t *testing.T) {
	backend := newTestBackend(t)
	loginBackend(t, backend)

	got, err := runCmd(t, newLoginCmd())
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if !strings.Contains(got, "Already logged in as admin") {
		t.Errorf("output = %q, want already logged in", got)
	}

	if backend.Calls("POST", "/api/auth/login") != 0 {
		t.Error("login request sent for a live session")
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	backend := newTestBackend(t)
	loginBackend(t, backend)

	got, err := runCmd(t, newLogoutCmd())
	if err != nil {
		t.Fatalf("logout: %v", err)
	}

	if !strings.Contains(got, "Logged out") {
		t.Errorf("output = %q, want Logged out", got)
	}

	if backend.Calls("POST", "/api/auth/logout") != 1 {
		t.Error("server logout not called")
	}

	if _, cookie := auth.SessionCookie(backend.URL()); cookie != "" {
		t.Errorf("cookie still stored: %q", cookie)
	}
}

func TestLogout_NoSession(t *testing.T) {
	backend := newTestBackend(t)

	got, err := runCmd(t, newLogoutCmd())
	if err != nil {
		t.Fatalf("logout: %v", err)
	}

	if !strings.Contains(got, "No stored session found") {
		t.Errorf("output = %q, want no session notice", got)
	}

	if backend.Calls("POST", "/api/auth/logout") != 0 {
		t.Error("server logout called without a cookie")
	}
}

func TestWhoami(t *testing.T) {
	t.Run("logged in json", func(t *testing.T) {
		backend := newTestBackend(t)
		loginBackend(t, backend)

		got, err := runJSON(t, newWhoamiCmd())
		if err != nil {
			t.Fatalf("whoami: %v", err)
		}

		var status WhoamiStatus
		if err := json.Unmarshal([]byte(got), &status); err != nil {
			t.Fatalf("whoami output is not JSON: %v\n%s", err, got)
		}

		if status.Route != "dashboard" || status.Username != testutil.BackendUsername {
			t.Errorf("status = %+v", status)
		}
	})

	t.Run("logged out", func(t *testing.T) {
		newTestBackend(t)

		_, err := runCmd(t, newWhoamiCmd())

		var cliErr *clierrors.CLIError
		if !clierrors.As(err, &cliErr) || cliErr.Message != "Not logged in" {
			t.Fatalf("whoami error = %v, want not logged in", err)
		}
	})

	t.Run("stale cookie", func(t *testing.T) {
		backend := newTestBackend(t)
		loginBackend(t, backend)
		backend.SetSession(client.Session{SetupCompleted: true, Username: testutil.BackendUsername})

		got, err := runJSON(t, newWhoamiCmd())
		if err != nil {
			t.Fatalf("whoami: %v", err)
		}

		if !strings.Contains(got, `"route": "login"`) {
			t.Errorf("output = %q, want login route", got)
		}
	})
}
