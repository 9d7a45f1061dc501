package main

import (
	"strings"
	"testing"

	clierrors "github.com/membit-bot/botctl/internal/errors"
)

func TestDashboard_RequiresTerminal(t *testing.T) {
	backend := newTestBackend(t)
	loginBackend(t, backend)

	_, err := runCmd(t, newDashboardCmd())

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) || cliErr.Code != clierrors.ExitUsage {
		t.Fatalf("dashboard error = %v, want usage error", err)
	}

	if !strings.Contains(cliErr.Hint, "botctl logs --follow") {
		t.Errorf("hint = %q, want non-interactive alternative", cliErr.Hint)
	}

	if backend.SocketConnects() != 0 {
		t.Error("live channel opened without a terminal")
	}
}
