package main

import (
	"encoding/json"
	"testing"

	"github.com/membit-bot/botctl/internal/doctor"
	"github.com/membit-bot/botctl/internal/testutil"
)

func renderDoctorOutput(results []doctor.Result) string {
	out, buf := testWriter()
	renderDoctor(out, results)

	return buf.String()
}

func TestDoctorOutput_AllPass_Golden(t *testing.T) {
	results := []doctor.Result{
		{Name: "Server", Status: doctor.StatusPass, Message: "http://localhost:5000 (12ms)"},
		{Name: "Session", Status: doctor.StatusPass, Message: "Logged in as admin"},
		{Name: "Stored session", Status: doctor.StatusPass, Message: "keyring"},
		{Name: "API keys", Status: doctor.StatusPass, Message: "Required keys set"},
		{Name: "Live channel", Status: doctor.StatusPass, Message: "Connected"},
	}

	testutil.AssertGolden(t, renderDoctorOutput(results), "doctor_all_pass.golden")
}

func TestDoctorOutput_Mixed_Golden(t *testing.T) {
	results := []doctor.Result{
		{Name: "Server", Status: doctor.StatusPass, Message: "http://localhost:5000 (12ms)"},
		{Name: "Session", Status: doctor.StatusFail, Message: "Not logged in", Detail: "Run 'botctl login' to authenticate"},
		{Name: "API keys", Status: doctor.StatusWarn, Message: "Skipped", Detail: "Log in to check API keys"},
	}

	testutil.AssertGolden(t, renderDoctorOutput(results), "doctor_mixed.golden")
}

func TestDoctor_JSONAgainstBackend(t *testing.T) {
	backend := newTestBackend(t)
	loginBackend(t, backend)
	backend.SetKeys(readyKeys())

	got, err := runJSON(t, newDoctorCmd())
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}

	var results []struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}

	if err := json.Unmarshal([]byte(got), &results); err != nil {
		t.Fatalf("doctor output is not JSON: %v\n%s", err, got)
	}

	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = true
	}

	for _, want := range []string{"Server", "Session", "Stored session", "API keys", "Live channel", "CLI version"} {
		if !names[want] {
			t.Errorf("missing check %q in %v", want, names)
		}
	}

	if backend.SocketConnects() != 1 {
		t.Errorf("socket connects = %d, want 1", backend.SocketConnects())
	}
}
