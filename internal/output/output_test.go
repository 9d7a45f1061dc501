package output

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/membit-bot/botctl/internal/client"
	"github.com/membit-bot/botctl/internal/terminal"
	"github.com/membit-bot/botctl/internal/testutil"
)

// testTerminal returns a terminal.Info for testing (non-TTY, no color).
func testTerminal() *terminal.Info {
	return &terminal.Info{
		IsTTY:   false,
		NoColor: true,
		Width:   80,
		Height:  24,
	}
}

func newTestWriter() (*Writer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewWriter(&out, &errOut, testTerminal()), &out, &errOut
}

func TestWriter_QuietSuppressesStdout(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
	}{
		{name: "Print", write: func(w *Writer) { w.Print("hello %s", "world") }},
		{name: "Println", write: func(w *Writer) { w.Println("hello") }},
		{name: "Success", write: func(w *Writer) { w.Success("saved") }},
		{name: "Warning", write: func(w *Writer) { w.Warning("careful") }},
		{name: "Info", write: func(w *Writer) { w.Info("note") }},
		{name: "Muted", write: func(w *Writer) { w.Muted("quiet") }},
		{name: "LogEntry", write: func(w *Writer) { w.LogEntry(client.LogEntry{Message: "x"}) }},
		{name: "Table", write: func(w *Writer) { w.Table([][2]string{{"a", "b"}}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out, _ := newTestWriter()
			w.Quiet = true

			tt.write(w)

			if out.Len() != 0 {
				t.Errorf("quiet %s wrote %q", tt.name, out.String())
			}
		})
	}
}

func TestWriter_FailureIgnoresQuiet(t *testing.T) {
	w, out, errOut := newTestWriter()
	w.Quiet = true

	w.Failure("Failed to save: %s", "API Keys")

	if out.Len() != 0 {
		t.Errorf("stdout = %q, want empty", out.String())
	}

	if got := errOut.String(); got != "✗ Failed to save: API Keys\n" {
		t.Errorf("stderr = %q", got)
	}
}

func TestWriter_Write(t *testing.T) {
	w, out, _ := newTestWriter()

	n, err := w.Write([]byte("abc"))
	if err != nil || n != 3 || out.String() != "abc" {
		t.Errorf("Write() = %d, %v, out %q", n, err, out.String())
	}

	w.Quiet = true

	n, err = w.Write([]byte("def"))
	if err != nil || n != 3 || out.String() != "abc" {
		t.Errorf("quiet Write() = %d, %v, out %q", n, err, out.String())
	}
}

func TestWriter_Debug(t *testing.T) {
	w, out, _ := newTestWriter()

	w.Debug("hidden")
	if out.Len() != 0 {
		t.Fatalf("Debug wrote without verbose: %q", out.String())
	}

	w.Verbose = true
	w.Debug("shown %d", 1)

	if !strings.Contains(out.String(), "[debug] shown 1") {
		t.Errorf("Debug() = %q", out.String())
	}
}

func TestWriter_Context(t *testing.T) {
	w, _, _ := newTestWriter()

	ctx := w.WithContext(context.Background())
	if got := FromContext(ctx); got != w {
		t.Error("FromContext() did not return stored writer")
	}

	if FromContext(context.Background()) == nil {
		t.Error("FromContext() without writer returned nil")
	}
}

func TestWriter_SetNoColor(t *testing.T) {
	term := &terminal.Info{IsTTY: true}
	w := NewWriter(&bytes.Buffer{}, &bytes.Buffer{}, term)

	w.SetNoColor(true)

	if w.Terminal().ColorEnabled() {
		t.Error("ColorEnabled() = true after SetNoColor(true)")
	}
}

func TestSpinner_DisabledFallsBackToText(t *testing.T) {
	tests := []struct {
		name string
		stop func(s *Spinner)
		want string
	}{
		{name: "success", stop: func(s *Spinner) { s.StopWithSuccess("Bot started") }, want: "Starting bot... done\n✓ Bot started\n"},
		{name: "warning", stop: func(s *Spinner) { s.StopWithWarning("No status yet") }, want: "Starting bot... warning\n⚠ No status yet\n"},
		{name: "plain stop", stop: func(s *Spinner) { s.Stop() }, want: "Starting bot... "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out, _ := newTestWriter()

			s := w.Spinner("Starting bot")
			s.Start()
			tt.stop(s)

			if got := out.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriter_JSONModeKeepsStdoutForJSON(t *testing.T) {
	w, out, errOut := newTestWriter()
	w.JSON = true

	s := w.Spinner("Signing in")
	s.Start()
	s.StopWithSuccess("Logged in as admin")
	w.Info("Already logged in")

	if err := w.PrintJSON(map[string]string{"username": "admin"}); err != nil {
		t.Fatalf("PrintJSON: %v", err)
	}

	if got, want := out.String(), "{\n  \"username\": \"admin\"\n}\n"; got != want {
		t.Errorf("stdout = %q, want only the JSON document %q", got, want)
	}

	if !strings.Contains(errOut.String(), "Signing in... done") || !strings.Contains(errOut.String(), "Already logged in") {
		t.Errorf("stderr = %q, want the progress text", errOut.String())
	}
}

func TestSpinner_FailureGoesToStderr(t *testing.T) {
	w, out, errOut := newTestWriter()

	s := w.Spinner("Saving")
	s.Start()
	s.StopWithFailure("Network error. Please try again.")

	if out.String() != "Saving... failed\n" {
		t.Errorf("stdout = %q", out.String())
	}

	if errOut.String() != "✗ Network error. Please try again.\n" {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestStatusRows_LastTweetAndError(t *testing.T) {
	rows := StatusRows(client.BotStatus{
		Running:   true,
		LastTweet: &client.TweetRecord{Text: "multi\nline  tweet", URL: "https://x.com/i/1"},
		LastError: &client.ErrorRecord{Message: "quota exceeded"},
	})

	got := map[string]string{}
	for _, r := range rows {
		got[r[0]] = r[1]
	}

	want := map[string]string{
		"Status":     "Running",
		"Last tweet": "multi line tweet",
		"URL":        "https://x.com/i/1",
		"Last error": "quota exceeded",
		"Last run":   "-",
	}

	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestStatusTable_Golden(t *testing.T) {
	w, out, _ := newTestWriter()

	w.Table(StatusRows(client.BotStatus{
		LastRun:      "2025-01-01 10:00:00",
		NextRun:      "2025-01-01 16:00:00",
		TotalTweets:  6,
		SuccessCount: 5,
		ErrorCount:   1,
	}))

	testutil.AssertGolden(t, out.String(), "status_table.golden")
}

func TestLogLines_Golden(t *testing.T) {
	w, out, _ := newTestWriter()

	entries := []client.LogEntry{
		{Level: client.LevelSuccess, Timestamp: "2025-01-01 10:00:00", Message: "Tweet posted"},
		{Level: client.LevelError, Timestamp: "2025-01-01 10:00:01", Message: "Generation failed"},
		{Level: client.LevelWarning, Timestamp: "2025-01-01 10:00:02", Message: "Retrying"},
		{Level: client.LevelInfo, Timestamp: "2025-01-01 10:00:03", Message: "Bot started"},
		{Level: "debug", Timestamp: "2025-01-01 10:00:04", Message: "Unknown level"},
	}

	for _, e := range entries {
		w.LogEntry(e)
	}

	testutil.AssertGolden(t, out.String(), "log_lines.golden")
}

func TestLogEntry_SanitizesServerText(t *testing.T) {
	w, out, _ := newTestWriter()

	w.LogEntry(client.LogEntry{
		Level:     client.LevelError,
		Timestamp: "10:00",
		Message:   "\x1b]0;owned\x07Posting failed:\n\x1b[31mquota\x1b[0m",
	})

	if got, want := out.String(), "[10:00] ✗ Posting failed: quota\n"; got != want {
		t.Errorf("LogEntry() = %q, want %q", got, want)
	}
}

func TestStatusMessages_Golden(t *testing.T) {
	w, out, _ := newTestWriter()

	w.Success("Settings saved")
	w.Warning("Bot is already running")
	w.Info("Connected to %s", "http://localhost:5000")
	w.Muted("Run botctl login to continue")

	testutil.AssertGolden(t, out.String(), "status_messages.golden")
}
