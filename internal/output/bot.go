package output

import (
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/membit-bot/botctl/internal/ansi"
	"github.com/membit-bot/botctl/internal/client"
)

func (w *Writer) levelColor(level client.LogLevel) *color.Color {
	switch level.Normalize() {
	case client.LevelSuccess:
		return w.successColor
	case client.LevelWarning:
		return w.warningColor
	case client.LevelError:
		return w.errorColor
	default:
		return w.infoColor
	}
}

// LogEntry prints one activity log line as "[timestamp] icon message".
func (w *Writer) LogEntry(e client.LogEntry) {
	if w.Quiet {
		return
	}

	prefix := "[" + ansi.Sanitize(e.Timestamp) + "] "
	msg := ansi.Sanitize(e.Message)
	if w.terminal.ColorEnabled() {
		w.mutedColor.Fprint(w.Out, prefix)
		w.levelColor(e.Level).Fprintln(w.Out, e.Level.Icon()+" "+msg)

		return
	}

	w.Println(prefix + e.Level.Icon() + " " + msg)
}

// Table prints label/value rows with labels padded to display width.
func (w *Writer) Table(rows [][2]string) {
	if w.Quiet {
		return
	}

	width := 0
	for _, r := range rows {
		width = max(width, runewidth.StringWidth(r[0]))
	}

	for _, r := range rows {
		label := runewidth.FillRight(r[0]+":", width+1)
		if w.terminal.ColorEnabled() {
			w.mutedColor.Fprint(w.Out, label)
			w.Println("  " + r[1])

			continue
		}

		w.Println(label + "  " + r[1])
	}
}

// StatusRows renders a bot status as table rows.
func StatusRows(s client.BotStatus) [][2]string {
	state := "Stopped"
	if s.Running {
		state = "Running"
	}

	rows := [][2]string{
		{"Status", state},
		{"Last run", orDash(s.LastRun)},
		{"Next run", orDash(s.NextRun)},
		{"Success", strconv.Itoa(s.SuccessCount)},
		{"Errors", strconv.Itoa(s.ErrorCount)},
		{"Total", strconv.Itoa(s.SuccessCount + s.ErrorCount)},
		{"Server total", strconv.Itoa(s.TotalTweets)},
	}

	if s.LastTweet != nil && s.LastTweet.Text != "" {
		rows = append(rows, [2]string{"Last tweet", oneLine(s.LastTweet.Text)})
		if s.LastTweet.URL != "" {
			rows = append(rows, [2]string{"URL", s.LastTweet.URL})
		}
	} else {
		rows = append(rows, [2]string{"Last tweet", "No tweets posted yet"})
	}

	if s.LastError != nil && s.LastError.Message != "" {
		rows = append(rows, [2]string{"Last error", oneLine(s.LastError.Message)})
	}

	return rows
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(ansi.Sanitize(s)), " ")
}
