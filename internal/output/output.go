// Package output writes everything botctl shows on stdout and stderr.
//
// Commands never print directly: they go through a Writer so tests can
// capture output, --json can switch to machine output and --quiet can
// silence everything but failures.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/membit-bot/botctl/internal/terminal"
)

type contextKey struct{}

// Writer handles CLI output with multiple modes.
type Writer struct {
	Out     io.Writer
	Err     io.Writer
	JSON    bool
	Quiet   bool
	Verbose bool
	NoInput bool

	terminal *terminal.Info

	successColor *color.Color
	errorColor   *color.Color
	warningColor *color.Color
	infoColor    *color.Color
	mutedColor   *color.Color
}

// Default returns a Writer configured for stdout/stderr.
func Default() *Writer {
	return NewWriter(os.Stdout, os.Stderr, terminal.Detect())
}

// NewWriter creates a Writer with custom writers and terminal info.
func NewWriter(out, errOut io.Writer, term *terminal.Info) *Writer {
	if !term.ColorEnabled() {
		color.NoColor = true
	}

	return &Writer{
		Out:          out,
		Err:          errOut,
		terminal:     term,
		successColor: color.New(color.FgGreen),
		errorColor:   color.New(color.FgRed),
		warningColor: color.New(color.FgYellow),
		infoColor:    color.New(color.FgCyan),
		mutedColor:   color.New(color.FgHiBlack),
	}
}

// WithContext stores the Writer in the context.
func (w *Writer) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, w)
}

// FromContext retrieves the Writer from context, or returns Default().
func FromContext(ctx context.Context) *Writer {
	if w, ok := ctx.Value(contextKey{}).(*Writer); ok {
		return w
	}

	return Default()
}

// Terminal returns the terminal info.
func (w *Writer) Terminal() *terminal.Info {
	return w.terminal
}

// SetNoColor disables colored output.
func (w *Writer) SetNoColor(disabled bool) {
	w.terminal.ForceFlag = disabled
	if disabled {
		color.NoColor = true
	}
}

// human returns where human-readable text goes. In JSON mode stdout carries
// only the JSON document, so everything else moves to stderr.
func (w *Writer) human() io.Writer {
	if w.JSON {
		return w.Err
	}

	return w.Out
}

// Print writes to stdout unless quiet.
func (w *Writer) Print(format string, args ...any) {
	if !w.Quiet {
		fmt.Fprintf(w.human(), format, args...)
	}
}

// Println writes a line to stdout unless quiet.
func (w *Writer) Println(args ...any) {
	if !w.Quiet {
		fmt.Fprintln(w.human(), args...)
	}
}

// PrintJSON writes v as indented JSON. Quiet mode does not apply.
func (w *Writer) PrintJSON(v any) error {
	enc := json.NewEncoder(w.Out)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// Error writes to stderr.
func (w *Writer) Error(format string, args ...any) {
	fmt.Fprintf(w.Err, format, args...)
}

// Errorln writes a line to stderr.
func (w *Writer) Errorln(args ...any) {
	fmt.Fprintln(w.Err, args...)
}

// Write implements io.Writer, writing to Out.
func (w *Writer) Write(p []byte) (int, error) {
	if w.Quiet {
		return len(p), nil
	}

	return w.human().Write(p)
}

// Debug writes to stdout only in verbose mode.
func (w *Writer) Debug(format string, args ...any) {
	if w.Verbose {
		w.mutedColor.Fprintf(w.human(), "[debug] "+format+"\n", args...)
	}
}

func (w *Writer) writeMarked(dst io.Writer, tone *color.Color, mark, message string) {
	if w.terminal.ColorEnabled() {
		tone.Fprint(dst, mark+" ")
		fmt.Fprintln(dst, message)

		return
	}

	fmt.Fprintln(dst, mark+" "+message)
}

// Success writes a message with a check mark.
func (w *Writer) Success(format string, args ...any) {
	if !w.Quiet {
		w.writeMarked(w.human(), w.successColor, CheckMark, fmt.Sprintf(format, args...))
	}
}

// Failure writes a message with an X mark to stderr. Quiet mode does not apply.
func (w *Writer) Failure(format string, args ...any) {
	w.writeMarked(w.Err, w.errorColor, XMark, fmt.Sprintf(format, args...))
}

// Warning writes a warning message.
func (w *Writer) Warning(format string, args ...any) {
	if !w.Quiet {
		w.writeMarked(w.human(), w.warningColor, WarningMark, fmt.Sprintf(format, args...))
	}
}

// Info writes an informational message.
func (w *Writer) Info(format string, args ...any) {
	if !w.Quiet {
		w.writeMarked(w.human(), w.infoColor, InfoMark, fmt.Sprintf(format, args...))
	}
}

// Muted writes gray text.
func (w *Writer) Muted(format string, args ...any) {
	if w.Quiet {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if w.terminal.ColorEnabled() {
		w.mutedColor.Fprintln(w.human(), msg)
		return
	}

	fmt.Fprintln(w.human(), msg)
}

// Status symbols.
const (
	CheckMark   = "✓"
	XMark       = "✗"
	WarningMark = "⚠"
	InfoMark    = "ℹ"
)

// Spinner creates a spinner for long operations. It degrades to plain
// "message... done" output when spinners are unavailable.
func (w *Writer) Spinner(message string) *Spinner {
	if w.Quiet || w.JSON || !w.terminal.SpinnersEnabled() {
		return &Spinner{disabled: true, message: message, writer: w}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Writer = w.Out
	s.Suffix = " " + message

	return &Spinner{spinner: s, message: message, writer: w}
}

// Spinner wraps briandowns/spinner.
type Spinner struct {
	spinner  *spinner.Spinner
	message  string
	writer   *Writer
	disabled bool
}

// Start begins the animation.
func (s *Spinner) Start() {
	if s.disabled {
		s.writer.Print("%s... ", s.message)
		return
	}

	s.spinner.Start()
}

// Stop stops the animation.
func (s *Spinner) Stop() {
	if !s.disabled {
		s.spinner.Stop()
	}
}

func (s *Spinner) finish(plain string, report func(string, ...any), message string) {
	if s.disabled {
		s.writer.Println(plain)
	} else {
		s.spinner.Stop()
	}

	if message != "" {
		report("%s", message)
	}
}

// StopWithSuccess stops the spinner and reports success.
func (s *Spinner) StopWithSuccess(message string) {
	s.finish("done", s.writer.Success, message)
}

// StopWithFailure stops the spinner and reports failure.
func (s *Spinner) StopWithFailure(message string) {
	s.finish("failed", s.writer.Failure, message)
}

// StopWithWarning stops the spinner and reports a warning.
func (s *Spinner) StopWithWarning(message string) {
	s.finish("warning", s.writer.Warning, message)
}

// UpdateMessage changes the spinner message.
func (s *Spinner) UpdateMessage(message string) {
	s.message = message
	if !s.disabled {
		s.spinner.Suffix = " " + message
	}
}
