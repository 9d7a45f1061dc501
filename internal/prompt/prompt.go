// Package prompt reads interactive answers for setup, login and settings.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/membit-bot/botctl/internal/output"
)

var errCanceled = errors.New("prompt canceled")

// IsCanceled reports whether err came from the operator closing input.
func IsCanceled(err error) bool {
	return errors.Is(err, errCanceled)
}

// Prompter handles interactive prompts.
type Prompter struct {
	out    *output.Writer
	in     io.Reader
	reader *bufio.Reader
}

// New creates a Prompter reading from stdin.
func New(out *output.Writer) *Prompter {
	return NewWithInput(out, os.Stdin)
}

// NewWithInput creates a Prompter reading from in. Hidden input is only
// used when in is a terminal.
func NewWithInput(out *output.Writer, in io.Reader) *Prompter {
	return &Prompter{out: out, in: in, reader: bufio.NewReader(in)}
}

// CanPrompt reports whether interactive prompts are available.
func (p *Prompter) CanPrompt() bool {
	return p.out.Terminal().InteractiveEnabled() && !p.out.NoInput
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if errors.Is(err, io.EOF) && line == "" {
		return "", errCanceled
	}

	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// Input prompts for a line of text. An empty answer returns def.
func (p *Prompter) Input(label, def string) (string, error) {
	if def != "" {
		p.out.Print("%s [%s]: ", label, def)
	} else {
		p.out.Print("%s: ", label)
	}

	line, err := p.readLine()
	if err != nil {
		return "", err
	}

	if line = strings.TrimSpace(line); line == "" {
		return def, nil
	}

	return line, nil
}

// Confirm prompts for a yes/no confirmation.
func (p *Prompter) Confirm(message string, defaultValue bool) (bool, error) {
	hint := "y/N"
	if defaultValue {
		hint = "Y/n"
	}

	p.out.Print("%s [%s]: ", message, hint)

	line, err := p.readLine()
	if err != nil {
		return defaultValue, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return defaultValue, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Password prompts for a secret without echo when reading from a terminal.
func (p *Prompter) Password(label string) (string, error) {
	p.out.Print("%s: ", label)

	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		p.out.Println()

		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		return string(secret), nil
	}

	return p.readLine()
}

// Select prompts for one of options and returns its index.
func (p *Prompter) Select(message string, options []string, def int) (int, error) {
	p.out.Println(message)

	for i, opt := range options {
		p.out.Print("  [%d] %s\n", i+1, opt)
	}

	for {
		p.out.Print("Select [1-%d] (%d): ", len(options), def+1)

		line, err := p.readLine()
		if err != nil {
			return -1, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			return def, nil
		}

		n, convErr := strconv.Atoi(line)
		if convErr != nil || n < 1 || n > len(options) {
			p.out.Warning("Invalid selection. Please enter a number between 1 and %d", len(options))
			continue
		}

		return n - 1, nil
	}
}
