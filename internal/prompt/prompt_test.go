package prompt

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/membit-bot/botctl/internal/output"
	"github.com/membit-bot/botctl/internal/terminal"
)

func newTestPrompter(input string) (*Prompter, *bytes.Buffer) {
	var out bytes.Buffer

	w := output.NewWriter(&out, &out, &terminal.Info{NoColor: true})

	return NewWithInput(w, strings.NewReader(input)), &out
}

func TestIsCanceled(t *testing.T) {
	if !IsCanceled(errCanceled) {
		t.Fatal("IsCanceled(errCanceled) = false, want true")
	}

	if !IsCanceled(errors.Join(errors.New("other"), errCanceled)) {
		t.Fatal("IsCanceled(wrapped errCanceled) = false, want true")
	}

	if IsCanceled(errors.New("not canceled")) {
		t.Fatal("IsCanceled(unrelated error) = true, want false")
	}
}

func TestInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		def   string
		want  string
	}{
		{name: "answer", input: "admin\n", want: "admin"},
		{name: "default", input: "\n", def: "http://localhost:5000", want: "http://localhost:5000"},
		{name: "trimmed", input: "  admin  \n", want: "admin"},
		{name: "no trailing newline", input: "admin", want: "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPrompter(tt.input)

			got, err := p.Input("Username", tt.def)
			if err != nil {
				t.Fatalf("Input() error = %v", err)
			}

			if got != tt.want {
				t.Errorf("Input() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInput_EOFIsCanceled(t *testing.T) {
	p, _ := newTestPrompter("")

	if _, err := p.Input("Username", ""); !IsCanceled(err) {
		t.Errorf("Input() error = %v, want canceled", err)
	}
}

func TestPassword_NonTerminalReadsLine(t *testing.T) {
	p, out := newTestPrompter("password123\n")

	got, err := p.Password("Password")
	if err != nil || got != "password123" {
		t.Fatalf("Password() = %q, %v", got, err)
	}

	if out.String() != "Password: " {
		t.Errorf("prompt = %q", out.String())
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		def   bool
		want  bool
	}{
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", true, false},
		{"\n", true, true},
		{"\n", false, false},
		{"maybe\n", true, false},
	}

	for _, tt := range tests {
		p, _ := newTestPrompter(tt.input)

		got, err := p.Confirm("Continue?", tt.def)
		if err != nil || got != tt.want {
			t.Errorf("Confirm(%q, %v) = %v, %v; want %v", tt.input, tt.def, got, err, tt.want)
		}
	}
}

func TestSelect_RetriesOnInvalid(t *testing.T) {
	p, out := newTestPrompter("9\nabc\n2\n")

	got, err := p.Select("Image style", []string{"digital art", "realistic", "minimalist"}, 0)
	if err != nil || got != 1 {
		t.Fatalf("Select() = %d, %v; want 1", got, err)
	}

	if strings.Count(out.String(), "Invalid selection") != 2 {
		t.Errorf("output = %q", out.String())
	}
}

func TestSelect_Default(t *testing.T) {
	p, _ := newTestPrompter("\n")

	got, err := p.Select("Image style", []string{"a", "b"}, 1)
	if err != nil || got != 1 {
		t.Errorf("Select() = %d, %v; want 1", got, err)
	}
}
