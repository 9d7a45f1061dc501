// Package ansi cleans server-supplied text before it is written to a
// terminal. Log messages, errors and tweet text arrive from the backend
// verbatim and must not be able to move the cursor, retitle the window or
// repaint the dashboard.
package ansi

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// Strip removes ANSI escape sequences (CSI, OSC, DCS and friends) from s.
func Strip(s string) string {
	return xansi.Strip(s)
}

// Sanitize strips escape sequences and replaces every remaining control
// character, including newlines, with a space. The result is safe to print
// on a single terminal line.
func Sanitize(s string) string {
	s = Strip(s)

	return strings.Map(func(r rune) rune {
		if isControl(r) {
			return ' '
		}

		return r
	}, s)
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f || (r >= 0x80 && r <= 0x9f)
}
