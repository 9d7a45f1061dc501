// Package authflow implements the first-run setup wizard and the login form.
//
// Both validate locally before any request is sent and map server outcomes
// onto the client error taxonomy.
package authflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// CodeLength is the number of digits in a one-time code.
const CodeLength = 6

// CodeField holds a one-time code as it is entered. Non-digits never reach it.
type CodeField struct {
	value string
}

// Type appends keystrokes, dropping non-digits and anything past CodeLength.
func (f *CodeField) Type(input string) {
	for _, r := range StripNonDigits(input) {
		if len(f.value) >= CodeLength {
			return
		}

		f.value += string(r)
	}
}

// Set replaces the field with the digits of input. Unlike Type it does not
// truncate, so a pasted code of the wrong length still fails validation.
func (f *CodeField) Set(input string) {
	f.value = StripNonDigits(input)
}

// Backspace removes the last digit.
func (f *CodeField) Backspace() {
	if f.value != "" {
		f.value = f.value[:len(f.value)-1]
	}
}

// Clear empties the field.
func (f *CodeField) Clear() {
	f.value = ""
}

// Value returns the digits entered so far.
func (f CodeField) Value() string {
	return f.value
}

// Complete reports whether the field holds exactly CodeLength digits.
func (f CodeField) Complete() bool {
	return len(f.value) == CodeLength
}

// StripNonDigits removes every character that is not 0-9.
func StripNonDigits(s string) string {
	var b strings.Builder

	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// GenerateCode derives the current 6-digit code from an enrollment secret.
func GenerateCode(secret string, now time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(strings.ToUpper(strings.TrimSpace(secret)), now, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("generate one-time code: %w", err)
	}

	return code, nil
}
