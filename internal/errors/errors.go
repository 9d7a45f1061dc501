// Package errors provides structured CLI error types for botctl.
//
// CLIError wraps errors with user-facing messages, hints, and exit codes
// to provide consistent, actionable error output across all commands.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Exit codes for CLI errors.
const (
	ExitSuccess = 0  // Successful execution
	ExitGeneral = 1  // General error
	ExitAuth    = 2  // Authentication error
	ExitNetwork = 3  // Network/API error
	ExitConfig  = 4  // Configuration error
	ExitUsage   = 64 // Command line usage error (BSD convention)
)

// CLIError represents a user-facing CLI error with actionable guidance.
type CLIError struct {
	// Message is the primary error message shown to the user.
	Message string

	// Hint provides actionable guidance on how to fix the error.
	Hint string

	// Cause is the underlying error, if any.
	Cause error

	// Code is the exit code for the CLI.
	Code int
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// New creates a new CLIError with the given message and exit code.
func New(code int, message string) *CLIError {
	return &CLIError{
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an existing error with a CLIError.
func Wrap(code int, message string, cause error) *CLIError {
	return &CLIError{
		Message: message,
		Cause:   cause,
		Code:    code,
	}
}

// WithHint adds a hint to the error.
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// As is a convenience function for errors.As with CLIError.
func As(err error, target **CLIError) bool {
	return errors.As(err, target)
}

// --- Common error constructors ---

// SetupRequired is returned when the backend has no operator account yet.
func SetupRequired() *CLIError {
	return &CLIError{
		Message: "Initial setup has not been completed",
		Hint:    "Run 'botctl setup' to create the operator account",
		Code:    ExitAuth,
	}
}

// NotAuthenticated returns an error indicating there is no valid session.
func NotAuthenticated() *CLIError {
	return &CLIError{
		Message: "Not logged in",
		Hint:    "Run 'botctl login' to authenticate",
		Code:    ExitAuth,
	}
}

// SessionExpired is returned when an authenticated call is refused mid-session.
func SessionExpired() *CLIError {
	return &CLIError{
		Message: "Session expired",
		Hint:    "Run 'botctl login' to sign in again",
		Code:    ExitAuth,
	}
}

// Rejected wraps a message the server returned verbatim.
func Rejected(message string) *CLIError {
	return &CLIError{
		Message: message,
		Code:    ExitAuth,
	}
}

// ServerUnreachable returns an error for transport failures.
func ServerUnreachable(serverURL string, cause error) *CLIError {
	return &CLIError{
		Message: "Network error. Please try again.",
		Hint:    fmt.Sprintf("Check that the bot backend is running at %s or set server.url", serverURL),
		Cause:   cause,
		Code:    ExitNetwork,
	}
}

// InvalidInput returns an error for input rejected before any request was sent.
func InvalidInput(message string) *CLIError {
	return &CLIError{
		Message: message,
		Code:    ExitUsage,
	}
}

// CannotPrompt returns an error when interactive prompts are unavailable.
func CannotPrompt(alternative string) *CLIError {
	return &CLIError{
		Message: "Cannot prompt in non-interactive mode",
		Hint:    alternative,
		Code:    ExitUsage,
	}
}

// ConfigFailed returns an error for local configuration or secret store failures.
func ConfigFailed(operation string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to %s", operation),
		Hint:    "Check file permissions for your botctl config directory or run 'botctl doctor'",
		Cause:   cause,
		Code:    ExitConfig,
	}
}

// CredentialsMissing is returned when a bot command needs API keys that are unset.
func CredentialsMissing() *CLIError {
	return &CLIError{
		Message: "Bot API keys are not configured",
		Hint:    "Run 'botctl settings set --membit-key ... --gemini-key ... --twitter-key ...'",
		Code:    ExitConfig,
	}
}

// CommandRefused wraps an error event the server sent in reply to a bot command.
func CommandRefused(message string) *CLIError {
	return &CLIError{
		Message: message,
		Hint:    "Run 'botctl status' to see the bot state or 'botctl settings show' to check the API keys",
		Code:    ExitGeneral,
	}
}

// SettingsPartiallySaved is returned when some settings groups failed to save.
func SettingsPartiallySaved(failed []string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to save: %s", strings.Join(failed, ", ")),
		Hint:    "Groups not listed were saved; re-run the command to retry the failed ones",
		Cause:   cause,
		Code:    ExitGeneral,
	}
}

// LiveChannelFailed returns an error when the live channel cannot be opened.
func LiveChannelFailed(cause error) *CLIError {
	return &CLIError{
		Message: "Failed to connect to the live channel",
		Hint:    "Check that the backend is running and your session is valid ('botctl whoami')",
		Cause:   cause,
		Code:    ExitNetwork,
	}
}

// UnknownGuideTopic returns an error for an unknown guide topic.
func UnknownGuideTopic(topic string, topics []string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Unknown guide topic: %s", topic),
		Hint:    fmt.Sprintf("Available topics: %s", strings.Join(topics, ", ")),
		Code:    ExitUsage,
	}
}
