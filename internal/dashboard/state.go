// Package dashboard is the operator console: a pure reducer over live
// channel events plus the Bubble Tea program that renders it.
package dashboard

import (
	"github.com/membit-bot/botctl/internal/client"
	"github.com/membit-bot/botctl/internal/livechannel"
	"github.com/membit-bot/botctl/internal/session"
)

// AuthRequiredMessage is the error payload that means the session expired.
const AuthRequiredMessage = "Authentication required"

// ReconnectedNotice is shown after the live channel recovers.
const ReconnectedNotice = "Reconnected to server"

// State is everything the dashboard renders.
type State struct {
	Status           client.BotStatus
	Logs             LogBuffer
	Config           client.BotConfig
	CredentialsReady bool

	TerminalOpen bool
	// Unseen is set when a log arrives while the terminal is closed.
	Unseen bool

	// Route leaves RouteDashboard when the session is lost.
	Route  session.Route
	Notice string
}

// NewState returns the state of a freshly mounted dashboard.
func NewState() State {
	return State{Route: session.RouteDashboard, Config: client.DefaultBotConfig()}
}

// Apply folds one live channel event into s.
func Apply(s State, ev livechannel.Event) State {
	switch ev.Kind {
	case livechannel.KindStatus:
		return applyStatus(s, ev.Status)
	case livechannel.KindLog:
		return applyLog(s, ev.Log)
	case livechannel.KindError:
		return applyError(s, ev.Error)
	case livechannel.KindReconnected:
		s.Notice = ReconnectedNotice
		return s
	default:
		return s
	}
}

func applyStatus(s State, status *client.BotStatus) State {
	if status == nil {
		return s
	}

	s.Status = *status

	return s
}

func applyLog(s State, entry *client.LogEntry) State {
	if entry == nil {
		return s
	}

	s.Logs = s.Logs.Append(*entry)
	if !s.TerminalOpen {
		s.Unseen = true
	}

	return s
}

func applyError(s State, message string) State {
	if message == AuthRequiredMessage {
		s.Route = session.RouteLogin
		return s
	}

	s.Notice = message

	return s
}

// OpenTerminal shows the log panel and clears the unseen indicator.
func OpenTerminal(s State) State {
	s.TerminalOpen = true
	s.Unseen = false

	return s
}

// CloseTerminal hides the log panel.
func CloseTerminal(s State) State {
	s.TerminalOpen = false
	return s
}

// WithSettings records loaded settings.
func WithSettings(s State, cfg client.BotConfig, creds client.Credentials) State {
	s.Config = cfg
	s.CredentialsReady = creds.Ready()

	return s
}
