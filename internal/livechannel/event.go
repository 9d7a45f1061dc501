package livechannel

import (
	"encoding/json"
	"fmt"

	"github.com/membit-bot/botctl/internal/client"
)

// Kind identifies an inbound event.
type Kind int

// Event kinds. Status, Log and Error mirror server events; Reconnected is
// produced locally after the transport recovers from a drop.
const (
	KindStatus Kind = iota
	KindLog
	KindError
	KindReconnected
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status_update"
	case KindLog:
		return "log"
	case KindError:
		return "error"
	case KindReconnected:
		return "reconnected"
	default:
		return "unknown"
	}
}

// Event is one decoded push from the server.
type Event struct {
	Kind   Kind
	Status *client.BotStatus
	Log    *client.LogEntry
	Error  string

	// Replayed is set on events the server sent while accepting the
	// connection: its current status and log history, not new activity.
	Replayed bool
}

// Command is an outbound control command. Commands carry no payload.
type Command string

// Commands accepted by the backend.
const (
	CommandStart   Command = "start_bot"
	CommandStop    Command = "stop_bot"
	CommandRunOnce Command = "run_once"
)

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	switch c {
	case CommandStart, CommandStop, CommandRunOnce:
		return true
	default:
		return false
	}
}

// errUnknownEvent marks events this client does not handle.
type errUnknownEvent string

func (e errUnknownEvent) Error() string {
	return fmt.Sprintf("unknown event %q", string(e))
}

func decodeEvent(name string, arg json.RawMessage) (Event, error) {
	switch name {
	case "status_update":
		var status client.BotStatus
		if err := json.Unmarshal(arg, &status); err != nil {
			return Event{}, fmt.Errorf("decode status_update: %w", err)
		}

		return Event{Kind: KindStatus, Status: &status}, nil
	case "log":
		var entry client.LogEntry
		if err := json.Unmarshal(arg, &entry); err != nil {
			return Event{}, fmt.Errorf("decode log: %w", err)
		}

		entry.Level = entry.Level.Normalize()

		return Event{Kind: KindLog, Log: &entry}, nil
	case "error":
		var body struct {
			Message string `json:"message"`
		}

		if err := json.Unmarshal(arg, &body); err != nil {
			var s string
			if json.Unmarshal(arg, &s) != nil {
				return Event{}, fmt.Errorf("decode error: %w", err)
			}

			body.Message = s
		}

		return Event{Kind: KindError, Error: body.Message}, nil
	default:
		return Event{}, errUnknownEvent(name)
	}
}
