package dashboard

import "github.com/membit-bot/botctl/internal/client"

// LogCapacity is the number of log entries kept on screen.
const LogCapacity = 100

// LogBuffer is a bounded, insertion-ordered window over the activity log.
// Append never mutates the receiver, so a State holding one stays a value.
type LogBuffer struct {
	entries []client.LogEntry
}

// Append returns a buffer with e added, evicting the oldest entry at capacity.
func (b LogBuffer) Append(e client.LogEntry) LogBuffer {
	start := 0
	if len(b.entries) >= LogCapacity {
		start = len(b.entries) - LogCapacity + 1
	}

	next := make([]client.LogEntry, 0, min(len(b.entries)-start+1, LogCapacity))
	next = append(next, b.entries[start:]...)
	next = append(next, e)

	return LogBuffer{entries: next}
}

// Len returns the number of entries held.
func (b LogBuffer) Len() int {
	return len(b.entries)
}

// Entries returns a copy of the entries, oldest first.
func (b LogBuffer) Entries() []client.LogEntry {
	return append([]client.LogEntry(nil), b.entries...)
}

// Last returns the newest entry.
func (b LogBuffer) Last() (client.LogEntry, bool) {
	if len(b.entries) == 0 {
		return client.LogEntry{}, false
	}

	return b.entries[len(b.entries)-1], true
}
