// Package history records live channel activity to disk so past dashboard
// and follow sessions can be reviewed after the fact.
//
// Each session is a directory holding meta.json, a gzip-compressed JSONL
// stream written on Close, and a plain JSONL stream flushed on every record
// so a crashed session can still be read back.
package history

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/membit-bot/botctl/internal/client"
	"github.com/membit-bot/botctl/internal/livechannel"
	"github.com/membit-bot/botctl/internal/paths"
)

const (
	defaultRetention  = 30 * 24 * time.Hour
	entriesFileName   = "entries.jsonl.gz"
	liveFileName      = "entries.live.jsonl"
	metaFileName      = "meta.json"
	kindCommand       = "command"
	recorderBufferLen = 64 * 1024
)

// ErrClosed is returned when recording into a closed Recorder.
var ErrClosed = errors.New("history recorder is closed")

// Entry is one recorded item: a received event or a sent command.
type Entry struct {
	SessionID string            `json:"sessionId"`
	Seq       uint64            `json:"seq"`
	TS        time.Time         `json:"ts"`
	Kind      string            `json:"kind"`
	Status    *client.BotStatus `json:"status,omitempty"`
	Log       *client.LogEntry  `json:"log,omitempty"`
	Error     string            `json:"error,omitempty"`
	Command   string            `json:"command,omitempty"`
}

// Meta describes one recorded session.
type Meta struct {
	SessionID string     `json:"sessionId"`
	Server    string     `json:"server"`
	Source    string     `json:"source"`
	StartedAt time.Time  `json:"startedAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
}

// Options configure a Recorder.
type Options struct {
	SessionID string
	// Dir is the history root; empty means the default state directory.
	Dir    string
	Server string
	// Source names what produced the session, e.g. "dashboard".
	Source string
}

// Recorder appends entries for one session.
type Recorder struct {
	mu sync.Mutex

	meta Meta
	dir  string
	seq  uint64
	now  func() time.Time

	file     *os.File
	gz       *gzip.Writer
	bw       *bufio.Writer
	liveFile *os.File
	liveBW   *bufio.Writer

	closed bool
}

// DefaultDir returns the default history root.
func DefaultDir() (string, error) {
	return paths.HistoryDir()
}

// NewRecorder creates the session directory and opens its streams.
func NewRecorder(opts Options) (*Recorder, error) {
	if err := validateSessionID(opts.SessionID); err != nil {
		return nil, err
	}

	root := opts.Dir
	if root == "" {
		var err error

		root, err = DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("resolve history directory: %w", err)
		}
	}

	dir := filepath.Join(root, opts.SessionID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, entriesFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open history entries: %w", err)
	}

	liveFile, err := os.OpenFile(filepath.Join(dir, liveFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open live history entries: %w", err)
	}

	gz := gzip.NewWriter(f)

	r := &Recorder{
		meta: Meta{
			SessionID: opts.SessionID,
			Server:    opts.Server,
			Source:    opts.Source,
			StartedAt: time.Now().UTC(),
		},
		dir:      dir,
		now:      func() time.Time { return time.Now().UTC() },
		file:     f,
		gz:       gz,
		bw:       bufio.NewWriterSize(gz, recorderBufferLen),
		liveFile: liveFile,
		liveBW:   bufio.NewWriterSize(liveFile, recorderBufferLen),
	}

	if err := r.writeMeta(); err != nil {
		_ = r.Close()
		return nil, err
	}

	return r, nil
}

// SessionID returns the recorded session's id.
func (r *Recorder) SessionID() string {
	return r.meta.SessionID
}

// Record appends a received live channel event.
func (r *Recorder) Record(ev livechannel.Event) error {
	return r.append(Entry{
		Kind:   ev.Kind.String(),
		Status: ev.Status,
		Log:    ev.Log,
		Error:  ev.Error,
	})
}

// RecordCommand appends a sent control command.
func (r *Recorder) RecordCommand(cmd livechannel.Command) error {
	return r.append(Entry{Kind: kindCommand, Command: string(cmd)})
}

func (r *Recorder) append(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	r.seq++
	e.SessionID = r.meta.SessionID
	e.Seq = r.seq
	e.TS = r.now()

	line, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	line = append(line, '\n')

	if _, err := r.bw.Write(line); err != nil {
		return fmt.Errorf("write history entry: %w", err)
	}

	if _, err := r.liveBW.Write(line); err != nil {
		return fmt.Errorf("write live history entry: %w", err)
	}

	if err := r.liveBW.Flush(); err != nil {
		return fmt.Errorf("flush live history entry: %w", err)
	}

	return nil
}

func (r *Recorder) writeMeta() error {
	data, err := json.Marshal(&r.meta)
	if err != nil {
		return fmt.Errorf("marshal history meta: %w", err)
	}

	if err := os.WriteFile(filepath.Join(r.dir, metaFileName), data, 0o600); err != nil {
		return fmt.Errorf("write history meta: %w", err)
	}

	return nil
}

// Close stamps the session closed and flushes both streams. It is idempotent.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true

	closedAt := r.now()
	r.meta.ClosedAt = &closedAt

	errs := []error{r.writeMeta()}

	for _, flush := range []func() error{r.bw.Flush, r.liveBW.Flush, r.gz.Close, r.file.Close, r.liveFile.Close} {
		errs = append(errs, flush())
	}

	return errors.Join(errs...)
}

func validateSessionID(id string) error {
	if id == "" {
		return errors.New("session id is required")
	}

	if id != filepath.Base(id) || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid session id %q", id)
	}

	return nil
}
