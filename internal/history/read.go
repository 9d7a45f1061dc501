package history

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Session describes one stored session.
type Session struct {
	Meta
	Path string `json:"path"`
}

// DefaultRetention returns the default prune window.
func DefaultRetention() time.Duration {
	return defaultRetention
}

func resolveRoot(root string) (string, error) {
	if root != "" {
		return root, nil
	}

	dir, err := DefaultDir()
	if err != nil {
		return "", fmt.Errorf("resolve history directory: %w", err)
	}

	return dir, nil
}

// ListSessions returns recorded sessions, newest first. Directories without
// readable metadata are skipped.
func ListSessions(root string) ([]Session, error) {
	root, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("list history sessions: %w", err)
	}

	sessions := make([]Session, 0, len(entries))

	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}

		dir := filepath.Join(root, ent.Name())

		data, readErr := os.ReadFile(filepath.Join(dir, metaFileName))
		if readErr != nil {
			continue
		}

		var meta Meta
		if json.Unmarshal(data, &meta) != nil {
			continue
		}

		sessions = append(sessions, Session{Meta: meta, Path: dir})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})

	return sessions, nil
}

// ReadEntries returns every entry of a session. A session whose compressed
// stream is missing or truncated is read from its live stream instead.
func ReadEntries(root, sessionID string) ([]Entry, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	root, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(root, sessionID)
	if _, statErr := os.Stat(filepath.Join(dir, metaFileName)); statErr != nil {
		return nil, fmt.Errorf("history session %q not found", sessionID)
	}

	entries, err := readCompressed(filepath.Join(dir, entriesFileName))
	if err == nil && len(entries) > 0 {
		return entries, nil
	}

	return readJSONL(filepath.Join(dir, liveFileName))
}

func readCompressed(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	return decodeEntries(zr)
}

func readJSONL(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("open history entries: %w", err)
	}
	defer f.Close()

	return decodeEntries(f)
}

// decodeEntries skips lines that do not parse; a torn final line from a
// crashed writer is expected.
func decodeEntries(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, recorderBufferLen), 1024*1024)

	var entries []Entry

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var e Entry
		if json.Unmarshal(line, &e) != nil {
			continue
		}

		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("scan history entries: %w", err)
	}

	return entries, nil
}

// PruneOlderThan removes sessions that closed (or, if never closed,
// started) before cutoff.
func PruneOlderThan(root string, cutoff time.Time) (int, error) {
	sessions, err := ListSessions(root)
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, s := range sessions {
		ref := s.StartedAt
		if s.ClosedAt != nil {
			ref = *s.ClosedAt
		}

		if !ref.Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(s.Path); err != nil {
			return removed, fmt.Errorf("prune history session %q: %w", s.SessionID, err)
		}

		removed++
	}

	return removed, nil
}
