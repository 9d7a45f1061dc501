// Package settings mirrors the server-held bot settings and saves only what
// changed.
//
// The store remembers a baseline snapshot from the last load. Save diffs a
// draft against it in three independent groups and writes each changed
// group with its own request, concurrently. Each group that succeeds moves
// its baseline forward even when another group fails.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/membit-bot/botctl/internal/client"
	"github.com/membit-bot/botctl/internal/observability"
)

// NoChangesMessage is shown when a save finds nothing to write.
const NoChangesMessage = "No changes detected"

// ErrNoChanges is returned by Save when the draft matches the baseline.
var ErrNoChanges = errors.New("no changes detected")

// Group is one independently saved settings section.
type Group int

// Groups in display order.
const (
	GroupCredentials Group = iota
	GroupConfig
	GroupPrompt
)

// Groups lists every group in display order.
var Groups = []Group{GroupCredentials, GroupConfig, GroupPrompt}

// Label is the operator-facing group name.
func (g Group) Label() string {
	switch g {
	case GroupCredentials:
		return "API Keys"
	case GroupConfig:
		return "Configuration"
	case GroupPrompt:
		return "Prompt Template"
	default:
		return "Unknown"
	}
}

func (g Group) String() string {
	return g.Label()
}

// Snapshot is a full copy of the server's settings.
type Snapshot struct {
	Credentials client.Credentials `json:"credentials" yaml:"credentials" toml:"credentials"`
	Config      client.BotConfig   `json:"config" yaml:"config" toml:"config"`
}

// Prompt returns the prompt template.
func (s Snapshot) Prompt() string {
	return s.Config.PromptTemplate
}

// API is the part of the backend the store talks to.
type API interface {
	GetConfig(ctx context.Context) (*client.BotConfig, error)
	GetKeys(ctx context.Context) (*client.Credentials, error)
	SaveConfig(ctx context.Context, update client.ConfigUpdate) error
	SaveKeys(ctx context.Context, creds client.Credentials) error
	SavePrompt(ctx context.Context, template string) error
}

// GroupError is one failed group write.
type GroupError struct {
	Group Group
	Err   error
}

// SaveError reports the groups that failed to save. Groups not listed were
// saved and their baselines updated.
type SaveError struct {
	Failed []GroupError
	Saved  []Group
}

func (e *SaveError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Group.Label(), client.UserMessage(f.Err)))
	}

	return "Failed to save " + strings.Join(parts, "; ")
}

// Unwrap exposes the individual group errors to errors.Is/As.
func (e *SaveError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}

	return errs
}

// FailedLabels returns the labels of the failed groups in display order.
func (e *SaveError) FailedLabels() []string {
	labels := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		labels = append(labels, f.Group.Label())
	}

	return labels
}

// Store holds the baseline and performs diff-saves.
type Store struct {
	api    API
	logger *slog.Logger

	mu       sync.Mutex
	baseline Snapshot
	loaded   bool
}

// NewStore returns a store backed by api. logger may be nil.
func NewStore(api API, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Store{api: api, logger: logger.With(slog.String("component", "settings"))}
}

// Load fetches config and keys concurrently and makes them the baseline.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	var (
		cfg   *client.BotConfig
		creds *client.Credentials
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		cfg, err = s.api.GetConfig(gctx)

		return err
	})

	g.Go(func() error {
		var err error
		creds, err = s.api.GetKeys(gctx)

		return err
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Credentials: *creds, Config: *cfg}

	s.mu.Lock()
	s.baseline = snap
	s.loaded = true
	s.mu.Unlock()

	s.logger.Debug("settings loaded", slog.Bool("credentials_ready", creds.Ready()))

	return snap, nil
}

// Baseline returns the last synchronised snapshot.
func (s *Store) Baseline() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.baseline
}

// Loaded reports whether Load has succeeded at least once.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loaded
}

// Diff returns the groups where draft differs from the baseline.
func (s *Store) Diff(draft Snapshot) []Group {
	return Diff(s.Baseline(), draft)
}

// Diff returns the groups where draft differs from base, in display order.
func Diff(base, draft Snapshot) []Group {
	var changed []Group

	if normalizeCredentials(base.Credentials) != normalizeCredentials(draft.Credentials) {
		changed = append(changed, GroupCredentials)
	}

	if base.Config.Update() != draft.Config.Update() {
		changed = append(changed, GroupConfig)
	}

	if base.Config.PromptTemplate != draft.Config.PromptTemplate {
		changed = append(changed, GroupPrompt)
	}

	return changed
}

// Save validates draft and writes every changed group concurrently,
// waiting for all of them. It returns the groups that were saved.
func (s *Store) Save(ctx context.Context, draft Snapshot) ([]Group, error) {
	if !s.Loaded() {
		return nil, fmt.Errorf("settings not loaded")
	}

	changed := s.Diff(draft)
	if len(changed) == 0 {
		return nil, ErrNoChanges
	}

	if err := Validate(draft, changed); err != nil {
		return nil, err
	}

	errs := make([]error, len(changed))

	// Failures are collected per group and never cancel siblings.
	var g errgroup.Group

	for i, group := range changed {
		g.Go(func() error {
			errs[i] = s.write(ctx, group, draft)
			return nil
		})
	}

	_ = g.Wait()

	var (
		saved  []Group
		failed []GroupError
	)

	for i, group := range changed {
		if errs[i] != nil {
			s.logger.Warn("settings group save failed",
				slog.String("group", group.Label()),
				slog.String("error", errs[i].Error()))
			failed = append(failed, GroupError{Group: group, Err: errs[i]})

			continue
		}

		saved = append(saved, group)
	}

	if len(failed) > 0 {
		return saved, &SaveError{Failed: failed, Saved: saved}
	}

	return saved, nil
}

func (s *Store) write(ctx context.Context, group Group, draft Snapshot) (err error) {
	ctx, span := observability.StartSpan(ctx, "settings.save", observability.AttrSettingsGroup.String(group.Label()))
	defer func() { observability.EndSpan(span, err) }()

	switch group {
	case GroupCredentials:
		err = s.api.SaveKeys(ctx, draft.Credentials)
	case GroupConfig:
		err = s.api.SaveConfig(ctx, draft.Config.Update())
	case GroupPrompt:
		err = s.api.SavePrompt(ctx, draft.Config.PromptTemplate)
	default:
		return fmt.Errorf("unknown settings group %d", group)
	}

	if err != nil {
		return err
	}

	s.advance(group, draft)

	return nil
}

// advance moves one group of the baseline to draft's values.
func (s *Store) advance(group Group, draft Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch group {
	case GroupCredentials:
		s.baseline.Credentials = draft.Credentials
	case GroupConfig:
		prompt := s.baseline.Config.PromptTemplate
		s.baseline.Config = draft.Config
		s.baseline.Config.PromptTemplate = prompt
		s.baseline.Config.MembitUseTrending = true
	case GroupPrompt:
		s.baseline.Config.PromptTemplate = draft.Config.PromptTemplate
	}
}

// normalizeCredentials treats "" and the unset placeholder as equal.
func normalizeCredentials(c client.Credentials) client.Credentials {
	norm := func(v string) string {
		if client.IsUnset(v) {
			return ""
		}

		return v
	}

	return client.Credentials{
		MembitKey:           norm(c.MembitKey),
		GeminiKey:           norm(c.GeminiKey),
		TwitterKey:          norm(c.TwitterKey),
		TwitterSecret:       norm(c.TwitterSecret),
		TwitterToken:        norm(c.TwitterToken),
		TwitterAccessSecret: norm(c.TwitterAccessSecret),
	}
}
