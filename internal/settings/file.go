package settings

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Draft is a desired-settings document. Only the fields present are applied;
// everything else keeps its baseline value.
type Draft struct {
	Keys   *DraftKeys   `yaml:"keys" toml:"keys" json:"keys"`
	Bot    *DraftBot    `yaml:"bot" toml:"bot" json:"bot"`
	Image  *DraftImage  `yaml:"image" toml:"image" json:"image"`
	Source *DraftSource `yaml:"sources" toml:"sources" json:"sources"`
	Prompt *string      `yaml:"prompt" toml:"prompt" json:"prompt"`
}

// DraftKeys are API keys.
type DraftKeys struct {
	Membit              *string `yaml:"membit" toml:"membit" json:"membit"`
	Gemini              *string `yaml:"gemini" toml:"gemini" json:"gemini"`
	TwitterKey          *string `yaml:"twitter_key" toml:"twitter_key" json:"twitter_key"`
	TwitterSecret       *string `yaml:"twitter_secret" toml:"twitter_secret" json:"twitter_secret"`
	TwitterToken        *string `yaml:"twitter_token" toml:"twitter_token" json:"twitter_token"`
	TwitterAccessSecret *string `yaml:"twitter_access_secret" toml:"twitter_access_secret" json:"twitter_access_secret"`
}

// DraftBot is schedule and limits.
type DraftBot struct {
	ScheduleHours  *int `yaml:"schedule_hours" toml:"schedule_hours" json:"schedule_hours"`
	MaxRetries     *int `yaml:"max_retries" toml:"max_retries" json:"max_retries"`
	MaxTweetLength *int `yaml:"max_tweet_length" toml:"max_tweet_length" json:"max_tweet_length"`
}

// DraftImage is image generation.
type DraftImage struct {
	Enabled *bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Style   *string `yaml:"style" toml:"style" json:"style"`
	Width   *int    `yaml:"width" toml:"width" json:"width"`
	Height  *int    `yaml:"height" toml:"height" json:"height"`
}

// DraftSource is trend-source toggles. Trending is always on.
type DraftSource struct {
	ClusterInfo *bool `yaml:"cluster_info" toml:"cluster_info" json:"cluster_info"`
	Posts       *bool `yaml:"posts" toml:"posts" json:"posts"`
}

// LoadDraftFile reads a YAML or TOML draft, chosen by extension.
func LoadDraftFile(path string) (*Draft, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied settings file
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	return ParseDraft(data, filepath.Ext(path))
}

// ParseDraft decodes a draft. ext is ".yaml", ".yml" or ".toml".
func ParseDraft(data []byte, ext string) (*Draft, error) {
	var d Draft

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)

		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("parse YAML settings: %w", err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()

		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("parse TOML settings: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported settings file type %q (use .yaml, .yml or .toml)", ext)
	}

	return &d, nil
}

// Apply overlays the fields present in d onto base.
func (d *Draft) Apply(base Snapshot) Snapshot {
	out := base

	if k := d.Keys; k != nil {
		overlay(&out.Credentials.MembitKey, k.Membit)
		overlay(&out.Credentials.GeminiKey, k.Gemini)
		overlay(&out.Credentials.TwitterKey, k.TwitterKey)
		overlay(&out.Credentials.TwitterSecret, k.TwitterSecret)
		overlay(&out.Credentials.TwitterToken, k.TwitterToken)
		overlay(&out.Credentials.TwitterAccessSecret, k.TwitterAccessSecret)
	}

	if b := d.Bot; b != nil {
		overlay(&out.Config.ScheduleHours, b.ScheduleHours)
		overlay(&out.Config.MaxRetries, b.MaxRetries)
		overlay(&out.Config.MaxTweetLength, b.MaxTweetLength)
	}

	if i := d.Image; i != nil {
		overlay(&out.Config.EnableImage, i.Enabled)
		overlay(&out.Config.ImageStyle, i.Style)
		overlay(&out.Config.ImageWidth, i.Width)
		overlay(&out.Config.ImageHeight, i.Height)
	}

	if s := d.Source; s != nil {
		overlay(&out.Config.MembitUseClusterInfo, s.ClusterInfo)
		overlay(&out.Config.MembitUsePosts, s.Posts)
	}

	overlay(&out.Config.PromptTemplate, d.Prompt)

	return out
}

func overlay[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
