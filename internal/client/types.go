package client

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Session is the backend's view of who is using it.
type Session struct {
	SetupCompleted bool   `json:"setup_completed"`
	LoggedIn       bool   `json:"logged_in"`
	Username       string `json:"username,omitempty"`
}

// Normalize enforces that a logged-in session has completed setup.
func (s Session) Normalize() Session {
	if s.LoggedIn {
		s.SetupCompleted = true
	}

	return s
}

// BotStatus is the server-pushed status snapshot. It is always replaced
// wholesale, never merged.
type BotStatus struct {
	Running      bool         `json:"running"`
	LastRun      string       `json:"last_run,omitempty"`
	NextRun      string       `json:"next_run,omitempty"`
	TotalTweets  int          `json:"total_tweets"`
	SuccessCount int          `json:"success_count"`
	ErrorCount   int          `json:"error_count"`
	LastTweet    *TweetRecord `json:"last_tweet,omitempty"`
	LastError    *ErrorRecord `json:"last_error,omitempty"`
}

// TweetRecord is one posted tweet.
type TweetRecord struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
	ImageURL  string `json:"image_url,omitempty"`
}

// ErrorRecord is the most recent generation failure.
type ErrorRecord struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// UnmarshalJSON accepts either a bare string or a {message, timestamp} object.
func (e *ErrorRecord) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &e.Message)
	}

	type plain ErrorRecord

	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	*e = ErrorRecord(p)

	return nil
}

// LogLevel is the severity of a log entry.
type LogLevel string

// Log levels emitted by the backend.
const (
	LevelInfo    LogLevel = "info"
	LevelSuccess LogLevel = "success"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

// Normalize maps unknown levels to info.
func (l LogLevel) Normalize() LogLevel {
	switch l {
	case LevelInfo, LevelSuccess, LevelWarning, LevelError:
		return l
	default:
		return LevelInfo
	}
}

// Icon returns the glyph shown next to entries of this level.
func (l LogLevel) Icon() string {
	switch l.Normalize() {
	case LevelSuccess:
		return "✓"
	case LevelError:
		return "✗"
	case LevelWarning:
		return "⚠"
	default:
		return "→"
	}
}

// LogEntry is one line of the bot's activity trail.
type LogEntry struct {
	Level     LogLevel `json:"level"`
	Timestamp string   `json:"timestamp"`
	Message   string   `json:"message"`
}

// Image styles accepted by the backend.
const (
	StyleDigitalArt = "digital art"
	StyleRealistic  = "realistic"
	StyleMinimalist = "minimalist"
)

// ImageStyles lists the accepted image styles in display order.
var ImageStyles = []string{StyleDigitalArt, StyleRealistic, StyleMinimalist}

// BotConfig is the server-held bot configuration.
type BotConfig struct {
	ScheduleHours        int    `json:"schedule_hours"`
	MaxRetries           int    `json:"max_retries"`
	MaxTweetLength       int    `json:"max_tweet_length"`
	PromptTemplate       string `json:"prompt_template"`
	EnableImage          bool   `json:"enable_image"`
	ImageStyle           string `json:"image_style"`
	ImageWidth           int    `json:"image_width"`
	ImageHeight          int    `json:"image_height"`
	MembitUseTrending    bool   `json:"membit_use_trending"`
	MembitUseClusterInfo bool   `json:"membit_use_cluster_info"`
	MembitUsePosts       bool   `json:"membit_use_posts"`
}

// DefaultBotConfig returns the backend's defaults.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		ScheduleHours:     6,
		MaxRetries:        3,
		MaxTweetLength:    250,
		ImageStyle:        StyleDigitalArt,
		ImageWidth:        1200,
		ImageHeight:       675,
		MembitUseTrending: true,
	}
}

// ConfigUpdate is the body of POST /api/config. The prompt template is
// written separately through POST /api/prompt.
type ConfigUpdate struct {
	ScheduleHours        int    `json:"schedule_hours"`
	MaxRetries           int    `json:"max_retries"`
	MaxTweetLength       int    `json:"max_tweet_length"`
	EnableImage          bool   `json:"enable_image"`
	ImageStyle           string `json:"image_style"`
	ImageWidth           int    `json:"image_width"`
	ImageHeight          int    `json:"image_height"`
	MembitUseTrending    bool   `json:"membit_use_trending"`
	MembitUseClusterInfo bool   `json:"membit_use_cluster_info"`
	MembitUsePosts       bool   `json:"membit_use_posts"`
}

// Update returns the POST /api/config body for c. Trending is always on.
func (c BotConfig) Update() ConfigUpdate {
	return ConfigUpdate{
		ScheduleHours:        c.ScheduleHours,
		MaxRetries:           c.MaxRetries,
		MaxTweetLength:       c.MaxTweetLength,
		EnableImage:          c.EnableImage,
		ImageStyle:           c.ImageStyle,
		ImageWidth:           c.ImageWidth,
		ImageHeight:          c.ImageHeight,
		MembitUseTrending:    true,
		MembitUseClusterInfo: c.MembitUseClusterInfo,
		MembitUsePosts:       c.MembitUsePosts,
	}
}

// UnsetKey is the placeholder the backend returns for a key that has no value.
const UnsetKey = "..."

// Credentials is the set of third-party API keys the bot uses.
type Credentials struct {
	MembitKey           string `json:"membit_key"`
	GeminiKey           string `json:"gemini_key"`
	TwitterKey          string `json:"twitter_key"`
	TwitterSecret       string `json:"twitter_secret"`
	TwitterToken        string `json:"twitter_token"`
	TwitterAccessSecret string `json:"twitter_access_secret"`
}

// IsUnset reports whether a key value means "not configured".
func IsUnset(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || v == UnsetKey
}

// Ready reports whether the keys required to run the bot are all set.
func (c Credentials) Ready() bool {
	return !IsUnset(c.MembitKey) && !IsUnset(c.GeminiKey) && !IsUnset(c.TwitterKey)
}

// Missing returns the display names of the required keys that are unset.
func (c Credentials) Missing() []string {
	var missing []string

	for _, f := range c.Fields() {
		if f.Required && IsUnset(f.Value) {
			missing = append(missing, f.Label)
		}
	}

	return missing
}

// CredentialField describes one key for display.
type CredentialField struct {
	Name     string
	Label    string
	Value    string
	Required bool
}

// Fields returns the keys in display order.
func (c Credentials) Fields() []CredentialField {
	return []CredentialField{
		{Name: "membit_key", Label: "Membit API Key", Value: c.MembitKey, Required: true},
		{Name: "gemini_key", Label: "Gemini API Key", Value: c.GeminiKey, Required: true},
		{Name: "twitter_key", Label: "Twitter API Key", Value: c.TwitterKey, Required: true},
		{Name: "twitter_secret", Label: "Twitter API Secret", Value: c.TwitterSecret},
		{Name: "twitter_token", Label: "Twitter Access Token", Value: c.TwitterToken},
		{Name: "twitter_access_secret", Label: "Twitter Access Secret", Value: c.TwitterAccessSecret},
	}
}

// Mask renders a key for display without revealing it.
func Mask(value string) string {
	if IsUnset(value) {
		return "(not set)"
	}

	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}

	return value[:4] + strings.Repeat("*", 4) + value[len(value)-4:]
}
