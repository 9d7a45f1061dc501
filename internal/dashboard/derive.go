package dashboard

import (
	"fmt"

	"github.com/membit-bot/botctl/internal/client"
)

// NoTweetsMessage is shown when nothing has been posted yet.
const NoTweetsMessage = "No tweets posted yet"

// ControlState says which bot controls are usable.
type ControlState struct {
	StartEnabled   bool
	StopEnabled    bool
	RunOnceEnabled bool
}

// Controls derives the control buttons from s. Start depends only on the
// running state; the server refuses it when API keys are missing.
func Controls(s State) ControlState {
	return ControlState{
		StartEnabled:   !s.Status.Running,
		StopEnabled:    s.Status.Running,
		RunOnceEnabled: s.CredentialsReady,
	}
}

// StatsView holds the statistics tiles. ComputedTotal is success+error;
// ServerTotal is the server's own count. The two may differ and both are shown.
type StatsView struct {
	Success       int
	Errors        int
	ComputedTotal int
	ServerTotal   int
}

// Stats derives the statistics tiles.
func Stats(status client.BotStatus) StatsView {
	return StatsView{
		Success:       status.SuccessCount,
		Errors:        status.ErrorCount,
		ComputedTotal: status.SuccessCount + status.ErrorCount,
		ServerTotal:   status.TotalTweets,
	}
}

// LastTweet returns the text for the last-result panel.
func LastTweet(status client.BotStatus) string {
	if status.LastTweet == nil || status.LastTweet.Text == "" {
		return NoTweetsMessage
	}

	return status.LastTweet.Text
}

// ConfigSummary lists the configuration as label/value pairs.
func ConfigSummary(cfg client.BotConfig) [][2]string {
	image := "off"
	if cfg.EnableImage {
		image = fmt.Sprintf("%s %dx%d", cfg.ImageStyle, cfg.ImageWidth, cfg.ImageHeight)
	}

	sources := "trending"
	if cfg.MembitUseClusterInfo {
		sources += ", cluster info"
	}

	if cfg.MembitUsePosts {
		sources += ", posts"
	}

	return [][2]string{
		{"Schedule", fmt.Sprintf("every %dh", cfg.ScheduleHours)},
		{"Max retries", fmt.Sprintf("%d", cfg.MaxRetries)},
		{"Tweet length", fmt.Sprintf("%d chars", cfg.MaxTweetLength)},
		{"Image", image},
		{"Sources", sources},
	}
}
