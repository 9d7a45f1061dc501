package settings

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/membit-bot/botctl/internal/client"
)

// Accepted ranges.
const (
	MinScheduleHours  = 1
	MaxScheduleHours  = 24
	MinRetries        = 1
	MaxRetries        = 10
	MinTweetLength    = 100
	MaxTweetLength    = 280
	MinImageDimension = 256
	MaxImageDimension = 4096
)

// Validate checks the groups of draft that are about to be written.
// All problems are reported together.
func Validate(draft Snapshot, groups []Group) error {
	var errs []error

	for _, g := range groups {
		switch g {
		case GroupConfig:
			errs = append(errs, validateConfig(draft.Config)...)
		case GroupPrompt:
			if strings.TrimSpace(draft.Config.PromptTemplate) == "" {
				errs = append(errs, invalid("prompt_template", "Prompt template cannot be empty"))
			}
		case GroupCredentials:
			// Any key value is accepted; the backend stores it verbatim.
		}
	}

	return errors.Join(errs...)
}

func validateConfig(c client.BotConfig) []error {
	var errs []error

	if c.ScheduleHours < MinScheduleHours || c.ScheduleHours > MaxScheduleHours {
		errs = append(errs, invalid("schedule_hours",
			fmt.Sprintf("Schedule must be between %d and %d hours", MinScheduleHours, MaxScheduleHours)))
	}

	if c.MaxRetries < MinRetries || c.MaxRetries > MaxRetries {
		errs = append(errs, invalid("max_retries",
			fmt.Sprintf("Max retries must be between %d and %d", MinRetries, MaxRetries)))
	}

	if c.MaxTweetLength < MinTweetLength || c.MaxTweetLength > MaxTweetLength {
		errs = append(errs, invalid("max_tweet_length",
			fmt.Sprintf("Max tweet length must be between %d and %d", MinTweetLength, MaxTweetLength)))
	}

	if c.EnableImage {
		if !slices.Contains(client.ImageStyles, c.ImageStyle) {
			errs = append(errs, invalid("image_style",
				fmt.Sprintf("Image style must be one of: %s", strings.Join(client.ImageStyles, ", "))))
		}

		if c.ImageWidth < MinImageDimension || c.ImageWidth > MaxImageDimension ||
			c.ImageHeight < MinImageDimension || c.ImageHeight > MaxImageDimension {
			errs = append(errs, invalid("image_size",
				fmt.Sprintf("Image size must be between %d and %d pixels", MinImageDimension, MaxImageDimension)))
		}
	}

	return errs
}

func invalid(field, msg string) error {
	return &client.ValidationError{Field: field, Message: msg}
}
