// Package config handles botctl configuration using Viper.
//
// Configuration sources (in priority order):
//  1. Environment variables (BOTCTL_*)
//  2. Config file (<user config dir>/botctl/config.yaml)
//  3. Built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/membit-bot/botctl/internal/paths"
)

const (
	// DefaultServerURL is where the bot backend listens out of the box.
	DefaultServerURL = "http://localhost:5000"
	// DefaultCommandRate is the sustained number of live-channel commands per second.
	DefaultCommandRate = 2.0
	// DefaultCommandBurst is how many commands may be sent back to back.
	DefaultCommandBurst = 3
	// DefaultMaxReconnectInterval caps the live-channel reconnect backoff, in seconds.
	DefaultMaxReconnectInterval = 30
	// DefaultCommandWait bounds how long one-shot bot commands wait for a status push, in seconds.
	DefaultCommandWait = 10
)

// Config holds the botctl configuration.
type Config struct {
	v *viper.Viper
}

// Load reads configuration from all sources.
func Load() *Config {
	v := viper.New()

	v.SetDefault("server.url", DefaultServerURL)
	v.SetDefault("live.command_rate", DefaultCommandRate)
	v.SetDefault("live.command_burst", DefaultCommandBurst)
	v.SetDefault("live.max_reconnect_interval", DefaultMaxReconnectInterval)
	v.SetDefault("live.command_wait", DefaultCommandWait)
	v.SetDefault("history.enabled", true)

	if root, err := paths.ConfigRoot(); err == nil {
		v.AddConfigPath(root)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("BOTCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found, but warn on other errors)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: error reading config file: %v\n", err)
		}
	}

	return &Config{v: v}
}

// Get returns a configuration value.
func (c *Config) Get(key string) interface{} {
	return c.v.Get(key)
}

// GetString returns a configuration value as string.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns a configuration value as int.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// Set sets a configuration value and persists it.
func (c *Config) Set(key string, value interface{}) error {
	c.v.Set(key, value)

	configFile, err := paths.ConfigFile()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
		return err
	}

	return c.v.WriteConfigAs(configFile)
}

// All returns all configuration as a map.
func (c *Config) All() map[string]interface{} {
	return c.v.AllSettings()
}

// ServerURL returns the bot backend base URL without a trailing slash.
func (c *Config) ServerURL() string {
	return strings.TrimRight(c.GetString("server.url"), "/")
}

// CommandRate returns the sustained live-channel command rate per second.
func (c *Config) CommandRate() float64 {
	rate := c.v.GetFloat64("live.command_rate")
	if rate <= 0 {
		return DefaultCommandRate
	}

	return rate
}

// CommandBurst returns how many live-channel commands may be sent back to back.
func (c *Config) CommandBurst() int {
	burst := c.GetInt("live.command_burst")
	if burst <= 0 {
		return DefaultCommandBurst
	}

	return burst
}

// MaxReconnectInterval caps the delay between live-channel reconnect attempts.
func (c *Config) MaxReconnectInterval() time.Duration {
	seconds := c.GetInt("live.max_reconnect_interval")
	if seconds <= 0 {
		seconds = DefaultMaxReconnectInterval
	}

	return time.Duration(seconds) * time.Second
}

// CommandWait bounds how long one-shot bot commands wait for the next status push.
func (c *Config) CommandWait() time.Duration {
	seconds := c.GetInt("live.command_wait")
	if seconds <= 0 {
		seconds = DefaultCommandWait
	}

	return time.Duration(seconds) * time.Second
}

// HistoryEnabled reports whether received activity logs are recorded locally.
func (c *Config) HistoryEnabled() bool {
	return c.v.GetBool("history.enabled")
}

// Override sets a value for this process only. Nothing is written to disk.
func (c *Config) Override(key string, value any) {
	c.v.Set(key, value)
}

// HistoryDir returns where recorded sessions are stored.
func (c *Config) HistoryDir() string {
	if dir := strings.TrimSpace(c.GetString("history.dir")); dir != "" {
		return dir
	}

	dir, err := paths.HistoryDir()
	if err != nil {
		return ""
	}

	return dir
}
