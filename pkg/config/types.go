package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent study configuration stored as config.toml
// in the .study/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int          `toml:"version"`
	Client  ClientConfig `toml:"client"`
	Chat    ChatConfig   `toml:"chat"`
	Events  EventsConfig `toml:"events"`
	Upload  UploadConfig `toml:"upload"`
	Audio   AudioConfig  `toml:"audio"`
}

// ClientConfig holds the base URLs of the platform services. Values are full
// URLs (scheme + host + port). A service target left empty falls back to
// APITarget, which is the usual setup behind a single gateway.
type ClientConfig struct {
	APITarget      string `toml:"api_target,omitempty"`
	AuthTarget     string `toml:"auth_target,omitempty"`
	ChatTarget     string `toml:"chat_target,omitempty"`
	DocumentTarget string `toml:"document_target,omitempty"`
	QuizTarget     string `toml:"quiz_target,omitempty"`
	AudioTarget    string `toml:"audio_target,omitempty"`

	// Timeout bounds non-streaming requests, as a Go duration string.
	Timeout string `toml:"timeout,omitempty"`
}

// ChatConfig holds settings for the interactive chat command.
type ChatConfig struct {
	RenderMarkdown bool `toml:"render_markdown"`
	HistoryLimit   uint `toml:"history_limit,omitempty"`
}

// EventsConfig selects where completed chat turns are published.
type EventsConfig struct {
	// Provider is "none" or "kafka".
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of host:port Kafka brokers.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// UploadConfig paces bulk and watched document uploads.
type UploadConfig struct {
	Concurrency   uint `toml:"concurrency,omitempty"`
	RatePerMinute uint `toml:"rate_per_minute,omitempty"`
}

// AudioConfig holds text-to-speech defaults.
type AudioConfig struct {
	Voice string `toml:"voice,omitempty"`
}

// TimeoutDuration parses Client.Timeout, falling back to the default.
func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Client.Timeout)
	if err != nil || d <= 0 {
		return defaultClientTimeout
	}
	return d
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.api_target":      stringKey(func(c *Config) *string { return &c.Client.APITarget }),
	"client.auth_target":     stringKey(func(c *Config) *string { return &c.Client.AuthTarget }),
	"client.chat_target":     stringKey(func(c *Config) *string { return &c.Client.ChatTarget }),
	"client.document_target": stringKey(func(c *Config) *string { return &c.Client.DocumentTarget }),
	"client.quiz_target":     stringKey(func(c *Config) *string { return &c.Client.QuizTarget }),
	"client.audio_target":    stringKey(func(c *Config) *string { return &c.Client.AudioTarget }),
	"client.timeout": {
		get: func(c *Config) string { return c.Client.Timeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for client.timeout: %w", err)
			}
			c.Client.Timeout = v
			return nil
		},
	},
	"chat.render_markdown": {
		get: func(c *Config) string { return strconv.FormatBool(c.Chat.RenderMarkdown) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for chat.render_markdown: %w", err)
			}
			c.Chat.RenderMarkdown = b
			return nil
		},
	},
	"chat.history_limit": uintKey("chat.history_limit", func(c *Config) *uint { return &c.Chat.HistoryLimit }),
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error {
			if !IsValidEventsProvider(v) {
				return fmt.Errorf("invalid value for events.provider: %q (available: %s)", v, eventsProvidersList())
			}
			c.Events.Provider = v
			return nil
		},
	},
	"events.brokers":         stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":           stringKey(func(c *Config) *string { return &c.Events.Topic }),
	"upload.concurrency":     uintKey("upload.concurrency", func(c *Config) *uint { return &c.Upload.Concurrency }),
	"upload.rate_per_minute": uintKey("upload.rate_per_minute", func(c *Config) *uint { return &c.Upload.RatePerMinute }),
	"audio.voice":            stringKey(func(c *Config) *string { return &c.Audio.Voice }),
}
