package config

import (
	"slices"
	"strings"
	"time"
)

const (
	defaultClientAPITarget = "http://localhost:8000"
	defaultClientTimeout   = 30 * time.Second

	defaultChatHistoryLimit = 100

	EventsProviderNone  = "none"
	EventsProviderKafka = "kafka"

	defaultEventsBrokers = "localhost:9092"
	defaultEventsTopic   = "study.chat.turn"

	defaultUploadConcurrency   = 2
	defaultUploadRatePerMinute = 30

	defaultAudioVoice = "alloy"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
			Timeout:   defaultClientTimeout.String(),
		},
		Chat: ChatConfig{
			RenderMarkdown: true,
			HistoryLimit:   defaultChatHistoryLimit,
		},
		Events: EventsConfig{
			Provider: EventsProviderNone,
			Brokers:  defaultEventsBrokers,
			Topic:    defaultEventsTopic,
		},
		Upload: UploadConfig{
			Concurrency:   defaultUploadConcurrency,
			RatePerMinute: defaultUploadRatePerMinute,
		},
		Audio: AudioConfig{
			Voice: defaultAudioVoice,
		},
	}
}

// ValidEventsProviders returns the recognized events.provider values.
func ValidEventsProviders() []string {
	return []string{EventsProviderNone, EventsProviderKafka}
}

// IsValidEventsProvider reports whether name is a recognized events provider.
func IsValidEventsProvider(name string) bool {
	return slices.Contains(ValidEventsProviders(), name)
}

func eventsProvidersList() string {
	return strings.Join(ValidEventsProviders(), ", ")
}
