package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/cloudlearn/study/pkg/dotdir"
)

// EnvPrefix is the prefix of every environment variable read by InitViper.
const EnvPrefix = "STUDY"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the STUDY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (STUDY_CLIENT_API_TARGET, STUDY_EVENTS_PROVIDER, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Resolve builds a Config from the effective viper values, so flag and
// environment overrides are reflected in the returned struct.
func Resolve(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Client: ClientConfig{
			APITarget:      v.GetString("client.api_target"),
			AuthTarget:     v.GetString("client.auth_target"),
			ChatTarget:     v.GetString("client.chat_target"),
			DocumentTarget: v.GetString("client.document_target"),
			QuizTarget:     v.GetString("client.quiz_target"),
			AudioTarget:    v.GetString("client.audio_target"),
			Timeout:        v.GetString("client.timeout"),
		},
		Chat: ChatConfig{
			RenderMarkdown: v.GetBool("chat.render_markdown"),
			HistoryLimit:   v.GetUint("chat.history_limit"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetString("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
		Upload: UploadConfig{
			Concurrency:   v.GetUint("upload.concurrency"),
			RatePerMinute: v.GetUint("upload.rate_per_minute"),
		},
		Audio: AudioConfig{
			Voice: v.GetString("audio.voice"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Client
	v.SetDefault("client.api_target", d.Client.APITarget)
	v.SetDefault("client.auth_target", d.Client.AuthTarget)
	v.SetDefault("client.chat_target", d.Client.ChatTarget)
	v.SetDefault("client.document_target", d.Client.DocumentTarget)
	v.SetDefault("client.quiz_target", d.Client.QuizTarget)
	v.SetDefault("client.audio_target", d.Client.AudioTarget)
	v.SetDefault("client.timeout", d.Client.Timeout)

	// Chat
	v.SetDefault("chat.render_markdown", d.Chat.RenderMarkdown)
	v.SetDefault("chat.history_limit", d.Chat.HistoryLimit)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Upload
	v.SetDefault("upload.concurrency", d.Upload.Concurrency)
	v.SetDefault("upload.rate_per_minute", d.Upload.RatePerMinute)

	// Audio
	v.SetDefault("audio.voice", d.Audio.Voice)
}
