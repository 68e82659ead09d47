package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g. --api-target
// on "study chat", "study docs" and "study quiz").
type Flag struct {
	// Name is the long flag name (e.g. "api-target").
	Name string

	// Shorthand is the one-letter short flag (e.g. "a"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "client.api_target").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagAPITarget      = "api-target"
	FlagAuthTarget     = "auth-target"
	FlagChatTarget     = "chat-target"
	FlagDocumentTarget = "document-target"
	FlagQuizTarget     = "quiz-target"
	FlagAudioTarget    = "audio-target"
	FlagTimeout        = "timeout"
	FlagEventsProvider = "events-provider"
	FlagEventsBrokers  = "events-brokers"
	FlagEventsTopic    = "events-topic"
	FlagConcurrency    = "concurrency"
	FlagRatePerMinute  = "rate"
	FlagVoice          = "voice"
)

// ClientFlags is the registry shared by every command that talks to the
// platform services.
var ClientFlags = FlagSet{
	FlagAPITarget:      {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "Platform API gateway URL"},
	FlagAuthTarget:     {Name: "auth-target", ViperKey: "client.auth_target", Description: "Auth service URL (defaults to --api-target)"},
	FlagChatTarget:     {Name: "chat-target", ViperKey: "client.chat_target", Description: "Chat service URL (defaults to --api-target)"},
	FlagDocumentTarget: {Name: "document-target", ViperKey: "client.document_target", Description: "Document service URL (defaults to --api-target)"},
	FlagQuizTarget:     {Name: "quiz-target", ViperKey: "client.quiz_target", Description: "Quiz service URL (defaults to --api-target)"},
	FlagAudioTarget:    {Name: "audio-target", ViperKey: "client.audio_target", Description: "Audio service URL (defaults to --api-target)"},
	FlagTimeout:        {Name: "timeout", ViperKey: "client.timeout", Description: "Timeout for non-streaming requests, including quiz generation (audio synthesis only waits this long for headers)"},
	FlagEventsProvider: {Name: "events-provider", ViperKey: "events.provider", Description: "Where completed chat turns are published (none, kafka)"},
	FlagEventsBrokers:  {Name: "events-brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka brokers"},
	FlagEventsTopic:    {Name: "events-topic", ViperKey: "events.topic", Description: "Kafka topic for chat turn events"},
	FlagConcurrency:    {Name: "concurrency", Shorthand: "c", ViperKey: "upload.concurrency", Description: "Number of concurrent uploads"},
	FlagRatePerMinute:  {Name: "rate", ViperKey: "upload.rate_per_minute", Description: "Maximum uploads started per minute"},
	FlagVoice:          {Name: "voice", ViperKey: "audio.voice", Description: "Voice used for text-to-speech"},
}

// TargetFlagKeys lists the registry keys of every service target flag.
var TargetFlagKeys = []string{
	FlagAPITarget,
	FlagAuthTarget,
	FlagChatTarget,
	FlagDocumentTarget,
	FlagQuizTarget,
	FlagAudioTarget,
	FlagTimeout,
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddTargetFlags registers every service target flag on cmd. The values are
// only read back through viper after BindRegisteredFlags.
func AddTargetFlags(cmd *cobra.Command) {
	for _, key := range TargetFlagKeys {
		var sink string
		AddStringFlag(cmd, ClientFlags, key, &sink)
	}
}

// AddPersistentTargetFlags registers every service target flag on cmd as a
// persistent flag so all of its subcommands accept them.
func AddPersistentTargetFlags(cmd *cobra.Command) {
	for _, key := range TargetFlagKeys {
		def := ClientFlags[key]
		defaultVal := defaultString(def.ViperKey)
		if def.Shorthand != "" {
			cmd.PersistentFlags().StringP(def.Name, def.Shorthand, defaultVal, def.Description)
		} else {
			cmd.PersistentFlags().String(def.Name, defaultVal, def.Description)
		}
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
