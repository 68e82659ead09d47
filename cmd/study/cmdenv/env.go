// Package cmdenv loads what every study command shares: the resolved
// configuration, the logger, the stored session and a client for the
// platform services.
package cmdenv

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cloudlearn/study/pkg/client"
	"github.com/cloudlearn/study/pkg/config"
	"github.com/cloudlearn/study/pkg/credentials"
	"github.com/cloudlearn/study/pkg/eventstream"
	"github.com/cloudlearn/study/pkg/eventstream/kafka"
	"github.com/cloudlearn/study/pkg/eventstream/nop"
	"github.com/cloudlearn/study/pkg/logger"
	"github.com/cloudlearn/study/pkg/utils"
)

// ClientName identifies this CLI in published events.
const ClientName = "study"

// Env is the per-invocation environment of a command.
type Env struct {
	ConfigDir string
	Debug     bool

	Config      *config.Config
	Logger      *slog.Logger
	Credentials *credentials.Manager

	// Session is nil when nobody is logged in.
	Session *credentials.Session

	Client *client.Client

	closers []io.Closer
}

// AddGlobalFlags registers the persistent flags every study command reads.
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .study/ config directory")
	cmd.PersistentFlags().String("log-file", "", "Also write JSON logs to this file")
	config.AddPersistentTargetFlags(cmd)
}

// Load resolves the environment for cmd. The service target flags are always
// bound; flagKeys names additional registry flags the command registered.
func Load(cmd *cobra.Command, flagKeys ...string) (*Env, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	debug, _ := cmd.Flags().GetBool("debug")
	logFile, _ := cmd.Flags().GetString("log-file")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	keys := append(slices.Clone(config.TargetFlagKeys), flagKeys...)
	config.BindRegisteredFlags(v, cmd, config.ClientFlags, keys)

	env := &Env{
		ConfigDir: configDir,
		Debug:     debug,
		Config:    config.Resolve(v),
	}

	if err := env.initLogger(cmd.ErrOrStderr(), logFile); err != nil {
		return nil, err
	}

	env.Credentials, err = credentials.NewManager(configDir)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	env.Session, err = env.Credentials.Session()
	if err != nil && !errors.Is(err, credentials.ErrNotLoggedIn) {
		env.Close()
		return nil, err
	}

	env.Client, err = client.New(client.Config{
		Targets: client.Targets{
			API:      env.Config.Client.APITarget,
			Auth:     env.Config.Client.AuthTarget,
			Chat:     env.Config.Client.ChatTarget,
			Document: env.Config.Client.DocumentTarget,
			Quiz:     env.Config.Client.QuizTarget,
			Audio:    env.Config.Client.AudioTarget,
		},
		Session: env.Session,
		Logger:  env.Logger,
		Timeout: env.Config.TimeoutDuration(),
	})
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("creating client: %w", err)
	}

	env.Logger.Debug("environment loaded",
		"config_dir", configDir,
		"api_target", env.Config.Client.APITarget,
		"logged_in", env.Session != nil,
	)

	return env, nil
}

func (e *Env) initLogger(stderr io.Writer, logFile string) error {
	pretty := logger.New(
		logger.WithPretty(true),
		logger.WithDebug(e.Debug),
		logger.WithWriter(stderr),
	)

	if logFile == "" {
		e.Logger = pretty
		return nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	e.closers = append(e.closers, f)

	e.Logger = logger.Multi(pretty, logger.New(
		logger.WithJSON(true),
		logger.WithDebug(true),
		logger.WithWriter(f),
	))
	return nil
}

// RequireSession fails with credentials.ErrNotLoggedIn when no session is
// stored. An expired token only logs a warning since the services decide.
func (e *Env) RequireSession() error {
	if e.Session == nil {
		return credentials.ErrNotLoggedIn
	}

	if e.Session.Expired(time.Now()) {
		e.Logger.Warn("stored session has expired, run 'study auth login' again")
	}
	return nil
}

// SetSession switches the client to s.
func (e *Env) SetSession(s *credentials.Session) {
	e.Session = s
	e.Client = e.Client.WithSession(s)
}

// Publisher returns the chat turn publisher selected by events.provider.
func (e *Env) Publisher() (eventstream.Publisher, error) {
	switch e.Config.Events.Provider {
	case config.EventsProviderKafka:
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: kafka.ParseBrokers(e.Config.Events.Brokers),
			Topic:   e.Config.Events.Topic,
			Logger:  e.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return p, nil
	default:
		return nop.NewPublisher(), nil
	}
}

// EventSource identifies this build in published events.
func (e *Env) EventSource() eventstream.EventSource {
	return eventstream.EventSource{Client: ClientName, Version: utils.Version}
}

// Close releases resources opened by Load.
func (e *Env) Close() {
	for _, c := range e.closers {
		_ = c.Close()
	}
	e.closers = nil
}

// ParseConversationID validates a chat conversation id.
func ParseConversationID(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid conversation id %q: %w", s, err)
	}
	return id.String(), nil
}
