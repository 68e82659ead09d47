// Package configcmder provides the config command for managing persistent
// study configuration stored in the .study/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudlearn/study/pkg/cliui"
	"github.com/cloudlearn/study/pkg/config"
)

const configLongDesc string = `Manage persistent study configuration.

Configuration is stored as config.toml in the .study/ directory and provides
default values for command flags. CLI flags and STUDY_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  client.api_target, client.auth_target, client.chat_target,
  client.document_target, client.quiz_target, client.audio_target,
  client.timeout, chat.render_markdown, chat.history_limit,
  events.provider, events.brokers, events.topic,
  upload.concurrency, upload.rate_per_minute, audio.voice

client.timeout (default 30s) bounds every non-streaming request, including
quiz generation and non-streaming chat replies. Raise it if quizzes time
out. Audio synthesis only waits this long for the response headers.

Examples:
  study config set client.api_target https://learn.example.com
  study config set chat.render_markdown false
  study config get client.api_target
  study config list`

const configShortDesc string = "Manage persistent study configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(out io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(out, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
