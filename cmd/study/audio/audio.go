// Package audiocmder provides the audio command for text-to-speech and
// speech-to-text through the audio service.
package audiocmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudlearn/study/cmd/study/cmdenv"
	"github.com/cloudlearn/study/pkg/cliui"
	"github.com/cloudlearn/study/pkg/config"
)

const audioLongDesc string = `Convert between text and speech.

"speak" synthesizes text with the configured voice and saves the audio.
"transcribe" uploads a recording and prints its transcript.

Examples:
  study audio speak "Mitosis has four phases" -o mitosis.mp3
  study audio speak --voice nova < notes.txt
  study audio speak "hello" -o - | mpv -
  study audio transcribe question.wav`

const audioShortDesc string = "Text-to-speech and speech-to-text"

func NewAudioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audio",
		Short: audioShortDesc,
		Long:  audioLongDesc,
	}

	cmd.AddCommand(newSpeakCmd())
	cmd.AddCommand(newTranscribeCmd())

	return cmd
}

func newSpeakCmd() *cobra.Command {
	var (
		voice   string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "speak [text]",
		Short: "Synthesize speech from text",
		Long:  "Synthesize speech from text. Without arguments the text is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdenv.Load(cmd, config.FlagVoice)
			if err != nil {
				return err
			}
			defer env.Close()

			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading text: %w", err)
				}
				text = string(data)
			}
			text = strings.TrimSpace(text)
			if text == "" {
				return errors.New("nothing to speak: pass text or pipe it on stdin")
			}

			if outPath == "-" {
				_, _, err := env.Client.Speak(cmd.Context(), text, env.Config.Audio.Voice, cmd.OutOrStdout())
				return err
			}

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("creating %s: %w", outPath, err)
			}

			var (
				contentType string
				n           int64
			)
			err = cliui.Step(cmd.ErrOrStderr(), "Synthesizing speech", func() error {
				var err error
				contentType, n, err = env.Client.Speak(cmd.Context(), text, env.Config.Audio.Voice, f)
				return err
			})
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(outPath)
				return fmt.Errorf("synthesizing speech: %w", err)
			}

			env.Logger.Debug("speech saved", "path", outPath, "content_type", contentType, "bytes", n)
			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Saved %s %s\n\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(outPath),
				cliui.DimStyle.Render(fmt.Sprintf("(%d bytes, voice %s)", n, env.Config.Audio.Voice)),
			)
			return nil
		},
	}

	config.AddStringFlag(cmd, config.ClientFlags, config.FlagVoice, &voice)
	cmd.Flags().StringVarP(&outPath, "out", "o", "speech.mp3", `Output file, or "-" for stdout`)

	return cmd
}

func newTranscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdenv.Load(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			var text string
			err = cliui.Step(cmd.ErrOrStderr(), "Transcribing "+args[0], func() error {
				var err error
				text, err = env.Client.Transcribe(cmd.Context(), args[0])
				return err
			})
			if err != nil {
				return fmt.Errorf("transcribing: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}
