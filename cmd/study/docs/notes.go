package docscmder

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudlearn/study/pkg/cliui"
	"github.com/cloudlearn/study/pkg/client"
)

const notesLongDesc string = `Show the study notes generated from a document.

Notes are generated after upload and may take a while for large documents.
Use --wait to poll until they are ready.

Examples:
  study docs notes 17
  study docs notes 17 --wait
  study docs notes 17 --plain > notes.md`

func newNotesCmd() *cobra.Command {
	var (
		wait     bool
		plain    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "notes <id>",
		Short: "Show the notes of a document",
		Long:  notesLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			notes, err := env.Client.DocumentNotes(ctx, args[0])
			if err != nil {
				return fmt.Errorf("fetching notes: %w", err)
			}

			if !notes.Ready() && wait {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				err = cliui.Step(cmd.ErrOrStderr(), "Waiting for notes", func() error {
					for !notes.Ready() {
						select {
						case <-ctx.Done():
							return ctx.Err()
						case <-ticker.C:
						}

						notes, err = env.Client.DocumentNotes(ctx, args[0])
						if err != nil {
							return fmt.Errorf("fetching notes: %w", err)
						}
					}
					return nil
				})
				if err != nil {
					return err
				}
			}

			if !notes.Ready() {
				msg := notes.Message
				if msg == "" {
					msg = "Notes are still being generated."
				}
				fmt.Fprintf(out, "\n  %s %s\n\n", cliui.DimStyle.Render("●"), msg)
				return nil
			}

			markdown := notesMarkdown(notes)
			if plain || !env.Config.Chat.RenderMarkdown {
				_, err = io.WriteString(out, markdown)
				return err
			}

			rendered, err := cliui.RenderMarkdown(markdown)
			if err != nil {
				rendered = markdown
			}
			_, err = io.WriteString(out, rendered)
			return err
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until the notes are ready")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print raw markdown")
	cmd.Flags().DurationVar(&interval, "interval", 3*time.Second, "Polling interval for --wait")

	return cmd
}

// notesMarkdown assembles the notes, summary and key points into one
// markdown document.
func notesMarkdown(n *client.Notes) string {
	var b strings.Builder

	if s := strings.TrimSpace(n.Summary); s != "" {
		b.WriteString("## Summary\n\n")
		b.WriteString(s)
		b.WriteString("\n\n")
	}

	if len(n.KeyPoints) > 0 {
		b.WriteString("## Key points\n\n")
		for _, p := range n.KeyPoints {
			b.WriteString("- ")
			b.WriteString(strings.TrimSpace(p))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if n.Notes != nil {
		if s := strings.TrimSpace(*n.Notes); s != "" {
			b.WriteString("## Notes\n\n")
			b.WriteString(s)
			b.WriteString("\n")
		}
	}

	return b.String()
}
