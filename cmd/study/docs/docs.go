// Package docscmder provides the docs command for uploading study documents
// and reading the notes generated from them.
package docscmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudlearn/study/cmd/study/cmdenv"
	"github.com/cloudlearn/study/pkg/cliui"
	"github.com/cloudlearn/study/pkg/client"
)

const docsLongDesc string = `Manage study documents.

Uploaded documents are processed by the document service, which extracts
their text and generates study notes. Supported types: pdf, docx, doc, txt.

Bulk and watched uploads run through a small worker pool paced by
upload.concurrency and upload.rate_per_minute.

Examples:
  study docs upload chapter1.pdf chapter2.pdf
  study docs upload -c 4 notes/*.txt
  study docs watch ~/Downloads/lectures
  study docs list
  study docs notes 17 --wait
  study docs regenerate 17
  study docs delete 17`

const docsShortDesc string = "Manage study documents"

func NewDocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "docs",
		Aliases: []string{"documents"},
		Short:   docsShortDesc,
		Long:    docsLongDesc,
	}

	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newNotesCmd())
	cmd.AddCommand(newRegenerateCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newWatchCmd())

	return cmd
}

func loadSession(cmd *cobra.Command, flagKeys ...string) (*cmdenv.Env, error) {
	env, err := cmdenv.Load(cmd, flagKeys...)
	if err != nil {
		return nil, err
	}
	if err := env.RequireSession(); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

func status(d client.Document) string {
	if d.Processed {
		return cliui.SuccessMark + " processed"
	}
	return cliui.DimStyle.Render("● processing")
}

func newListCmd() *cobra.Command {
	var limit uint

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			docs, err := env.Client.ListDocuments(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("listing documents: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintf(out, "\n  %s No documents yet. Upload one with 'study docs upload <file>'.\n\n", cliui.DimStyle.Render("●"))
				return nil
			}

			fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Documents"))
			for _, d := range docs {
				fmt.Fprintf(out, "  %s  %s  %s  %s\n",
					cliui.IDStyle.Render(fmt.Sprintf("%6s", d.ID.String())),
					cliui.NameStyle.Render(d.Filename),
					cliui.DimStyle.Render(cliui.FormatTime(d.UploadedAt.Time)),
					status(d),
				)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().UintVarP(&limit, "limit", "n", 0, "Maximum number of documents")

	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			d, err := env.Client.Document(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetching document: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n  %s %s\n", cliui.KeyStyle.Render("Document:"), cliui.NameStyle.Render(d.Filename))
			fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("ID:      "), cliui.IDStyle.Render(d.ID.String()))
			fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Type:    "), cliui.ValueStyle.Render(d.FileType))
			fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Uploaded:"), cliui.ValueStyle.Render(cliui.FormatTime(d.UploadedAt.Time)))
			fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Status:  "), status(*d))
			if preview := strings.TrimSpace(d.ContentPreview); preview != "" {
				fmt.Fprintf(out, "\n  %s\n", cliui.PreviewStyle.Render(preview))
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func newRegenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <id>",
		Short: "Generate the notes of a document again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.Client.RegenerateNotes(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("regenerating notes: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Notes for document %s are being regenerated.\n\n",
				cliui.SuccessMark, cliui.IDStyle.Render(args[0]))
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document and its notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.Client.DeleteDocument(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("deleting document: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Deleted document %s\n\n", cliui.SuccessMark, cliui.IDStyle.Render(args[0]))
			return nil
		},
	}
}
