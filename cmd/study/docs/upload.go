package docscmder

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/cloudlearn/study/pkg/cliui"
	"github.com/cloudlearn/study/pkg/client"
	"github.com/cloudlearn/study/pkg/config"
	"github.com/cloudlearn/study/pkg/uploader"
)

var uploadFlags = []string{config.FlagConcurrency, config.FlagRatePerMinute}

func newUploadCmd() *cobra.Command {
	var concurrency, ratePerMinute uint

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload documents for note generation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadSession(cmd, uploadFlags...)
			if err != nil {
				return err
			}
			defer env.Close()

			out := cmd.OutOrStdout()
			rep := &reporter{out: out}

			var paths []string
			for _, p := range args {
				if !client.IsSupportedDocument(p) {
					rep.skip(p)
					continue
				}
				paths = append(paths, p)
			}

			if len(paths) == 0 {
				return fmt.Errorf("no supported documents to upload: %w", client.ErrUnsupportedFile)
			}

			fmt.Fprintln(out)
			results, err := uploader.UploadAll(cmd.Context(), uploader.Config{
				Uploader:      env.Client,
				NumWorkers:    env.Config.Upload.Concurrency,
				RatePerMinute: env.Config.Upload.RatePerMinute,
				OnResult:      rep.report,
				Logger:        env.Logger,
			}, paths)
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}

			fmt.Fprintf(out, "\n  Uploaded %d of %d documents.\n\n", len(results)-failed, len(args))
			if failed > 0 {
				return fmt.Errorf("%d of %d uploads failed", failed, len(results))
			}
			return nil
		},
	}

	config.AddUintFlag(cmd, config.ClientFlags, config.FlagConcurrency, &concurrency)
	config.AddUintFlag(cmd, config.ClientFlags, config.FlagRatePerMinute, &ratePerMinute)

	return cmd
}

// reporter prints upload results as workers finish them.
type reporter struct {
	mu  sync.Mutex
	out io.Writer
}

func (r *reporter) report(res uploader.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := filepath.Base(res.Job.Path)
	if res.Err != nil {
		fmt.Fprintf(r.out, "  %s %s %s\n", cliui.FailMark, name, cliui.DimStyle.Render(res.Err.Error()))
		return
	}

	fmt.Fprintf(r.out, "  %s %s %s %s\n",
		cliui.SuccessMark,
		name,
		cliui.IDStyle.Render("#"+res.Upload.ID.String()),
		cliui.StepStyle.Render(fmt.Sprintf("(%s)", cliui.FormatDuration(res.Duration))),
	)
}

func (r *reporter) skip(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "  %s %s %s\n", cliui.WarnStyle.Render("!"), filepath.Base(path), cliui.DimStyle.Render("skipped: unsupported file type"))
}
