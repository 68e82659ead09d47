package docscmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/cloudlearn/study/pkg/cliui"
	"github.com/cloudlearn/study/pkg/client"
	"github.com/cloudlearn/study/pkg/config"
	"github.com/cloudlearn/study/pkg/uploader"
)

const watchLongDesc string = `Watch a directory and upload new documents as they appear.

A file is uploaded once it has stopped changing for the settle period, so
documents still being copied or downloaded are not sent half written. Each
file is uploaded once per watch session. Stop with Ctrl+C.

Examples:
  study docs watch ~/Downloads/lectures
  study docs watch . --existing --settle 5s`

func newWatchCmd() *cobra.Command {
	var (
		concurrency, ratePerMinute uint
		existing                   bool
		settle                     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Upload new documents from a directory",
		Long:  watchLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadSession(cmd, uploadFlags...)
			if err != nil {
				return err
			}
			defer env.Close()

			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				return fmt.Errorf("not a directory: %s", args[0])
			}

			ctx := cmd.Context()
			rep := &reporter{out: cmd.OutOrStdout()}

			pool, err := uploader.NewPool(ctx, &uploader.Config{
				Uploader:      env.Client,
				NumWorkers:    env.Config.Upload.Concurrency,
				RatePerMinute: env.Config.Upload.RatePerMinute,
				OnResult:      rep.report,
				Logger:        env.Logger,
			})
			if err != nil {
				return err
			}
			defer pool.Close()

			w := newDocWatcher(dir, settle, pool, env.Logger)

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Watching %s %s\n\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(dir),
				cliui.DimStyle.Render("(Ctrl+C to stop)"),
			)

			if existing {
				w.scanExisting()
			}

			return w.run(ctx)
		},
	}

	config.AddUintFlag(cmd, config.ClientFlags, config.FlagConcurrency, &concurrency)
	config.AddUintFlag(cmd, config.ClientFlags, config.FlagRatePerMinute, &ratePerMinute)
	cmd.Flags().BoolVar(&existing, "existing", false, "Also upload documents already in the directory")
	cmd.Flags().DurationVar(&settle, "settle", 2*time.Second, "How long a file must be unchanged before upload")

	return cmd
}

// jobQueue is the part of *uploader.Pool the watcher needs.
type jobQueue interface {
	Enqueue(job uploader.Job) bool
}

// docWatcher turns file system events in one directory into upload jobs.
type docWatcher struct {
	dir    string
	settle time.Duration
	queue  jobQueue
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	queued  map[string]struct{}
	next    int
}

func newDocWatcher(dir string, settle time.Duration, queue jobQueue, logger *slog.Logger) *docWatcher {
	return &docWatcher{
		dir:     dir,
		settle:  settle,
		queue:   queue,
		logger:  logger,
		pending: make(map[string]*time.Timer),
		queued:  make(map[string]struct{}),
	}
}

// run watches until ctx is done. Uploads still settling are dropped.
func (w *docWatcher) run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating document watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !client.IsSupportedDocument(event.Name) {
				continue
			}
			w.schedule(filepath.Clean(event.Name))
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("document watcher error: %w", err)
		}
	}
}

// scanExisting schedules every supported document already in the directory.
func (w *docWatcher) scanExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("could not list watched directory", "dir", w.dir, "error", err)
		return
	}

	for _, e := range entries {
		if e.IsDir() || !client.IsSupportedDocument(e.Name()) {
			continue
		}
		w.schedule(filepath.Join(w.dir, e.Name()))
	}
}

// schedule (re)starts the settle timer of path.
func (w *docWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.queued[path]; ok {
		return
	}

	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}

	w.logger.Debug("document settling", "path", path)
	w.pending[path] = time.AfterFunc(w.settle, func() { w.fire(path) })
}

func (w *docWatcher) fire(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.queued[path]; ok {
		return
	}
	delete(w.pending, path)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return
	}

	if !w.queue.Enqueue(uploader.Job{Path: path, Index: w.next}) {
		w.logger.Warn("upload queue full, document skipped", "path", path)
		return
	}

	w.queued[path] = struct{}{}
	w.next++
}

func (w *docWatcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}
