package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ppiankov/geminirun/internal/request"
)

// debounceDefault is the quiet period after the last file event before a re-run.
const debounceDefault = 300 * time.Millisecond

func newWatchCmd() *cobra.Command {
	var f requestFlags

	cmd := &cobra.Command{
		Use:   "watch [prompt...] -f FILE...",
		Short: "Re-run a prompt whenever a context file changes",
		Long:  "watch sends the prompt once, then again each time one of the --file context files is written, printing each reply.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(f.files()) == 0 {
				return fmt.Errorf("watch needs at least one --file to watch")
			}
			return runOneShot(cmd, args, &f, func(s *session, spec *request.Spec) error {
				return runWatch(cmd.Context(), cmd, s, spec, f.files())
			})
		},
	}
	f.register(cmd)

	return cmd
}

// runWatch watches the parent directories of files so editors that replace
// a file by rename still trigger a run. Blocks until ctx is cancelled.
func runWatch(ctx context.Context, cmd *cobra.Command, s *session, spec *request.Spec, files []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch dir: %w", err)
		}
	}

	slog.Info("watching context files", "files", len(files), "dirs", len(dirs))
	runAndPrint(ctx, cmd, s, spec)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] {
				continue
			}
			slog.Debug("context file changed", "file", abs, "op", event.Op.String())
			debounce = time.After(debounceDefault)

		case <-debounce:
			debounce = nil
			runAndPrint(ctx, cmd, s, spec)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func runAndPrint(ctx context.Context, cmd *cobra.Command, s *session, spec *request.Spec) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "--- %s ---\n", time.Now().Format(time.TimeOnly))
	text, err := s.client.Text(ctx, spec)
	if err != nil {
		if ctx.Err() == nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		return
	}
	fmt.Fprintln(out, text)
}
