package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"qms/internal/errors"
	"qms/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the cache whenever documents change",
	Long: `Watch the project tree and rebuild the cache after each burst of document
changes. Every rebuild is a full rebuild. Stop with Ctrl+C.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withSession(sessionOptions{}, func(s *session) error {
		out := cmd.OutOrStdout()

		// Batches can overlap when a rebuild outlasts the debounce window.
		var mu sync.Mutex
		onChange := func(events []watcher.Event) {
			mu.Lock()
			defer mu.Unlock()

			report, err := s.cache.Rebuild()
			switch {
			case errors.CodeOf(err) == errors.IndexLocked:
				s.logger.Warn("Skipping rebuild; another process holds the index lock")
			case err != nil:
				s.logger.Error("Rebuild failed", "error", err.Error())
			default:
				if rerr := render(cmd, newRebuildResponse(report)); rerr != nil {
					s.logger.Error("Failed to print rebuild report", "error", rerr.Error())
				}
			}
		}

		cfg := watcher.Config{
			Debounce:     time.Duration(s.cfg.Watch.DebounceMs) * time.Millisecond,
			PollInterval: time.Duration(s.cfg.Watch.PollIntervalMs) * time.Millisecond,
		}
		w, err := watcher.New(s.root, cfg, s.logger, onChange)
		if err != nil {
			return errors.Wrap(errors.InternalError, "Failed to create file watcher", err)
		}
		if err := w.Start(); err != nil {
			w.Stop()
			return errors.Wrap(errors.InternalError, "Failed to watch project", err)
		}
		defer func() {
			w.Stop()
			// Let an in-flight rebuild finish before the cache closes.
			mu.Lock()
			mu.Unlock()
		}()

		fmt.Fprintf(out, "Watching %s (%d directories). Press Ctrl+C to stop.\n", s.root, len(w.WatchedDirs()))
		<-ctx.Done()
		return nil
	})
}
