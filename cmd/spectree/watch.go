package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/spectree/spectree/internal/cache"
	"github.com/spectree/spectree/internal/config"
	"github.com/spectree/spectree/internal/ui"
)

const debounceDelay = 500 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "tree",
	Short:   "Show the tree and redraw it whenever the cached copy changes",
	Long: `Show the tree and redraw it when the local cache changes, for example
after a reorder in another terminal.

--interval also pulls from the CMS on that schedule so edits made elsewhere
show up. Needs the file cache (config key cache.dsn unset).`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		interval, _ := cmd.Flags().GetDuration("interval")
		if config.GetString(config.KeyCacheDSN) != "" {
			FatalErrorWithHint("watch needs the file cache", "unset cache.dsn for this workspace")
		}

		ctx := getRootContext()
		sess := mustOpenSession(ctx)
		sess.close(ctx)

		fc, ok := sess.cache.(*cache.FileCache)
		if !ok {
			FatalError("watch needs the file cache")
		}
		if interval > 0 && !offline {
			go pullEvery(ctx, sess, interval)
		}
		if err := watchTree(ctx, fc, sess.appID); err != nil {
			FatalError("%v", err)
		}
	},
}

func init() {
	watchCmd.Flags().Duration("interval", 0, "Also pull from the CMS this often (e.g. 30s); 0 disables")
	rootCmd.AddCommand(watchCmd)
}

// pullEvery refreshes the cache from the CMS until ctx is done. Failures are
// logged and retried on the next tick.
func pullEvery(ctx context.Context, sess *session, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t, err := sess.client.GetTree(ctx, sess.appID)
			if err != nil {
				logger.Warn().Err(err).Msg("watch: pull failed")
				continue
			}
			if err := sess.cache.Save(ctx, t); err != nil {
				logger.Warn().Err(err).Msg("watch: cache write failed")
			}
		}
	}
}

func redraw(ctx context.Context, fc *cache.FileCache, appID string) {
	t, err := fc.Load(ctx, appID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error refreshing tree: %v\n", err)
		return
	}
	if ui.IsTerminal() {
		fmt.Print("\033[H\033[2J")
	}
	if err := ui.RenderTree(os.Stdout, t, ui.TreeOptions{}); err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering tree: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "\nWatching for changes... (Press Ctrl+C to exit)\n")
}

// watchTree redraws on writes to the app's cache file until ctx is done.
func watchTree(ctx context.Context, fc *cache.FileCache, appID string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: atomic writes replace the file, which drops a
	// watch on the file itself.
	if err := watcher.Add(fc.Dir); err != nil {
		return fmt.Errorf("error watching directory: %w", err)
	}
	target := filepath.Base(fc.Path(appID))

	redraw(ctx, fc, appID)

	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(os.Stderr, "\nStopped watching.\n")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if base := filepath.Base(event.Name); base != target || strings.Contains(base, ".tmp.") {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() { redraw(ctx, fc, appID) })
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watcher error: %v\n", err)
		}
	}
}
