package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"filesage/internal/cache"
	"filesage/internal/organizer"
	"filesage/internal/scan"
)

var debounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Watch a directory and invalidate cached suggestions on change",
	Long: `watch keeps the suggestion cache honest: whenever the directory's
contents change, its cached suggestions are dropped so the next organize
run asks the model again. Runs until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&debounce, "debounce", 2*time.Second, "settle time before reacting to a burst of changes")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	cfg, abs, err := initWorkspace(dir)
	if err != nil {
		return err
	}

	suggestionCache := cache.NewTiered[[]organizer.Suggestion](
		"suggestions", stateDir(abs), cfg.Cache.TTLDuration())
	key := cache.Key(abs)

	watcher, err := scan.NewWatcher(abs, debounce)
	if err != nil {
		return err
	}
	if err := watcher.Start(cmd.Context()); err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl-C to stop)\n", abs)
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case <-watcher.Events():
			suggestionCache.Invalidate(key)
			zap.S().Infof("directory changed, invalidated cached suggestions for %s", abs)
		}
	}
}
