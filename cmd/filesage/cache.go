package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"filesage/internal/cache"
	"filesage/internal/organizer"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the suggestion cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats [directory]",
	Short: "Show cache statistics for a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache(args)
		if err != nil {
			return err
		}
		c.SweepExpired()
		stats := c.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "memory entries: %d\nttl: %v\nlocation: %s\n",
			stats.MemoryEntries, stats.TTL, stats.Location)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [directory]",
	Short: "Drop all cached suggestions for a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache(args)
		if err != nil {
			return err
		}
		c.InvalidateAll()
		fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
		return nil
	},
}

func openCache(args []string) (*cache.Tiered[[]organizer.Suggestion], error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	cfg, abs, err := initWorkspace(dir)
	if err != nil {
		return nil, err
	}
	return cache.NewTiered[[]organizer.Suggestion](
		"suggestions", stateDir(abs), cfg.Cache.TTLDuration()), nil
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
