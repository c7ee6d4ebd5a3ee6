package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune the raw capture cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache usage per session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := ctx.captureCache()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cache == nil {
				fmt.Fprintln(out, "Capture cache is disabled (cache.enabled = false)")
				return nil
			}
			stats, err := cache.Stats()
			if err != nil {
				return err
			}
			colorize := shouldColorize(out)
			usage := statusOK
			if stats.TotalBytes > stats.MaxBytes {
				usage = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Sessions", statusInfo, fmt.Sprintf("%d", stats.Sessions), colorize))
			fmt.Fprintln(out, renderStatusLine("Size", usage,
				fmt.Sprintf("%s of %s", formatBytes(stats.TotalBytes), formatBytes(stats.MaxBytes)), colorize))
			fmt.Fprintln(out, renderStatusLine("Free space", statusInfo,
				fmt.Sprintf("%s (%.0f%%)", formatBytes(int64(stats.FreeBytes)), stats.FreeRatio*100), colorize))
			if len(stats.Entries) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(stats.Entries))
			for _, entry := range stats.Entries {
				rows = append(rows, []string{
					entry.SessionID,
					fmt.Sprintf("%d", entry.Tracks),
					formatBytes(entry.SizeBytes),
					entry.ModifiedAt.Local().Format(timeLayout),
				})
			}
			headers := []string{"Session", "Tracks", "Size", "Modified"}
			aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignLeft}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Remove the oldest cached sessions until the cache fits its limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := ctx.captureCache()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cache == nil {
				fmt.Fprintln(out, "Capture cache is disabled (cache.enabled = false)")
				return nil
			}
			before, err := cache.Stats()
			if err != nil {
				return err
			}
			if err := cache.Prune(cmd.Context()); err != nil {
				return err
			}
			after, err := cache.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Pruned %d sessions (%s freed)\n",
				before.Sessions-after.Sessions, formatBytes(before.TotalBytes-after.TotalBytes))
			return nil
		},
	})

	return cacheCmd
}
