package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fluxscp/internal/logging"
	"fluxscp/internal/session"
)

const timeLayout = "2006-01-02 15:04"

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Inspect and manage capture sessions",
	}

	sessionCmd.AddCommand(newSessionListCommand(ctx))
	sessionCmd.AddCommand(newSessionShowCommand(ctx))
	sessionCmd.AddCommand(newSessionDeleteCommand(ctx))

	return sessionCmd
}

func newSessionListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.sessions()
			if err != nil {
				return err
			}
			runCtx := cmd.Context()
			sessions, err := store.List(runCtx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions recorded")
				return nil
			}
			rows := make([][]string, 0, len(sessions))
			for _, sess := range sessions {
				summary, err := store.Summarize(runCtx, sess.ID)
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					shortID(sess.ID),
					sess.Label,
					string(sess.Status),
					fmt.Sprintf("%d/%d", summary.Captured+summary.Warning, summary.Total()),
					sess.CreatedAt.Local().Format(timeLayout),
					sess.OutputPath,
				})
			}
			headers := []string{"ID", "Label", "Status", "Tracks", "Created", "Image"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}
}

func newSessionShowCommand(ctx *commandContext) *cobra.Command {
	var showTracks bool

	cmd := &cobra.Command{
		Use:   "show <session>",
		Short: "Show a session's settings and track outcomes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.sessions()
			if err != nil {
				return err
			}
			runCtx := cmd.Context()
			sess, err := lookupSession(runCtx, store, args[0])
			if err != nil {
				return err
			}
			summary, err := store.Summarize(runCtx, sess.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			title := sess.ID
			if sess.Label != "" {
				title = fmt.Sprintf("%s (%s)", sess.Label, sess.ID)
			}
			for _, line := range renderSectionHeader(title, colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Status", sessionStatusKind(sess.Status), sessionStatusMessage(sess), colorize))
			fmt.Fprintln(out, renderStatusLine("Created", statusInfo, sess.CreatedAt.Local().Format(time.RFC3339), colorize))
			fmt.Fprintln(out, renderStatusLine("Updated", statusInfo, sess.UpdatedAt.Local().Format(time.RFC3339), colorize))
			if sess.OutputPath != "" {
				fmt.Fprintln(out, renderStatusLine("Image", statusInfo, sess.OutputPath, colorize))
			}
			writeSettings(cmd, sess.Settings, colorize)
			writeSummary(out, summary, colorize)

			if !showTracks {
				return nil
			}
			tracks, err := store.Tracks(runCtx, sess.ID, false)
			if err != nil {
				return err
			}
			if len(tracks) == 0 {
				fmt.Fprintln(out, "\nNo tracks recorded")
				return nil
			}
			rows := make([][]string, 0, len(tracks))
			for _, rec := range tracks {
				rows = append(rows, []string{
					fmt.Sprintf("%d", rec.Physical),
					fmt.Sprintf("%d", rec.Cylinder),
					fmt.Sprintf("%d", rec.Head),
					string(rec.Status),
					fmt.Sprintf("%d", rec.Attempts),
					fmt.Sprintf("%d", rec.IndexEdges),
					rec.Message,
				})
			}
			headers := []string{"Track", "Cyl", "Head", "Status", "Attempts", "Index", "Message"}
			aligns := []columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignRight, alignRight, alignLeft}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showTracks, "tracks", "t", false, "List every recorded track")
	return cmd
}

func newSessionDeleteCommand(ctx *commandContext) *cobra.Command {
	var keepCache bool

	cmd := &cobra.Command{
		Use:   "delete <session>",
		Short: "Delete a session and its cached captures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.sessions()
			if err != nil {
				return err
			}
			runCtx := cmd.Context()
			sess, err := lookupSession(runCtx, store, args[0])
			if err != nil {
				return err
			}
			if err := store.Delete(runCtx, sess.ID); err != nil {
				return err
			}
			if !keepCache {
				cache, err := ctx.captureCache()
				if err != nil {
					return err
				}
				if err := cache.Remove(sess.ID); err != nil {
					logger, _ := ctx.ensureLogger()
					logging.WarnWithContext(logger, "failed to remove cached captures", "cache_remove_failed",
						logging.String("session_id", sess.ID),
						logging.Error(err),
					)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", sess.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepCache, "keep-cache", false, "Keep the session's cached raw captures")
	return cmd
}

func sessionStatusMessage(sess *session.Session) string {
	if msg := strings.TrimSpace(sess.Message); msg != "" {
		return fmt.Sprintf("%s (%s)", sess.Status, msg)
	}
	return string(sess.Status)
}

func writeSettings(cmd *cobra.Command, settings session.Settings, colorize bool) {
	out := cmd.OutOrStdout()
	img := settings.Image
	decode := settings.Decode
	geometry := fmt.Sprintf("%d cylinders x %d heads", img.Cylinders, img.Heads)
	if img.Heads == 1 {
		geometry += fmt.Sprintf(" (side %d)", img.Side)
	}
	if settings.StartingCylinder > 0 || settings.TrackSkip > 0 {
		geometry += fmt.Sprintf(", from cylinder %d, track skip %d", settings.StartingCylinder, settings.TrackSkip)
	}
	lines := []string{
		renderStatusLine("Geometry", statusInfo, geometry, colorize),
		renderStatusLine("Disk type", statusInfo, diskTypeLabel(img.DiskType()), colorize),
		renderStatusLine("Sample rate", statusInfo, fmt.Sprintf("%.0f Hz", img.SampleRate), colorize),
		renderStatusLine("Revolutions", statusInfo, fmt.Sprintf("%d", decode.Revolutions), colorize),
		renderStatusLine("Flux offset", statusInfo, fmt.Sprintf("%d", decode.FluxOffset), colorize),
		renderStatusLine("Overlap", statusInfo, fmt.Sprintf("%s, %d bitcells", decode.Overlap.Policy, decode.Overlap.Count), colorize),
		renderStatusLine("Best effort", statusInfo, yesNo(settings.BestEffort), colorize),
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
