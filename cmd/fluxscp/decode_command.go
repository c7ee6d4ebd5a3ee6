package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fluxscp/internal/flux"
)

func newDecodeCommand(ctx *commandContext) *cobra.Command {
	var cylinder int
	var head int
	var fluxOffset int

	cmd := &cobra.Command{
		Use:   "decode <capture-file>",
		Short: "Decode one raw capture and show its revolutions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts, err := cfg.DecodeOptions()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("flux-offset") {
				opts.FluxOffset = fluxOffset
			}
			decoder, err := flux.NewDecoder(opts)
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read capture: %w", err)
			}
			samples, err := flux.ParseSamples(raw, opts.Format)
			if err != nil {
				return err
			}
			physical := flux.PhysicalIndex(cfg.Geometry.Heads, cylinder, head)
			track, decodeErr := decoder.DecodeSamples(physical, samples)
			var warning *flux.IntegrityWarning
			if decodeErr != nil && (!errors.As(decodeErr, &warning) || track == nil) {
				return decodeErr
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader(fmt.Sprintf("Track %d (cylinder %d, head %d)", physical, cylinder, head), colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Samples", statusInfo, fmt.Sprintf("%d", len(samples)), colorize))
			fmt.Fprintln(out, renderStatusLine("Intervals", statusInfo, fmt.Sprintf("%d", len(track.Intervals)), colorize))
			if warning != nil {
				fmt.Fprintln(out, renderStatusLine("Index pulses", statusWarn,
					fmt.Sprintf("%d found, %d expected; decoded best effort from the leading pulses", warning.Found, warning.Expected), colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Index pulses", statusOK, fmt.Sprintf("%d", len(track.Revolutions)+1), colorize))
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable(revolutionTable(track)))
			return nil
		},
	}

	cmd.Flags().IntVar(&cylinder, "cylinder", 0, "Cylinder the capture was taken from")
	cmd.Flags().IntVar(&head, "head", 0, "Head the capture was taken from")
	cmd.Flags().IntVar(&fluxOffset, "flux-offset", 0, "Override decode.flux_offset")
	return cmd
}

func revolutionTable(track *flux.Track) ([]string, [][]string, []columnAlignment) {
	headers := []string{"Rev", "Start", "End", "Duration", "RPM", "Bitcells"}
	rows := make([][]string, 0, len(track.Revolutions))
	for _, rev := range track.Revolutions {
		rpm := "-"
		if rev.Duration > 0 {
			rpm = fmt.Sprintf("%.1f", 60/rev.Duration)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", rev.Index),
			fmt.Sprintf("%d", rev.Start),
			fmt.Sprintf("%d", rev.End),
			fmt.Sprintf("%.3f ms", rev.Duration*1e3),
			rpm,
			fmt.Sprintf("%d", rev.Bitcells),
		})
	}
	aligns := []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
	return headers, rows, aligns
}
