package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"fluxscp/internal/scp"
)

func newInspectCommand() *cobra.Command {
	var headerOnly bool

	cmd := &cobra.Command{
		Use:         "inspect <image>",
		Short:       "Show the header and track table of an SCP image",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			img, err := scp.Parse(data)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			writeImageHeader(out, args[0], len(data), img, shouldColorize(out))
			if headerOnly {
				return nil
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable(trackTable(img)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&headerOnly, "header", false, "Only show the file header")
	return cmd
}

func writeImageHeader(out io.Writer, path string, size int, img *scp.Image, colorize bool) {
	h := img.Header
	for _, line := range renderSectionHeader(path, colorize) {
		fmt.Fprintln(out, line)
	}
	lines := []string{
		renderStatusLine("Size", statusInfo, formatBytes(int64(size)), colorize),
		renderStatusLine("Version", statusInfo, fmt.Sprintf("%d.%d", h.Version>>4, h.Version&0x0F), colorize),
		renderStatusLine("Disk type", statusInfo, diskTypeLabel(h.DiskType), colorize),
		renderStatusLine("Revolutions", statusInfo, fmt.Sprintf("%d", h.Revolutions), colorize),
		renderStatusLine("Tracks", statusInfo, fmt.Sprintf("%d-%d (%d stored)", h.StartTrack, h.EndTrack, len(img.Tracks)), colorize),
		renderStatusLine("Heads", statusInfo, headCodeLabel(h.HeadCode), colorize),
		renderStatusLine("Flags", statusInfo, flagsLabel(h.Flags), colorize),
		renderStatusLine("Sample rate", statusInfo, fmt.Sprintf("%.0f Hz (resolution %d)", h.SampleRate(), h.Resolution), colorize),
	}
	if img.Trailer != "" {
		lines = append(lines, renderStatusLine("Captured", statusInfo, img.Trailer, colorize))
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}

func headCodeLabel(code byte) string {
	switch code {
	case 0:
		return "both"
	case 1:
		return "side 0 only"
	case 2:
		return "side 1 only"
	default:
		return fmt.Sprintf("unknown (0x%02x)", code)
	}
}

func flagsLabel(flags byte) string {
	var parts []string
	if flags&scp.FlagIndex != 0 {
		parts = append(parts, "index")
	}
	if flags&scp.Flag96TPI != 0 {
		parts = append(parts, "96tpi")
	} else {
		parts = append(parts, "48tpi")
	}
	if flags&scp.Flag360RPM != 0 {
		parts = append(parts, "360rpm")
	} else {
		parts = append(parts, "300rpm")
	}
	return fmt.Sprintf("0x%02x (%s)", flags, strings.Join(parts, ", "))
}

func trackTable(img *scp.Image) ([]string, [][]string, []columnAlignment) {
	headers := []string{"Slot", "Track", "Flux", "Bitcells", "Rev 1"}
	rate := img.Header.SampleRate()
	rows := make([][]string, 0, len(img.Tracks))
	for _, tb := range img.Tracks {
		bitcells := make([]string, len(tb.Revolutions))
		for i, rev := range tb.Revolutions {
			bitcells[i] = fmt.Sprintf("%d", rev.Bitcells)
		}
		first := "-"
		if len(tb.Revolutions) > 0 && rate > 0 {
			first = fmt.Sprintf("%.3f ms", float64(tb.Revolutions[0].Duration)/rate*1e3)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", tb.Slot),
			fmt.Sprintf("%d", tb.Number),
			fmt.Sprintf("%d", len(tb.Flux)),
			strings.Join(bitcells, " / "),
			first,
		})
	}
	aligns := []columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignRight}
	return headers, rows, aligns
}
