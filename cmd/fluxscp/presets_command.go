package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fluxscp/internal/scp"
)

func newPresetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "presets",
		Short:       "List the disk type presets accepted by format.preset",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := scp.Presets()
			rows := make([][]string, 0, len(presets))
			for _, p := range presets {
				rows = append(rows, []string{
					p.Name,
					titleLabel(p.Description),
					manufacturerLabel(p.Manufacturer),
					fmt.Sprintf("0x%02x", p.Manufacturer<<4|p.Subtype),
					tpiLabel(p.TPI96),
					rpmLabel(p.RPM360),
				})
			}
			headers := []string{"Preset", "Description", "Manufacturer", "Disk type", "TPI", "RPM"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}
}

func tpiLabel(tpi96 bool) string {
	if tpi96 {
		return "96"
	}
	return "48"
}

func rpmLabel(rpm360 bool) string {
	if rpm360 {
		return "360"
	}
	return "300"
}
