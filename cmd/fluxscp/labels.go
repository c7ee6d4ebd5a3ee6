package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fluxscp/internal/scp"
)

var titleCaser = cases.Title(language.Und)

func titleLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return titleCaser.String(value)
}

func manufacturerLabel(code byte) string {
	return titleLabel(scp.ManufacturerName(code))
}

// diskTypeLabel names a disk type byte, preferring a matching preset.
func diskTypeLabel(diskType byte) string {
	for _, p := range scp.Presets() {
		if p.Manufacturer<<4|p.Subtype == diskType {
			return fmt.Sprintf("%s (0x%02x)", titleLabel(p.Description), diskType)
		}
	}
	return fmt.Sprintf("%s subtype %d (0x%02x)", manufacturerLabel(diskType>>4), diskType&0x0F, diskType)
}

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
