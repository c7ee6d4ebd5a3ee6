package scp

import (
	"sort"
	"strings"
)

// Manufacturer codes for the high nibble of the disk type byte.
const (
	ManufacturerCBM    = 0x0
	ManufacturerAtari  = 0x1
	ManufacturerApple  = 0x2
	ManufacturerPC     = 0x3
	ManufacturerTandy  = 0x4
	ManufacturerTI     = 0x5
	ManufacturerRoland = 0x6
	ManufacturerOther  = 0x8
)

// Preset is a named disk type with its drive flags.
type Preset struct {
	Name         string
	Description  string
	Manufacturer byte
	Subtype      byte
	TPI96        bool
	RPM360       bool
}

var presets = map[string]Preset{
	"c64":       {Name: "c64", Description: "commodore 64 1541", Manufacturer: ManufacturerCBM, Subtype: 0x00},
	"amiga":     {Name: "amiga", Description: "amiga dd", Manufacturer: ManufacturerCBM, Subtype: 0x04, TPI96: true},
	"pc360":     {Name: "pc360", Description: "pc 360k 5.25in dd", Manufacturer: ManufacturerPC, Subtype: 0x00},
	"pc720":     {Name: "pc720", Description: "pc 720k 3.5in dd", Manufacturer: ManufacturerPC, Subtype: 0x01, TPI96: true},
	"pc12m":     {Name: "pc12m", Description: "pc 1.2m 5.25in hd", Manufacturer: ManufacturerPC, Subtype: 0x02, TPI96: true, RPM360: true},
	"pc144m":    {Name: "pc144m", Description: "pc 1.44m 3.5in hd", Manufacturer: ManufacturerPC, Subtype: 0x03, TPI96: true},
	"other360":  {Name: "other360", Description: "generic 360k", Manufacturer: ManufacturerOther, Subtype: 0x00},
	"other12m":  {Name: "other12m", Description: "generic 1.2m", Manufacturer: ManufacturerOther, Subtype: 0x01, TPI96: true, RPM360: true},
	"other720":  {Name: "other720", Description: "generic 720k", Manufacturer: ManufacturerOther, Subtype: 0x04, TPI96: true},
	"other144m": {Name: "other144m", Description: "generic 1.44m", Manufacturer: ManufacturerOther, Subtype: 0x05, TPI96: true},
}

// LookupPreset finds a preset by case-insensitive name.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Presets returns every preset sorted by name.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ManufacturerName names a disk type high nibble.
func ManufacturerName(code byte) string {
	switch code {
	case ManufacturerCBM:
		return "commodore"
	case ManufacturerAtari:
		return "atari"
	case ManufacturerApple:
		return "apple"
	case ManufacturerPC:
		return "pc"
	case ManufacturerTandy:
		return "tandy"
	case ManufacturerTI:
		return "texas instruments"
	case ManufacturerRoland:
		return "roland"
	case ManufacturerOther:
		return "other"
	default:
		return "unknown"
	}
}
