package config

import (
	"fmt"

	"fluxscp/internal/flux"
	"fluxscp/internal/scp"
)

// SampleFormat describes how capture records are interpreted.
func (c *Config) SampleFormat() flux.SampleFormat {
	return flux.SampleFormat{
		Rate:     c.Analyzer.SampleRateHz,
		IndexBit: uint(c.Analyzer.IndexBit),
		DataBit:  uint(c.Analyzer.DataBit),
	}
}

// DecodeOptions builds decoder options from the [analyzer] and [decode]
// sections.
func (c *Config) DecodeOptions() (flux.Options, error) {
	policy, err := flux.ParseOverlapPolicy(c.Decode.OverlapPolicy)
	if err != nil {
		return flux.Options{}, err
	}
	return flux.Options{
		Format:      c.SampleFormat(),
		Revolutions: c.Decode.Revolutions,
		FluxOffset:  c.Decode.FluxOffset,
		Overlap: flux.OverlapCorrection{
			Count:  uint32(c.Decode.OverlapCount),
			Policy: policy,
		},
	}, nil
}

// ImageParams builds SCP header parameters. The preset supplies the disk type
// and drive flags; explicit [format] values win.
func (c *Config) ImageParams() (scp.Params, error) {
	p := scp.Params{
		Heads:          c.Geometry.Heads,
		Cylinders:      c.Geometry.Cylinders,
		Revolutions:    c.Decode.Revolutions,
		SampleRate:     c.Analyzer.SampleRateHz,
		ReferenceClock: c.Format.ReferenceClockHz,
		Version:        byte(c.Format.Version),
		Side:           c.Geometry.Side,
		Trailer:        c.Format.Trailer,
	}
	if c.Format.Preset != "" {
		preset, ok := scp.LookupPreset(c.Format.Preset)
		if !ok {
			return scp.Params{}, fmt.Errorf("unknown preset %q", c.Format.Preset)
		}
		p.Manufacturer = preset.Manufacturer
		p.DiskSubtype = preset.Subtype
		p.TPI96 = preset.TPI96
		p.RPM360 = preset.RPM360
	}
	if c.Format.Manufacturer != nil {
		p.Manufacturer = byte(*c.Format.Manufacturer)
	}
	if c.Format.DiskType != nil {
		p.DiskSubtype = byte(*c.Format.DiskType)
	}
	if c.Format.TPI96 != nil {
		p.TPI96 = *c.Format.TPI96
	}
	if c.Format.RPM360 != nil {
		p.RPM360 = *c.Format.RPM360
	}
	if err := p.Validate(); err != nil {
		return scp.Params{}, err
	}
	return p, nil
}

// CylinderStride is the number of head steps between captured cylinders.
func (c *Config) CylinderStride() int {
	return 1 + c.Geometry.TrackSkip
}
