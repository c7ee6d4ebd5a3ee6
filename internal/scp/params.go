package scp

import (
	"errors"
	"fmt"
	"math"
)

const (
	// HeaderSize is the fixed file header length.
	HeaderSize = 16
	// DefaultVersion is written when Params.Version is zero (format 2.2).
	DefaultVersion = 0x22
	// DefaultReferenceClock is the SCP hardware clock the resolution byte is
	// expressed against.
	DefaultReferenceClock = 40e6

	// BitWidth16 is the bit-width code for 16-bit flux values.
	BitWidth16 = 0
	// HeadsUnsupported is written as the head code when the head count has no
	// SCP encoding.
	HeadsUnsupported = 0xFF
)

// Header flag bits.
const (
	FlagIndex  = 0x01
	Flag96TPI  = 0x02
	Flag360RPM = 0x04
)

var (
	fileMagic  = []byte("SCP")
	trackMagic = []byte("TRK")
)

// Params are the image-wide settings written into the header and used to lay
// out the offset table.
type Params struct {
	Heads          int
	Cylinders      int
	Revolutions    int
	SampleRate     float64
	ReferenceClock float64
	Version        byte
	Manufacturer   byte
	DiskSubtype    byte
	TPI96          bool
	RPM360         bool
	// Side is the captured head for single-sided images.
	Side int
	// Trailer appends a capture timestamp after the last track block.
	Trailer bool
}

// Validate checks that the parameters describe a writable image.
func (p Params) Validate() error {
	if p.Heads <= 0 {
		return fmt.Errorf("scp: heads must be positive, got %d", p.Heads)
	}
	if p.Cylinders <= 0 {
		return fmt.Errorf("scp: cylinders must be positive, got %d", p.Cylinders)
	}
	if p.Revolutions <= 0 || p.Revolutions > 0xFF {
		return fmt.Errorf("scp: revolutions must be between 1 and 255, got %d", p.Revolutions)
	}
	if p.Manufacturer > 0x0F || p.DiskSubtype > 0x0F {
		return fmt.Errorf("scp: disk type nibbles out of range (manufacturer %#x, subtype %#x)", p.Manufacturer, p.DiskSubtype)
	}
	if p.Heads == 1 && (p.Side < 0 || p.Side > 1) {
		return fmt.Errorf("scp: side must be 0 or 1, got %d", p.Side)
	}
	if _, err := p.Resolution(); err != nil {
		return err
	}
	return nil
}

// TrackCount is the number of offset table entries.
func (p Params) TrackCount() int {
	return p.Heads * p.Cylinders
}

// DiskType packs the manufacturer and subtype nibbles.
func (p Params) DiskType() byte {
	return p.Manufacturer<<4 | p.DiskSubtype&0x0F
}

// Flags returns the header flag byte. Flux data always starts at the index
// pulse.
func (p Params) Flags() byte {
	flags := byte(FlagIndex)
	if p.TPI96 {
		flags |= Flag96TPI
	}
	if p.RPM360 {
		flags |= Flag360RPM
	}
	return flags
}

// HeadCode encodes the head count: 0 for both sides, 1 or 2 for side 0 or
// side 1 only.
func (p Params) HeadCode() byte {
	switch p.Heads {
	case 2:
		return 0
	case 1:
		return byte(1 + p.Side)
	default:
		return HeadsUnsupported
	}
}

// Resolution returns reference_clock/sample_rate - 1. The ratio must be a
// whole number between 1 and 256.
func (p Params) Resolution() (byte, error) {
	ref := p.ReferenceClock
	if ref == 0 {
		ref = DefaultReferenceClock
	}
	if p.SampleRate <= 0 {
		return 0, errors.New("scp: sample rate must be positive")
	}
	ratio := ref / p.SampleRate
	if ratio < 1 || ratio > 256 || math.Abs(ratio-math.Round(ratio)) > 1e-9 {
		return 0, fmt.Errorf("scp: reference clock %.0f Hz is not a whole multiple (1-256) of sample rate %.0f Hz", ref, p.SampleRate)
	}
	return byte(math.Round(ratio) - 1), nil
}

func (p Params) version() byte {
	if p.Version == 0 {
		return DefaultVersion
	}
	return p.Version
}

func (p Params) trackHeaderSize() int {
	return 4 + 12*p.Revolutions
}
