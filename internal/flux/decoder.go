package flux

import (
	"errors"
	"fmt"
)

// Track is the decoded flux data for one physical track.
type Track struct {
	Physical    uint32             `msgpack:"physical"`
	Intervals   []float64          `msgpack:"intervals"`
	Revolutions []RevolutionWindow `msgpack:"revolutions"`
}

// PhysicalIndex linearizes a cylinder/head pair.
func PhysicalIndex(heads, cylinder, head int) uint32 {
	return uint32(heads*cylinder + head)
}

// Options configures a Decoder.
type Options struct {
	Format      SampleFormat
	Revolutions int
	FluxOffset  int
	Overlap     OverlapCorrection
}

// Decoder turns one capture buffer into a Track.
type Decoder struct {
	opts Options
}

// NewDecoder validates the options and returns a decoder.
func NewDecoder(opts Options) (*Decoder, error) {
	if err := opts.Format.Validate(); err != nil {
		return nil, err
	}
	if opts.Revolutions <= 0 || opts.Revolutions > 255 {
		return nil, fmt.Errorf("revolutions must be between 1 and 255, got %d", opts.Revolutions)
	}
	switch opts.Overlap.Policy {
	case OverlapFirst, OverlapAllButLast, OverlapAll, OverlapNone:
	default:
		return nil, fmt.Errorf("unknown overlap policy %q", opts.Overlap.Policy)
	}
	return &Decoder{opts: opts}, nil
}

// Options returns the decoder configuration.
func (d *Decoder) Options() Options {
	return d.opts
}

// Decode parses raw and decodes it as physical track physical.
//
// A *FormatError means the buffer is unusable. An *IntegrityWarning means the
// index pulse count was wrong: when the warning's BestEffort is true the
// returned Track is still populated from the leading pulses, otherwise it is
// nil.
func (d *Decoder) Decode(physical uint32, raw []byte) (*Track, error) {
	samples, err := ParseSamples(raw, d.opts.Format)
	if err != nil {
		return nil, err
	}
	return d.DecodeSamples(physical, samples)
}

// DecodeSamples is Decode for already-parsed samples.
func (d *Decoder) DecodeSamples(physical uint32, samples []Sample) (*Track, error) {
	indexEdges := FallingEdges(samples, ChannelIndex)

	windows, segErr := Segment(samples, indexEdges, d.opts.Revolutions, d.opts.Overlap)
	var warning *IntegrityWarning
	if segErr != nil {
		if !errors.As(segErr, &warning) || !warning.BestEffort {
			return nil, segErr
		}
	}

	first := windows[0].Start
	last := windows[len(windows)-1].End
	intervals, err := EncodeIntervals(samples, first, last, d.opts.FluxOffset)
	if err != nil {
		return nil, err
	}
	// Without overlap correction the shared boundary edge leaves the header
	// one word ahead of the intervals; anything more is a skewed window.
	if declared := declaredBitcells(windows); declared > uint64(len(intervals))+1 {
		return nil, &FormatError{Offset: -1, Reason: fmt.Sprintf("revolutions declare %d bitcells but the flux window holds %d intervals", declared, len(intervals))}
	}

	track := &Track{
		Physical:    physical,
		Intervals:   intervals,
		Revolutions: windows,
	}
	if warning != nil {
		return track, warning
	}
	return track, nil
}

func declaredBitcells(windows []RevolutionWindow) uint64 {
	var total uint64
	for _, w := range windows {
		total += uint64(w.Bitcells)
	}
	return total
}
