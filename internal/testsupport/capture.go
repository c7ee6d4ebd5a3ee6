package testsupport

import (
	"sort"

	"fluxscp/internal/flux"
)

// Channel bits used by synthetic captures; they match the default analyzer
// wiring in config.Default.
const (
	DefaultIndexBit = 1
	DefaultDataBit  = 3
)

// CaptureBuilder assembles synthetic capture buffers. Sample i has timestamp
// i, so at a sample rate of R Hz one sample is one tick.
type CaptureBuilder struct {
	samples  int
	indexBit uint
	dataBit  uint
	index    map[int]struct{}
	data     map[int]struct{}
}

// NewCapture starts a capture of n samples with both channels low.
func NewCapture(n int) *CaptureBuilder {
	return &CaptureBuilder{
		samples:  n,
		indexBit: DefaultIndexBit,
		dataBit:  DefaultDataBit,
		index:    map[int]struct{}{},
		data:     map[int]struct{}{},
	}
}

// Bits overrides the channel word bit positions.
func (b *CaptureBuilder) Bits(indexBit, dataBit uint) *CaptureBuilder {
	b.indexBit = indexBit
	b.dataBit = dataBit
	return b
}

// IndexPulses places an index falling edge at each position (high on the
// previous sample).
func (b *CaptureBuilder) IndexPulses(at ...int) *CaptureBuilder {
	for _, pos := range at {
		b.index[pos-1] = struct{}{}
	}
	return b
}

// FluxEdges places a read-data falling edge at each position.
func (b *CaptureBuilder) FluxEdges(at ...int) *CaptureBuilder {
	for _, pos := range at {
		b.data[pos-1] = struct{}{}
	}
	return b
}

// EvenFlux places a flux edge every step samples in [from, to].
func (b *CaptureBuilder) EvenFlux(from, to, step int) *CaptureBuilder {
	for pos := from; pos <= to; pos += step {
		b.data[pos-1] = struct{}{}
	}
	return b
}

// FluxPositions returns the sorted flux edge positions placed so far.
func (b *CaptureBuilder) FluxPositions() []int {
	out := make([]int, 0, len(b.data))
	for pos := range b.data {
		out = append(out, pos+1)
	}
	sort.Ints(out)
	return out
}

// Bytes encodes the capture as little-endian records.
func (b *CaptureBuilder) Bytes() []byte {
	raw := make([]byte, 0, b.samples*flux.RecordSize)
	for i := 0; i < b.samples; i++ {
		var word uint64
		if _, ok := b.index[i]; ok {
			word |= 1 << b.indexBit
		}
		if _, ok := b.data[i]; ok {
			word |= 1 << b.dataBit
		}
		raw = flux.AppendRecord(raw, int64(i), word)
	}
	return raw
}

// RegularTrack builds a capture with revs+1 index pulses spaced period
// samples apart (the first at period) and a flux edge every fluxStep samples.
func RegularTrack(revs, period, fluxStep int) *CaptureBuilder {
	total := period * (revs + 2)
	b := NewCapture(total)
	for k := 0; k <= revs; k++ {
		b.IndexPulses(period * (k + 1))
	}
	return b.EvenFlux(fluxStep, total-1, fluxStep)
}
