package flux

import (
	"fmt"
	"math"
)

// EncodeIntervals returns the time between consecutive read-data falling
// edges between the first and last index pulse. fluxOffset shifts the window
// by whole samples to compensate for skew between the two channels; a shift
// that moves the window outside the capture is a *FormatError.
func EncodeIntervals(samples []Sample, first, last, fluxOffset int) ([]float64, error) {
	if len(samples) == 0 {
		return nil, nil
	}
	lo, hi := first+fluxOffset, last+fluxOffset
	if lo < 0 || hi >= len(samples) {
		return nil, &FormatError{Offset: -1, Reason: fmt.Sprintf("flux offset %d moves window %d..%d outside capture of %d samples", fluxOffset, first, last, len(samples))}
	}
	if hi <= lo {
		return nil, nil
	}

	var prev float64
	var intervals []float64
	seen := false
	for i := lo + 1; i <= hi; i++ {
		if !samples[i-1].Data || samples[i].Data {
			continue
		}
		t := samples[i].Time
		if seen {
			d := t - prev
			if !(d > 0) {
				return nil, &FormatError{Offset: i * RecordSize, Reason: fmt.Sprintf("non-increasing timestamp at sample %d", i)}
			}
			intervals = append(intervals, d)
		}
		prev = t
		seen = true
	}
	return intervals, nil
}

// Quantize converts seconds to sample-clock ticks, rounding half to even.
// Negative and NaN inputs quantize to zero.
func Quantize(seconds, rate float64) uint64 {
	v := math.RoundToEven(seconds * rate)
	if !(v > 0) {
		return 0
	}
	if v >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(v)
}
