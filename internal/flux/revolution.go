package flux

import (
	"fmt"
	"strings"
)

// RevolutionWindow is one disk rotation inside a track capture. Start and End
// are sample indices of the bounding index pulses; End is shared with the
// next window's Start.
type RevolutionWindow struct {
	Index    int     `msgpack:"index"`
	Start    int     `msgpack:"start"`
	End      int     `msgpack:"end"`
	Duration float64 `msgpack:"duration"`
	Bitcells uint32  `msgpack:"bitcells"`
}

// OverlapPolicy selects which revolutions receive the bitcell overlap
// correction.
type OverlapPolicy string

const (
	OverlapFirst      OverlapPolicy = "first"
	OverlapAllButLast OverlapPolicy = "all-but-last"
	OverlapAll        OverlapPolicy = "all"
	OverlapNone       OverlapPolicy = "none"
)

// ParseOverlapPolicy accepts the configuration spelling of a policy.
func ParseOverlapPolicy(value string) (OverlapPolicy, error) {
	switch p := OverlapPolicy(strings.ToLower(strings.TrimSpace(value))); p {
	case OverlapFirst, OverlapAllButLast, OverlapAll, OverlapNone:
		return p, nil
	case "":
		return OverlapFirst, nil
	default:
		return "", fmt.Errorf("unknown overlap policy %q", value)
	}
}

// OverlapCorrection is subtracted from the bitcell count of the revolutions
// its policy selects.
type OverlapCorrection struct {
	Count  uint32
	Policy OverlapPolicy
}

func (c OverlapCorrection) applies(rev, revolutions int) bool {
	switch c.Policy {
	case OverlapFirst:
		return rev == 0
	case OverlapAllButLast:
		return rev < revolutions-1
	case OverlapAll:
		return true
	default:
		return false
	}
}

func (c OverlapCorrection) apply(rev, revolutions int, raw uint32) uint32 {
	if !c.applies(rev, revolutions) {
		return raw
	}
	if raw < c.Count {
		return 0
	}
	return raw - c.Count
}

// Segment splits a track into revolutions using its index-channel falling
// edges. When the edge count is not revolutions+1 an *IntegrityWarning is
// returned; the windows are still built from the leading edges if there are
// enough of them.
func Segment(samples []Sample, indexEdges []int, revolutions int, corr OverlapCorrection) ([]RevolutionWindow, error) {
	if revolutions <= 0 {
		return nil, fmt.Errorf("segment: revolutions must be positive, got %d", revolutions)
	}
	var warning *IntegrityWarning
	if len(indexEdges) != revolutions+1 {
		warning = &IntegrityWarning{
			Expected:   revolutions + 1,
			Found:      len(indexEdges),
			BestEffort: len(indexEdges) > revolutions+1,
		}
		if !warning.BestEffort {
			return nil, warning
		}
	}

	windows := make([]RevolutionWindow, revolutions)
	for k := range windows {
		start, end := indexEdges[k], indexEdges[k+1]
		if start < 0 || end >= len(samples) || end <= start {
			return nil, &FormatError{Offset: -1, Reason: fmt.Sprintf("index edges %d..%d outside capture of %d samples", start, end, len(samples))}
		}
		raw := uint32(countFallingEdges(samples, start, end))
		windows[k] = RevolutionWindow{
			Index:    k,
			Start:    start,
			End:      end,
			Duration: samples[end].Time - samples[start].Time,
			Bitcells: corr.apply(k, revolutions, raw),
		}
	}
	if warning != nil {
		return windows, warning
	}
	return windows, nil
}
