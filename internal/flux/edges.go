package flux

// Channel selects which line of a Sample an operation looks at.
type Channel int

const (
	ChannelIndex Channel = iota
	ChannelData
)

func (c Channel) String() string {
	switch c {
	case ChannelIndex:
		return "index"
	case ChannelData:
		return "data"
	default:
		return "unknown"
	}
}

func (c Channel) bit(s Sample) bool {
	if c == ChannelIndex {
		return s.Index
	}
	return s.Data
}

// FallingEdges returns the indices i where the channel is high at i-1 and low
// at i. Index 0 is never an edge.
func FallingEdges(samples []Sample, ch Channel) []int {
	var edges []int
	for i := 1; i < len(samples); i++ {
		if ch.bit(samples[i-1]) && !ch.bit(samples[i]) {
			edges = append(edges, i)
		}
	}
	return edges
}

// countFallingEdges counts data-channel falling edges i with lo < i <= hi.
func countFallingEdges(samples []Sample, lo, hi int) int {
	count := 0
	for i := lo + 1; i <= hi; i++ {
		if samples[i-1].Data && !samples[i].Data {
			count++
		}
	}
	return count
}
