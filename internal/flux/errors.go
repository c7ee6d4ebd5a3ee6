package flux

import "fmt"

// FormatError reports a capture buffer that cannot be decoded.
type FormatError struct {
	Offset int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Offset < 0 {
		return "capture format: " + e.Reason
	}
	return fmt.Sprintf("capture format: %s (offset %d)", e.Reason, e.Offset)
}

// IntegrityWarning reports an index pulse count that differs from the
// expected revolutions+1. BestEffort is set when enough pulses were present to
// still build every revolution from the leading ones.
type IntegrityWarning struct {
	Expected   int
	Found      int
	BestEffort bool
}

func (w *IntegrityWarning) Error() string {
	return fmt.Sprintf("capture integrity: expected %d index pulses, found %d", w.Expected, w.Found)
}
