// Package flux turns raw logic-analyzer captures into flux-transition data.
//
// A capture buffer is a sequence of fixed 16-byte records, each pairing a
// signed 64-bit sample counter with a 64-bit channel word. ParseSamples
// decodes the records into Samples using the configured index and read-data
// bit positions, FallingEdges finds high-to-low transitions on either channel,
// Segment splits a track into revolutions bounded by index pulses, and
// EncodeIntervals derives the flux intervals between the first and last index
// pulse.
//
// Decoder chains those steps for one physical track and reports problems as
// typed errors: FormatError for malformed buffers and IntegrityWarning when
// the index pulse count does not match the configured revolution count, so
// callers can decide whether to recapture.
package flux
