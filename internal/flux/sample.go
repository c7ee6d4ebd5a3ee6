package flux

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RecordSize is the width of one capture record: int64 timestamp followed by
// the uint64 channel word.
const RecordSize = 16

// Sample is one decoded capture record.
type Sample struct {
	Time  float64
	Index bool
	Data  bool
}

// SampleFormat describes how capture records map onto samples.
type SampleFormat struct {
	// Rate is the sample clock in Hz; timestamps are divided by it.
	Rate float64
	// IndexBit and DataBit select the channel word bits wired to the drive's
	// index and read-data lines.
	IndexBit uint
	DataBit  uint
}

// Validate checks that the format can decode records.
func (f SampleFormat) Validate() error {
	if f.Rate <= 0 || math.IsNaN(f.Rate) || math.IsInf(f.Rate, 0) {
		return &FormatError{Offset: -1, Reason: fmt.Sprintf("invalid sample rate %v", f.Rate)}
	}
	if f.IndexBit > 63 || f.DataBit > 63 {
		return &FormatError{Offset: -1, Reason: fmt.Sprintf("channel bits out of range (index %d, data %d)", f.IndexBit, f.DataBit)}
	}
	if f.IndexBit == f.DataBit {
		return &FormatError{Offset: -1, Reason: fmt.Sprintf("index and data share channel bit %d", f.IndexBit)}
	}
	return nil
}

// ParseSamples decodes a little-endian capture buffer. A trailing partial
// record is an error; an empty buffer yields no samples.
func ParseSamples(raw []byte, format SampleFormat) ([]Sample, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if rem := len(raw) % RecordSize; rem != 0 {
		return nil, &FormatError{
			Offset: len(raw) - rem,
			Reason: fmt.Sprintf("truncated record: %d trailing bytes", rem),
		}
	}

	samples := make([]Sample, len(raw)/RecordSize)
	for i := range samples {
		rec := raw[i*RecordSize : (i+1)*RecordSize]
		ts := int64(binary.LittleEndian.Uint64(rec[0:8]))
		word := binary.LittleEndian.Uint64(rec[8:16])
		samples[i] = Sample{
			Time:  float64(ts) / format.Rate,
			Index: (word>>format.IndexBit)&1 == 1,
			Data:  (word>>format.DataBit)&1 == 1,
		}
	}
	return samples, nil
}

// AppendRecord encodes one capture record onto dst. It is the inverse of
// ParseSamples and is used to build synthetic captures.
func AppendRecord(dst []byte, timestamp int64, word uint64) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, uint64(timestamp))
	return binary.LittleEndian.AppendUint64(dst, word)
}
