package scp

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"fluxscp/internal/flux"
	"fluxscp/internal/trackstore"
)

// Encoder serializes a track store into an SCP image.
type Encoder struct {
	params Params
	now    func() time.Time
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithClock overrides the clock used for the trailer timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Encoder) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEncoder validates params and returns an encoder.
func NewEncoder(params Params, opts ...Option) (*Encoder, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	enc := &Encoder{params: params, now: time.Now}
	for _, opt := range opts {
		opt(enc)
	}
	return enc, nil
}

// Params returns the encoder parameters.
func (e *Encoder) Params() Params {
	return e.params
}

// Encode renders the whole image. Nothing is returned on error.
func (e *Encoder) Encode(store *trackstore.Store) ([]byte, error) {
	if store == nil {
		return nil, ErrEmptyStore
	}
	endTrack, ok := store.MaxIndex()
	if !ok {
		return nil, ErrEmptyStore
	}
	count := e.params.TrackCount()
	if int64(endTrack) >= int64(count) {
		return nil, fmt.Errorf("%w: track %d, geometry has %d tracks", ErrTrackOutOfRange, endTrack, count)
	}
	if endTrack > math.MaxUint8 {
		return nil, &OverflowError{Field: "end track", Track: -1, Value: uint64(endTrack), Max: math.MaxUint8}
	}

	blocks := make([][]byte, count)
	for _, idx := range store.Indices() {
		track, _ := store.Get(idx)
		block, err := e.encodeTrack(track)
		if err != nil {
			return nil, err
		}
		blocks[idx] = block
	}

	header, err := e.header(byte(endTrack))
	if err != nil {
		return nil, err
	}
	table, size, err := offsetTable(blocks)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, size+32)
	out = append(out, header...)
	out = append(out, table...)
	for _, block := range blocks {
		out = append(out, block...)
	}
	if e.params.Trailer {
		out = append(out, e.now().Format(time.ANSIC)...)
	}
	return out, nil
}

// WriteFile encodes the store and replaces path with the result in one
// rename, so readers never observe a partial image.
func (e *Encoder) WriteFile(path string, store *trackstore.Store) (int, error) {
	data, err := e.Encode(store)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create image directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".fluxscp-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp image: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return 0, fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return 0, fmt.Errorf("sync image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, fmt.Errorf("close image: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return 0, fmt.Errorf("chmod image: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return 0, fmt.Errorf("rename image: %w", err)
	}
	return len(data), nil
}

func (e *Encoder) header(endTrack byte) ([]byte, error) {
	resolution, err := e.params.Resolution()
	if err != nil {
		return nil, err
	}
	header := make([]byte, HeaderSize)
	copy(header[0:3], fileMagic)
	header[3] = e.params.version()
	header[4] = e.params.DiskType()
	header[5] = byte(e.params.Revolutions)
	header[6] = 0
	header[7] = endTrack
	header[8] = e.params.Flags()
	header[9] = BitWidth16
	header[10] = e.params.HeadCode()
	header[11] = resolution
	// Checksum is reserved and left zero.
	binary.LittleEndian.PutUint32(header[12:16], 0)
	return header, nil
}

// offsetTable lays out absolute block offsets in one pass. Absent tracks get
// zero and do not advance the running offset.
func offsetTable(blocks [][]byte) ([]byte, int, error) {
	table := make([]byte, 4*len(blocks))
	running := uint64(HeaderSize + len(table))
	for k, block := range blocks {
		if block == nil {
			continue
		}
		if running > math.MaxUint32 {
			return nil, 0, &OverflowError{Field: "track offset", Track: k, Value: running, Max: math.MaxUint32}
		}
		binary.LittleEndian.PutUint32(table[4*k:], uint32(running))
		running += uint64(len(block))
	}
	return table, int(running), nil
}

func (e *Encoder) encodeTrack(track flux.Track) ([]byte, error) {
	trackNo := int(track.Physical)
	if track.Physical > math.MaxUint8 {
		return nil, &OverflowError{Field: "track number", Track: trackNo, Value: uint64(track.Physical), Max: math.MaxUint8}
	}
	if len(track.Revolutions) != e.params.Revolutions {
		return nil, fmt.Errorf("scp: track %d has %d revolutions, image expects %d", trackNo, len(track.Revolutions), e.params.Revolutions)
	}

	var declared uint64
	for _, rev := range track.Revolutions {
		declared += uint64(rev.Bitcells)
	}
	if declared > uint64(len(track.Intervals))+1 {
		return nil, fmt.Errorf("scp: track %d declares %d bitcells but holds %d intervals", trackNo, declared, len(track.Intervals))
	}

	headerSize := e.params.trackHeaderSize()
	block := make([]byte, 0, headerSize+2*len(track.Intervals))
	block = append(block, trackMagic...)
	block = append(block, byte(track.Physical))

	dataOffset := uint64(headerSize)
	for _, rev := range track.Revolutions {
		duration := flux.Quantize(rev.Duration, e.params.SampleRate)
		if duration > math.MaxUint32 {
			return nil, &OverflowError{Field: "revolution duration", Track: trackNo, Value: duration, Max: math.MaxUint32}
		}
		if dataOffset > math.MaxUint32 {
			return nil, &OverflowError{Field: "revolution data offset", Track: trackNo, Value: dataOffset, Max: math.MaxUint32}
		}
		block = binary.LittleEndian.AppendUint32(block, uint32(duration))
		block = binary.LittleEndian.AppendUint32(block, rev.Bitcells)
		block = binary.LittleEndian.AppendUint32(block, uint32(dataOffset))
		dataOffset += 2 * uint64(rev.Bitcells)
	}

	for i, interval := range track.Intervals {
		ticks := flux.Quantize(interval, e.params.SampleRate)
		if ticks > math.MaxUint16 {
			return nil, &OverflowError{Field: "flux interval", Track: trackNo, Value: ticks, Max: math.MaxUint16}
		}
		if ticks == 0 {
			return nil, fmt.Errorf("scp: track %d: flux interval %d rounds to zero ticks", trackNo, i)
		}
		block = binary.BigEndian.AppendUint16(block, uint16(ticks))
	}
	return block, nil
}
