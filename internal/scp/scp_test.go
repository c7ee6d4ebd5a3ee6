package scp_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fluxscp/internal/flux"
	"fluxscp/internal/scp"
	"fluxscp/internal/trackstore"
)

const rate = 8e6

func testParams() scp.Params {
	return scp.Params{
		Heads:        2,
		Cylinders:    2,
		Revolutions:  2,
		SampleRate:   rate,
		Manufacturer: scp.ManufacturerOther,
		DiskSubtype:  0x00,
	}
}

func ticks(values ...uint64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v) / rate
	}
	return out
}

func makeTrack(physical uint32, bitcells [2]uint32, intervals ...uint64) flux.Track {
	return flux.Track{
		Physical:  physical,
		Intervals: ticks(intervals...),
		Revolutions: []flux.RevolutionWindow{
			{Index: 0, Duration: 1000 / rate, Bitcells: bitcells[0]},
			{Index: 1, Duration: 1000 / rate, Bitcells: bitcells[1]},
		},
	}
}

func mustEncoder(t *testing.T, p scp.Params, opts ...scp.Option) *scp.Encoder {
	t.Helper()
	enc, err := scp.NewEncoder(p, opts...)
	if err != nil {
		t.Fatalf("NewEncoder returned error: %v", err)
	}
	return enc
}

func TestEncodeLayout(t *testing.T) {
	store := trackstore.New()
	store.Put(makeTrack(0, [2]uint32{3, 3}, 250, 350, 300, 300, 600, 100))
	store.Put(makeTrack(2, [2]uint32{1, 0}, 80))

	data, err := mustEncoder(t, testParams()).Encode(store)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	wantHeader := []byte{'S', 'C', 'P', 0x22, 0x80, 2, 0, 2, 0x01, 0, 0, 4, 0, 0, 0, 0}
	if !bytes.Equal(data[:16], wantHeader) {
		t.Fatalf("header = % x, want % x", data[:16], wantHeader)
	}

	wantOffsets := []uint32{48, 0, 88, 0}
	for i, want := range wantOffsets {
		if got := binary.LittleEndian.Uint32(data[16+4*i:]); got != want {
			t.Fatalf("offset[%d] = %d, want %d", i, got, want)
		}
	}

	track0 := data[48:88]
	if string(track0[:3]) != "TRK" || track0[3] != 0 {
		t.Fatalf("unexpected track 0 tag: % x", track0[:4])
	}
	wantRevs := [][3]uint32{{1000, 3, 28}, {1000, 3, 34}}
	for r, want := range wantRevs {
		entry := track0[4+12*r:]
		got := [3]uint32{
			binary.LittleEndian.Uint32(entry[0:]),
			binary.LittleEndian.Uint32(entry[4:]),
			binary.LittleEndian.Uint32(entry[8:]),
		}
		if got != want {
			t.Fatalf("revolution %d = %v, want %v", r, got, want)
		}
	}
	wantFlux := []byte{0x00, 0xFA, 0x01, 0x5E, 0x01, 0x2C, 0x01, 0x2C, 0x02, 0x58, 0x00, 0x64}
	if !bytes.Equal(track0[28:], wantFlux) {
		t.Fatalf("flux = % x, want % x", track0[28:], wantFlux)
	}
	if len(data) != 88+28+2 {
		t.Fatalf("unexpected image size %d", len(data))
	}
}

func TestOffsetsLandOnTrackTags(t *testing.T) {
	store := trackstore.New()
	store.Put(makeTrack(0, [2]uint32{2, 1}, 100, 200))
	store.Put(makeTrack(1, [2]uint32{1, 1}, 150))
	store.Put(makeTrack(3, [2]uint32{3, 2}, 90, 91, 92, 93))

	data, err := mustEncoder(t, testParams()).Encode(store)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	img, err := scp.Parse(data)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(img.Offsets) != 4 {
		t.Fatalf("expected 4 table entries, got %d", len(img.Offsets))
	}
	for slot, off := range img.Offsets {
		if off == 0 {
			if store.Contains(uint32(slot)) {
				t.Fatalf("slot %d captured but offset is zero", slot)
			}
			continue
		}
		if string(data[off:off+3]) != "TRK" || data[off+3] != byte(slot) {
			t.Fatalf("slot %d offset %d does not land on its block", slot, off)
		}
	}
	tb, ok := img.Track(3)
	if !ok {
		t.Fatal("expected parsed track 3")
	}
	want := []uint16{90, 91, 92, 93}
	for i := range want {
		if tb.Flux[i] != want[i] {
			t.Fatalf("track 3 flux = %v, want %v", tb.Flux, want)
		}
	}
	if img.Header.SampleRate() != rate {
		t.Fatalf("expected sample rate %v, got %v", rate, img.Header.SampleRate())
	}
}

func TestAbsentTrackDoesNotPerturbNeighbours(t *testing.T) {
	full := trackstore.New()
	sparse := trackstore.New()
	for _, idx := range []uint32{0, 1, 2} {
		track := makeTrack(idx, [2]uint32{1, 1}, 100, 120)
		full.Put(track)
		if idx != 1 {
			sparse.Put(track)
		}
	}
	enc := mustEncoder(t, testParams())
	fullData, err := enc.Encode(full)
	if err != nil {
		t.Fatalf("Encode(full) returned error: %v", err)
	}
	sparseData, err := enc.Encode(sparse)
	if err != nil {
		t.Fatalf("Encode(sparse) returned error: %v", err)
	}

	offset := func(data []byte, slot int) uint32 { return binary.LittleEndian.Uint32(data[16+4*slot:]) }
	if offset(sparseData, 1) != 0 {
		t.Fatalf("expected zero offset for absent slot, got %d", offset(sparseData, 1))
	}
	if offset(sparseData, 0) != offset(fullData, 0) {
		t.Fatalf("slot 0 moved: %d vs %d", offset(sparseData, 0), offset(fullData, 0))
	}
	blockSize := offset(fullData, 1) - offset(fullData, 0)
	if offset(sparseData, 2) != offset(fullData, 2)-blockSize {
		t.Fatalf("slot 2 offset %d, want %d", offset(sparseData, 2), offset(fullData, 2)-blockSize)
	}
	if offset(sparseData, 2) != offset(sparseData, 0)+blockSize {
		t.Fatal("slot 2 should directly follow slot 0")
	}
}

func TestEncodeEmptyStore(t *testing.T) {
	enc := mustEncoder(t, testParams())
	if _, err := enc.Encode(trackstore.New()); !errors.Is(err, scp.ErrEmptyStore) {
		t.Fatalf("expected ErrEmptyStore, got %v", err)
	}
	if _, err := enc.Encode(nil); !errors.Is(err, scp.ErrEmptyStore) {
		t.Fatalf("expected ErrEmptyStore for nil store, got %v", err)
	}
}

func TestEncodeRejectsSeventeenBitInterval(t *testing.T) {
	store := trackstore.New()
	store.Put(makeTrack(0, [2]uint32{1, 0}, 1<<16|5))

	_, err := mustEncoder(t, testParams()).Encode(store)
	var overflow *scp.OverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("expected OverflowError, got %v", err)
	}
	if overflow.Field != "flux interval" || overflow.Value != 1<<16|5 {
		t.Fatalf("unexpected overflow: %+v", overflow)
	}
}

func TestEncodeRejectsTrackOutsideGeometry(t *testing.T) {
	store := trackstore.New()
	store.Put(makeTrack(4, [2]uint32{1, 0}, 100))
	if _, err := mustEncoder(t, testParams()).Encode(store); !errors.Is(err, scp.ErrTrackOutOfRange) {
		t.Fatalf("expected ErrTrackOutOfRange, got %v", err)
	}
}

func TestEncodeRejectsEndTrackOverflow(t *testing.T) {
	p := testParams()
	p.Cylinders = 200
	store := trackstore.New()
	store.Put(makeTrack(300, [2]uint32{1, 0}, 100))

	var overflow *scp.OverflowError
	if _, err := mustEncoder(t, p).Encode(store); !errors.As(err, &overflow) {
		t.Fatalf("expected OverflowError, got %v", err)
	}
}

func TestEncodeRejectsRevolutionMismatch(t *testing.T) {
	store := trackstore.New()
	store.Put(flux.Track{Physical: 0, Intervals: ticks(100), Revolutions: []flux.RevolutionWindow{{Duration: 1000 / rate}}})
	if _, err := mustEncoder(t, testParams()).Encode(store); err == nil {
		t.Fatal("expected error for revolution count mismatch")
	}
}

func TestEncodeTrailer(t *testing.T) {
	p := testParams()
	p.Trailer = true
	fixed := time.Date(2026, time.October, 19, 9, 30, 0, 0, time.UTC)
	store := trackstore.New()
	store.Put(makeTrack(1, [2]uint32{1, 1}, 77, 78))

	data, err := mustEncoder(t, p, scp.WithClock(func() time.Time { return fixed })).Encode(store)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if !bytes.HasSuffix(data, []byte("Mon Oct 19 09:30:00 2026")) {
		t.Fatalf("unexpected trailer: %q", data[len(data)-24:])
	}
	img, err := scp.Parse(data)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if img.Trailer == "" {
		t.Fatal("expected trailer to be detected")
	}
	tb, _ := img.Track(1)
	if len(tb.Flux) != 2 {
		t.Fatalf("trailer leaked into flux data: %v", tb.Flux)
	}
}

func TestWriteFileIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.scp")
	enc := mustEncoder(t, testParams())

	if _, err := enc.WriteFile(path, trackstore.New()); !errors.Is(err, scp.ErrEmptyStore) {
		t.Fatalf("expected ErrEmptyStore, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no image after failed write, got %v", err)
	}

	store := trackstore.New()
	store.Put(makeTrack(0, [2]uint32{1, 1}, 100, 101))
	n, err := enc.WriteFile(path, store)
	if err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat image: %v", err)
	}
	if info.Size() != int64(n) {
		t.Fatalf("expected %d bytes on disk, got %d", n, info.Size())
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the image in %s, found %d entries", dir, len(entries))
	}
}

func TestParamsEncoding(t *testing.T) {
	p := testParams()
	p.TPI96 = true
	p.RPM360 = true
	if p.Flags() != scp.FlagIndex|scp.Flag96TPI|scp.Flag360RPM {
		t.Fatalf("unexpected flags %#x", p.Flags())
	}
	if p.HeadCode() != 0 {
		t.Fatalf("expected head code 0 for two heads, got %d", p.HeadCode())
	}
	p.Heads = 1
	p.Side = 1
	if p.HeadCode() != 2 {
		t.Fatalf("expected head code 2 for side 1, got %d", p.HeadCode())
	}
	p.Heads = 3
	if p.HeadCode() != scp.HeadsUnsupported {
		t.Fatalf("expected unsupported head code, got %d", p.HeadCode())
	}

	for sampleRate, want := range map[float64]byte{40e6: 0, 20e6: 1, 8e6: 4} {
		res, err := scp.Params{SampleRate: sampleRate}.Resolution()
		if err != nil || res != want {
			t.Fatalf("Resolution(%v) = %d, %v; want %d", sampleRate, res, err, want)
		}
	}
	if _, err := (scp.Params{SampleRate: 3e6}).Resolution(); err == nil {
		t.Fatal("expected error for non-integer clock ratio")
	}
	if _, err := scp.NewEncoder(scp.Params{Heads: 2, Cylinders: 80, Revolutions: 0, SampleRate: rate}); err == nil {
		t.Fatal("expected error for zero revolutions")
	}
}

func TestParseRejectsCorruptImages(t *testing.T) {
	if _, err := scp.Parse([]byte("SCP")); !errors.Is(err, scp.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for short file, got %v", err)
	}
	store := trackstore.New()
	store.Put(makeTrack(0, [2]uint32{1, 1}, 100, 101))
	data, err := mustEncoder(t, testParams()).Encode(store)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	corrupt := append([]byte(nil), data...)
	copy(corrupt[32:35], "XXX")
	if _, err := scp.Parse(corrupt); !errors.Is(err, scp.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for missing TRK tag, got %v", err)
	}
}

func TestParseRejectsBitcellsPastBlockEnd(t *testing.T) {
	store := trackstore.New()
	store.Put(makeTrack(0, [2]uint32{1, 1}, 100, 101))
	data, err := mustEncoder(t, testParams()).Encode(store)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if _, err := scp.Parse(data); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	off := binary.LittleEndian.Uint32(data[scp.HeaderSize:])
	corrupt := append([]byte(nil), data...)
	// Revolution 1 bitcells.
	binary.LittleEndian.PutUint32(corrupt[off+4+12+4:], 3)
	if _, err := scp.Parse(corrupt); !errors.Is(err, scp.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for overrunning revolution, got %v", err)
	}
}

func TestParseAcceptsUncorrectedBoundaryWord(t *testing.T) {
	store := trackstore.New()
	store.Put(makeTrack(0, [2]uint32{2, 1}, 100, 101))
	data, err := mustEncoder(t, testParams()).Encode(store)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if _, err := scp.Parse(data); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
}

func TestEncodeRejectsShortFluxData(t *testing.T) {
	store := trackstore.New()
	store.Put(makeTrack(0, [2]uint32{3, 3}, 100, 101))
	if _, err := mustEncoder(t, testParams()).Encode(store); err == nil {
		t.Fatal("expected error for track declaring more bitcells than it holds")
	}
}

func TestLookupPreset(t *testing.T) {
	p, ok := scp.LookupPreset(" PC720 ")
	if !ok {
		t.Fatal("expected pc720 preset")
	}
	if p.Manufacturer != scp.ManufacturerPC || p.Subtype != 0x01 || !p.TPI96 {
		t.Fatalf("unexpected preset: %+v", p)
	}
	if _, ok := scp.LookupPreset("zx81"); ok {
		t.Fatal("expected unknown preset to miss")
	}
	if len(scp.Presets()) == 0 {
		t.Fatal("expected presets")
	}
}
