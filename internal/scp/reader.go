package scp

import (
	"bytes"
	"encoding/binary"
	"sort"
	"time"
)

// Header is the decoded file header.
type Header struct {
	Version     byte
	DiskType    byte
	Revolutions byte
	StartTrack  byte
	EndTrack    byte
	Flags       byte
	BitWidth    byte
	HeadCode    byte
	Resolution  byte
	Checksum    uint32
}

// Manufacturer returns the high nibble of the disk type.
func (h Header) Manufacturer() byte { return h.DiskType >> 4 }

// Subtype returns the low nibble of the disk type.
func (h Header) Subtype() byte { return h.DiskType & 0x0F }

// SampleRate derives the flux sample clock from the resolution byte.
func (h Header) SampleRate() float64 {
	return DefaultReferenceClock / float64(int(h.Resolution)+1)
}

// RevolutionEntry is one duration/bitcells/offset triple from a track header.
type RevolutionEntry struct {
	Duration   uint32
	Bitcells   uint32
	DataOffset uint32
}

// TrackBlock is one parsed track.
type TrackBlock struct {
	Slot        int
	Number      byte
	Offset      uint32
	Revolutions []RevolutionEntry
	Flux        []uint16
}

// Image is a parsed SCP file.
type Image struct {
	Header  Header
	Offsets []uint32
	Tracks  []TrackBlock
	Trailer string
}

// Track returns the block stored in offset table slot, if present.
func (img *Image) Track(slot int) (TrackBlock, bool) {
	for _, tb := range img.Tracks {
		if tb.Slot == slot {
			return tb, true
		}
	}
	return TrackBlock{}, false
}

// Parse decodes an SCP image. The offset table length is inferred from the
// lowest non-zero offset, which always directly follows the table.
func Parse(data []byte) (*Image, error) {
	if len(data) < HeaderSize {
		return nil, malformed("file is %d bytes, shorter than the header", len(data))
	}
	if !bytes.Equal(data[0:3], fileMagic) {
		return nil, malformed("bad magic %q", data[0:3])
	}
	img := &Image{Header: Header{
		Version:     data[3],
		DiskType:    data[4],
		Revolutions: data[5],
		StartTrack:  data[6],
		EndTrack:    data[7],
		Flags:       data[8],
		BitWidth:    data[9],
		HeadCode:    data[10],
		Resolution:  data[11],
		Checksum:    binary.LittleEndian.Uint32(data[12:16]),
	}}
	if img.Header.Revolutions == 0 {
		return nil, malformed("zero revolutions")
	}

	pos := HeaderSize
	lowest := uint64(len(data))
	for uint64(pos) < lowest {
		if pos+4 > len(data) {
			return nil, malformed("offset table runs past end of file")
		}
		off := binary.LittleEndian.Uint32(data[pos:])
		if off != 0 && uint64(off) < lowest {
			lowest = uint64(off)
		}
		img.Offsets = append(img.Offsets, off)
		pos += 4
	}
	if lowest == uint64(len(data)) {
		return nil, malformed("offset table has no tracks")
	}
	if uint64(pos) != lowest {
		return nil, malformed("first track at %d does not follow table ending at %d", lowest, pos)
	}

	body := len(data)
	if len(data)-len(time.ANSIC) >= pos {
		tail := string(data[len(data)-len(time.ANSIC):])
		if _, err := time.Parse(time.ANSIC, tail); err == nil {
			img.Trailer = tail
			body = len(data) - len(time.ANSIC)
		}
	}

	slots := make([]int, 0, len(img.Offsets))
	for slot, off := range img.Offsets {
		if off != 0 {
			slots = append(slots, slot)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return img.Offsets[slots[i]] < img.Offsets[slots[j]] })

	revs := int(img.Header.Revolutions)
	headerSize := 4 + 12*revs
	for i, slot := range slots {
		start := int(img.Offsets[slot])
		end := body
		if i+1 < len(slots) {
			end = int(img.Offsets[slots[i+1]])
		}
		if start+headerSize > end {
			return nil, malformed("track slot %d at %d: header runs past %d", slot, start, end)
		}
		if !bytes.Equal(data[start:start+3], trackMagic) {
			return nil, malformed("track slot %d at %d: missing TRK tag", slot, start)
		}
		tb := TrackBlock{Slot: slot, Number: data[start+3], Offset: uint32(start)}
		for r := 0; r < revs; r++ {
			entry := data[start+4+12*r:]
			rev := RevolutionEntry{
				Duration:   binary.LittleEndian.Uint32(entry[0:4]),
				Bitcells:   binary.LittleEndian.Uint32(entry[4:8]),
				DataOffset: binary.LittleEndian.Uint32(entry[8:12]),
			}
			// One trailing word is tolerated: with the overlap correction off
			// the shared boundary edge is declared but has no interval.
			if uint64(rev.DataOffset)+2*uint64(rev.Bitcells) > uint64(end-start)+2 {
				return nil, malformed("track slot %d revolution %d: %d bitcells at offset %d run past block end %d", slot, r, rev.Bitcells, rev.DataOffset, end-start)
			}
			tb.Revolutions = append(tb.Revolutions, rev)
		}
		fluxBytes := data[start+headerSize : end]
		if len(fluxBytes)%2 != 0 {
			return nil, malformed("track slot %d: odd flux data length %d", slot, len(fluxBytes))
		}
		tb.Flux = make([]uint16, len(fluxBytes)/2)
		for j := range tb.Flux {
			tb.Flux[j] = binary.BigEndian.Uint16(fluxBytes[2*j:])
		}
		img.Tracks = append(img.Tracks, tb)
	}
	sort.Slice(img.Tracks, func(i, j int) bool { return img.Tracks[i].Slot < img.Tracks[j].Slot })
	return img, nil
}
