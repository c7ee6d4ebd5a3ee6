// Package scp writes and reads SuperCard Pro flux images.
//
// An image is a 16-byte file header, a table of little-endian uint32 track
// offsets (one per physical track, zero for tracks that were not captured),
// and one block per captured track: "TRK", the track number, a duration /
// bitcell count / data offset triple per revolution, then every flux interval
// as a big-endian uint16 tick count. An optional ANSI-C timestamp trailer
// follows the last block.
//
// Encoder.Encode builds the whole image in memory and fails without output if
// any value does not fit its field, so a written file is always complete.
// Parse reads an image back and checks that every offset lands on a track
// block.
package scp
