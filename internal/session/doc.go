// Package session persists capture sessions in SQLite.
//
// A session records the image and decode settings a capture ran with, and
// one row per physical track holding its status, attempt count, and the
// decoded flux payload (msgpack). LoadStore turns the captured rows back into
// a track store so an image can be rebuilt without touching the drive.
package session
