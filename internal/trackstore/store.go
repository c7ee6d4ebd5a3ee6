// Package trackstore holds the decoded tracks of one capture session.
//
// A Store is owned by whoever runs the session and is handed to the image
// serializer once capture is finished. Put may be called concurrently for
// distinct physical indexes; readers should only run after every producer has
// returned.
package trackstore

import (
	"sort"
	"sync"

	"fluxscp/internal/flux"
)

// Store maps physical track indexes to decoded tracks.
type Store struct {
	mu     sync.RWMutex
	tracks map[uint32]flux.Track
}

// New returns an empty store.
func New() *Store {
	return &Store{tracks: make(map[uint32]flux.Track)}
}

// Put records a track, replacing any earlier decode of the same index.
func (s *Store) Put(track flux.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks[track.Physical] = track
}

// Get returns the track at physical, if captured.
func (s *Store) Get(physical uint32) (flux.Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	track, ok := s.tracks[physical]
	return track, ok
}

// Contains reports whether physical has been captured.
func (s *Store) Contains(physical uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tracks[physical]
	return ok
}

// MaxIndex returns the highest captured physical index; ok is false when the
// store is empty.
func (s *Store) MaxIndex() (max uint32, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for idx := range s.tracks {
		if !ok || idx > max {
			max = idx
			ok = true
		}
	}
	return max, ok
}

// Len returns the number of captured tracks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// Indices returns the captured physical indexes in ascending order.
func (s *Store) Indices() []uint32 {
	s.mu.RLock()
	out := make([]uint32, 0, len(s.tracks))
	for idx := range s.tracks {
		out = append(out, idx)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
