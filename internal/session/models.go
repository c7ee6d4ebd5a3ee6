package session

import (
	"time"

	"fluxscp/internal/flux"
	"fluxscp/internal/scp"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// TrackStatus is the outcome of capturing one physical track.
type TrackStatus string

const (
	// TrackCaptured decoded cleanly.
	TrackCaptured TrackStatus = "captured"
	// TrackWarning decoded best-effort from surplus index pulses.
	TrackWarning TrackStatus = "warning"
	// TrackAbsent had too few index pulses; no data is stored.
	TrackAbsent TrackStatus = "absent"
	// TrackFailed could not be captured or decoded.
	TrackFailed TrackStatus = "failed"
)

// HasData reports whether rows with this status carry a flux payload.
func (s TrackStatus) HasData() bool {
	return s == TrackCaptured || s == TrackWarning
}

// Settings are the parameters a session was captured with.
type Settings struct {
	Image            scp.Params   `msgpack:"image"`
	Decode           flux.Options `msgpack:"decode"`
	StartingCylinder int          `msgpack:"starting_cylinder"`
	TrackSkip        int          `msgpack:"track_skip"`
	// BestEffort keeps tracks decoded from surplus index pulses.
	BestEffort bool `msgpack:"best_effort"`
}

// Session is one capture run.
type Session struct {
	ID         string
	Label      string
	Status     Status
	Settings   Settings
	OutputPath string
	Message    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TrackRecord is the stored outcome for one physical track.
type TrackRecord struct {
	Physical   uint32
	Cylinder   int
	Head       int
	Status     TrackStatus
	Attempts   int
	IndexEdges int
	Message    string
	// Track is nil unless Status.HasData().
	Track     *flux.Track
	UpdatedAt time.Time
}

// Summary counts track outcomes for a session.
type Summary struct {
	Captured int
	Warning  int
	Absent   int
	Failed   int
}

// Total is the number of recorded tracks.
func (s Summary) Total() int {
	return s.Captured + s.Warning + s.Absent + s.Failed
}
