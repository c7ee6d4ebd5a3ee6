package capture

import (
	"errors"

	"fluxscp/internal/analyzer"
	"fluxscp/internal/flux"
	"fluxscp/internal/session"
)

// Outcome is the classified result of one capture attempt.
type Outcome struct {
	Status     session.TrackStatus
	Track      *flux.Track
	IndexEdges int
	Message    string
	// Retry is set when another attempt could improve the result.
	Retry bool
}

// Classify maps a decode result onto a track status. bestEffort controls
// whether tracks built from surplus index pulses are kept.
func Classify(track *flux.Track, err error, bestEffort bool) Outcome {
	if err == nil {
		if track == nil {
			return Outcome{Status: session.TrackFailed, Message: "decoder returned no track", Retry: true}
		}
		return Outcome{
			Status:     session.TrackCaptured,
			Track:      track,
			IndexEdges: len(track.Revolutions) + 1,
		}
	}

	var warning *flux.IntegrityWarning
	if errors.As(err, &warning) {
		if warning.BestEffort && bestEffort && track != nil {
			return Outcome{
				Status:     session.TrackWarning,
				Track:      track,
				IndexEdges: warning.Found,
				Message:    err.Error(),
				Retry:      true,
			}
		}
		return Outcome{
			Status:     session.TrackAbsent,
			IndexEdges: warning.Found,
			Message:    err.Error(),
			Retry:      true,
		}
	}

	var formatErr *flux.FormatError
	if errors.As(err, &formatErr) {
		return Outcome{Status: session.TrackAbsent, Message: err.Error(), Retry: true}
	}
	if errors.Is(err, analyzer.ErrNoCapture) {
		return Outcome{Status: session.TrackAbsent, Message: err.Error()}
	}
	return Outcome{Status: session.TrackFailed, Message: err.Error(), Retry: true}
}

func rank(status session.TrackStatus) int {
	switch status {
	case session.TrackCaptured:
		return 3
	case session.TrackWarning:
		return 2
	case session.TrackAbsent:
		return 1
	default:
		return 0
	}
}

// better reports whether o improves on prev.
func (o Outcome) better(prev Outcome) bool {
	return rank(o.Status) > rank(prev.Status)
}
