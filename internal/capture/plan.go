package capture

import (
	"fluxscp/internal/analyzer"
	"fluxscp/internal/flux"
	"fluxscp/internal/session"
)

// Target is one track to capture.
type Target struct {
	// Cylinder is the logical cylinder written to the image.
	Cylinder int
	// Head is the logical head used for the physical index.
	Head int
	// Side is the drive side selected while capturing.
	Side int
	// Position is the drive cylinder the head must be on.
	Position int
	Physical uint32
}

func (t Target) request() analyzer.Track {
	return analyzer.Track{Cylinder: t.Cylinder, Side: t.Side, Physical: t.Physical}
}

// Plan lists the tracks of a session in capture order: cylinders ascending
// from the starting cylinder, heads ascending within a cylinder. Logical
// cylinder c sits at drive position c*(1+track_skip).
func Plan(settings session.Settings) []Target {
	image := settings.Image
	stride := settings.Stride()
	start := settings.StartingCylinder
	if start < 0 {
		start = 0
	}
	var out []Target
	for cyl := start; cyl < image.Cylinders; cyl++ {
		for head := 0; head < image.Heads; head++ {
			side := head
			if image.Heads == 1 {
				side = image.Side
			}
			out = append(out, Target{
				Cylinder: cyl,
				Head:     head,
				Side:     side,
				Position: cyl * stride,
				Physical: flux.PhysicalIndex(image.Heads, cyl, head),
			})
		}
	}
	return out
}

// targetFor returns the target of a physical index.
func targetFor(settings session.Settings, physical uint32) Target {
	image := settings.Image
	heads := image.Heads
	if heads <= 0 {
		heads = 1
	}
	cyl := int(physical) / heads
	head := int(physical) % heads
	side := head
	if heads == 1 {
		side = image.Side
	}
	return Target{
		Cylinder: cyl,
		Head:     head,
		Side:     side,
		Position: cyl * settings.Stride(),
		Physical: physical,
	}
}
