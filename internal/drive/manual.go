package drive

import "context"

// Manual tracks the nominal head position without touching hardware.
type Manual struct {
	cylinder int
	head     int
}

// NewManual returns a no-op drive at cylinder 0.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Rezero(ctx context.Context) error {
	m.cylinder = 0
	return ctx.Err()
}

func (m *Manual) Step(ctx context.Context, dir Direction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir == Inward {
		m.cylinder++
	} else if m.cylinder > 0 {
		m.cylinder--
	}
	return nil
}

func (m *Manual) SelectHead(head int) error {
	if err := validateHead(head); err != nil {
		return err
	}
	m.head = head
	return nil
}

// Head returns the selected side.
func (m *Manual) Head() int { return m.head }

func (m *Manual) Cylinder() int { return m.cylinder }

func (m *Manual) Close() error { return nil }
