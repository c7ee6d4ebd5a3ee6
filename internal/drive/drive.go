package drive

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Direction is a head step direction.
type Direction int

const (
	// Outward steps toward cylinder 0.
	Outward Direction = iota
	// Inward steps toward the spindle (higher cylinders).
	Inward
)

func (d Direction) String() string {
	if d == Inward {
		return "in"
	}
	return "out"
}

// ErrTrackZeroNotFound means rezeroing never saw the track 0 sensor.
var ErrTrackZeroNotFound = errors.New("track 0 sensor not asserted")

// Drive positions the read head.
type Drive interface {
	Rezero(ctx context.Context) error
	Step(ctx context.Context, dir Direction) error
	SelectHead(head int) error
	Cylinder() int
	Close() error
}

// Seek rezeroes d and steps inward to cylinder.
func Seek(ctx context.Context, d Drive, cylinder int) error {
	if err := d.Rezero(ctx); err != nil {
		return err
	}
	return StepN(ctx, d, Inward, cylinder)
}

// StepN steps n times in dir.
func StepN(ctx context.Context, d Drive, dir Direction, n int) error {
	for i := 0; i < n; i++ {
		if err := d.Step(ctx, dir); err != nil {
			return fmt.Errorf("step %s %d/%d: %w", dir, i+1, n, err)
		}
	}
	return nil
}

func validateHead(head int) error {
	if head != 0 && head != 1 {
		return fmt.Errorf("head must be 0 or 1, got %d", head)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
