package drive

import (
	"context"
	"errors"
	"testing"
	"time"

	"fluxscp/internal/config"
	"fluxscp/internal/logging"
)

// fakePort simulates a drive whose head starts at position and whose track 0
// sensor asserts at position 0.
type fakePort struct {
	position  int
	inward    bool
	side      int
	pulses    int
	stuck     bool
	closed    bool
	pulseErr  error
	readCalls int
}

func (f *fakePort) SetDirection(inward bool) error {
	f.inward = inward
	return nil
}

func (f *fakePort) SetSide(side int) error {
	f.side = side
	return nil
}

func (f *fakePort) Pulse() error {
	if f.pulseErr != nil {
		return f.pulseErr
	}
	f.pulses++
	if f.inward {
		f.position++
	} else if f.position > 0 {
		f.position--
	}
	return nil
}

func (f *fakePort) Track0() (bool, error) {
	f.readCalls++
	return f.position == 0 && !f.stuck, nil
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

func newTestSerial(p port) (*Serial, *[]time.Duration) {
	cfg := config.Default()
	cfg.Drive.SettleMS = 20
	cfg.Drive.StepMS = 6
	s := newSerial(p, "/dev/ttyTEST", &cfg, logging.NewNop())
	var waits []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return s, &waits
}

func TestSerialRezeroStepsOutwardUntilTrackZero(t *testing.T) {
	p := &fakePort{position: 5}
	s, waits := newTestSerial(p)

	if err := s.Rezero(context.Background()); err != nil {
		t.Fatalf("rezero: %v", err)
	}
	if p.position != 0 || p.pulses != 5 {
		t.Fatalf("position=%d pulses=%d, want 0 and 5", p.position, p.pulses)
	}
	if p.inward {
		t.Fatalf("expected outward direction during rezero")
	}
	for _, w := range *waits {
		if w != 6*time.Millisecond {
			t.Fatalf("rezero should wait the step rate, got %v", w)
		}
	}
	if s.Cylinder() != 0 {
		t.Fatalf("cylinder = %d, want 0", s.Cylinder())
	}
}

func TestSerialRezeroGivesUp(t *testing.T) {
	p := &fakePort{position: 0, stuck: true}
	s, _ := newTestSerial(p)

	err := s.Rezero(context.Background())
	if !errors.Is(err, ErrTrackZeroNotFound) {
		t.Fatalf("expected ErrTrackZeroNotFound, got %v", err)
	}
	if p.pulses != maxRezeroSteps {
		t.Fatalf("pulses = %d, want %d", p.pulses, maxRezeroSteps)
	}
}

func TestSerialStepTracksCylinderAndSettles(t *testing.T) {
	p := &fakePort{}
	s, waits := newTestSerial(p)
	ctx := context.Background()

	if err := Seek(ctx, s, 3); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if s.Cylinder() != 3 || p.position != 3 {
		t.Fatalf("cylinder=%d position=%d, want 3", s.Cylinder(), p.position)
	}
	if !p.inward {
		t.Fatalf("expected inward direction")
	}
	if len(*waits) != 3 || (*waits)[0] != 20*time.Millisecond {
		t.Fatalf("expected three settle waits of 20ms, got %v", *waits)
	}

	if err := s.Step(ctx, Outward); err != nil {
		t.Fatalf("step out: %v", err)
	}
	if s.Cylinder() != 2 {
		t.Fatalf("cylinder = %d, want 2", s.Cylinder())
	}
}

func TestSerialStepErrors(t *testing.T) {
	p := &fakePort{pulseErr: errors.New("io error")}
	s, _ := newTestSerial(p)
	if err := s.Step(context.Background(), Inward); err == nil {
		t.Fatalf("expected pulse error")
	}
	if s.Cylinder() != 0 {
		t.Fatalf("failed step must not move the cylinder counter")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.pulseErr = nil
	if err := s.Step(ctx, Inward); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSerialSelectHead(t *testing.T) {
	p := &fakePort{}
	s, _ := newTestSerial(p)
	if err := s.SelectHead(1); err != nil {
		t.Fatalf("select head: %v", err)
	}
	if p.side != 1 {
		t.Fatalf("side = %d, want 1", p.side)
	}
	if err := s.SelectHead(2); err == nil {
		t.Fatalf("expected error for head 2")
	}
	if err := s.Close(); err != nil || !p.closed {
		t.Fatalf("expected port closed, err=%v", err)
	}
}

func TestOpenSerialRequiresPort(t *testing.T) {
	cfg := config.Default()
	cfg.Drive.SerialPort = ""
	if _, err := OpenSerial(&cfg, logging.NewNop()); err == nil {
		t.Fatalf("expected error without serial port")
	}
}
