package drive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fluxscp/internal/config"
	"fluxscp/internal/logging"
)

// maxRezeroSteps bounds the outward steps taken while looking for track 0.
const maxRezeroSteps = 100

// port is the modem-line surface of a serial device.
type port interface {
	// SetDirection drives RTS: asserted steps inward.
	SetDirection(inward bool) error
	// SetSide drives DTR: asserted selects side 1.
	SetSide(side int) error
	// Pulse emits one step pulse and waits for it to leave the UART.
	Pulse() error
	// Track0 reads CTS.
	Track0() (bool, error)
	Close() error
}

// Serial is a floppy drive wired to a serial port's modem lines.
type Serial struct {
	port     port
	name     string
	settle   time.Duration
	stepRate time.Duration
	cylinder int
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

// OpenSerial opens the configured serial port and selects side 0. The head
// position is unknown until Rezero is called.
func OpenSerial(cfg *config.Config, logger *slog.Logger) (*Serial, error) {
	name := strings.TrimSpace(cfg.Drive.SerialPort)
	if name == "" {
		return nil, fmt.Errorf("drive: serial port not configured (set drive.serial_port or FLUXSCP_SERIAL_PORT)")
	}
	p, err := openPort(name)
	if err != nil {
		return nil, fmt.Errorf("drive: open %s: %w", name, err)
	}
	s := newSerial(p, name, cfg, logger)
	if err := s.SelectHead(0); err != nil {
		_ = p.Close()
		return nil, err
	}
	return s, nil
}

func newSerial(p port, name string, cfg *config.Config, logger *slog.Logger) *Serial {
	return &Serial{
		port:     p,
		name:     name,
		settle:   time.Duration(cfg.Drive.SettleMS) * time.Millisecond,
		stepRate: time.Duration(cfg.Drive.StepMS) * time.Millisecond,
		logger:   logging.NewComponentLogger(logger, "drive"),
		sleep:    sleepContext,
	}
}

// Rezero steps outward at the step rate until the track 0 sensor asserts.
func (s *Serial) Rezero(ctx context.Context) error {
	for steps := 0; ; steps++ {
		at0, err := s.port.Track0()
		if err != nil {
			return fmt.Errorf("drive: read track 0: %w", err)
		}
		if at0 {
			s.cylinder = 0
			s.logger.DebugContext(ctx, "head at track 0", logging.Int("steps", steps))
			return nil
		}
		if steps >= maxRezeroSteps {
			return fmt.Errorf("drive: %w after %d steps", ErrTrackZeroNotFound, steps)
		}
		if err := s.pulse(ctx, Outward, s.stepRate); err != nil {
			return err
		}
	}
}

// Step moves the head one cylinder and waits for it to settle.
func (s *Serial) Step(ctx context.Context, dir Direction) error {
	if err := s.pulse(ctx, dir, s.settle); err != nil {
		return err
	}
	if dir == Inward {
		s.cylinder++
	} else if s.cylinder > 0 {
		s.cylinder--
	}
	return nil
}

func (s *Serial) pulse(ctx context.Context, dir Direction, wait time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.port.SetDirection(dir == Inward); err != nil {
		return fmt.Errorf("drive: set direction: %w", err)
	}
	if err := s.port.Pulse(); err != nil {
		return fmt.Errorf("drive: step pulse: %w", err)
	}
	return s.sleep(ctx, wait)
}

// SelectHead selects side 0 or 1.
func (s *Serial) SelectHead(head int) error {
	if err := validateHead(head); err != nil {
		return err
	}
	if err := s.port.SetSide(head); err != nil {
		return fmt.Errorf("drive: select side %d: %w", head, err)
	}
	return nil
}

// Cylinder returns the head position counted since the last rezero.
func (s *Serial) Cylinder() int { return s.cylinder }

// Name returns the serial device path.
func (s *Serial) Name() string { return s.name }

func (s *Serial) Close() error {
	return s.port.Close()
}
