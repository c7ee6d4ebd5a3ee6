//go:build linux

package drive

import (
	"fmt"

	"golang.org/x/sys/unix"
)

type ttyPort struct {
	fd int
}

func openPort(name string) (port, error) {
	fd, err := unix.Open(name, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	if err := makeRaw(fd); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &ttyPort{fd: fd}, nil
}

// makeRaw configures 115200 8N1 without line discipline so a single 0xFF
// byte produces exactly one start-bit pulse of about 8.7µs.
func makeRaw(fd int) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | unix.B115200
	t.Ispeed = unix.B115200
	t.Ospeed = unix.B115200
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

func (p *ttyPort) setLine(mask int, on bool) error {
	req := uint(unix.TIOCMBIC)
	if on {
		req = unix.TIOCMBIS
	}
	return unix.IoctlSetPointerInt(p.fd, req, mask)
}

func (p *ttyPort) SetDirection(inward bool) error {
	return p.setLine(unix.TIOCM_RTS, inward)
}

func (p *ttyPort) SetSide(side int) error {
	return p.setLine(unix.TIOCM_DTR, side == 1)
}

func (p *ttyPort) Pulse() error {
	if _, err := unix.Write(p.fd, []byte{0xFF}); err != nil {
		return err
	}
	// TCSBRK with a non-zero argument is tcdrain.
	return unix.IoctlSetInt(p.fd, unix.TCSBRK, 1)
}

func (p *ttyPort) Track0() (bool, error) {
	bits, err := unix.IoctlGetInt(p.fd, unix.TIOCMGET)
	if err != nil {
		return false, err
	}
	return bits&unix.TIOCM_CTS != 0, nil
}

func (p *ttyPort) Close() error {
	return unix.Close(p.fd)
}
