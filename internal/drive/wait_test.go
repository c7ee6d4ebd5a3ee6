package drive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pilebones/go-udev/netlink"
)

func TestTTYAddMatcher(t *testing.T) {
	matcher := ttyAddMatcher()

	add := netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"SUBSYSTEM": "tty", "DEVNAME": "/dev/ttyUSB0"},
	}
	if !matcher.Evaluate(add) {
		t.Error("expected matcher to accept tty add")
	}

	remove := netlink.UEvent{
		Action: netlink.REMOVE,
		Env:    map[string]string{"SUBSYSTEM": "tty", "DEVNAME": "/dev/ttyUSB0"},
	}
	if matcher.Evaluate(remove) {
		t.Error("expected matcher to reject tty remove")
	}

	block := netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"SUBSYSTEM": "block", "DEVNAME": "/dev/sda"},
	}
	if matcher.Evaluate(block) {
		t.Error("expected matcher to reject block devices")
	}
}

func TestMatchesDevice(t *testing.T) {
	cases := []struct {
		name  string
		env   map[string]string
		path  string
		match bool
	}{
		{"absolute devname", map[string]string{"DEVNAME": "/dev/ttyUSB0"}, "/dev/ttyUSB0", true},
		{"relative devname", map[string]string{"DEVNAME": "ttyUSB0"}, "/dev/ttyUSB0", true},
		{"devpath fallback", map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/1-1/ttyUSB1/tty/ttyUSB1"}, "/dev/ttyUSB1", true},
		{"other device", map[string]string{"DEVNAME": "/dev/ttyUSB1"}, "/dev/ttyUSB0", false},
		{"no name", map[string]string{}, "/dev/ttyUSB0", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := matchesDevice(netlink.UEvent{Action: netlink.ADD, Env: tc.env}, tc.path)
			if got != tc.match {
				t.Fatalf("matchesDevice = %v, want %v", got, tc.match)
			}
		})
	}
}

func TestMatchesDeviceResolvesSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "ttyUSB0")
	if err := os.WriteFile(target, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	link := filepath.Join(dir, "usb-FTDI_FT232R-if00-port0")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	ev := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVNAME": resolved}}
	if !matchesDevice(ev, link) {
		t.Fatalf("expected by-id symlink to match its target")
	}
}
