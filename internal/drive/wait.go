package drive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"fluxscp/internal/logging"
)

const devicePollInterval = 250 * time.Millisecond

// ErrDeviceTimeout means the serial device never appeared.
var ErrDeviceTimeout = errors.New("serial device did not appear")

// WaitForDevice returns once path exists. It listens for tty hotplug events
// and also polls the path, so it still works when netlink is unavailable.
// A non-positive timeout checks once.
func WaitForDevice(ctx context.Context, path string, timeout time.Duration, logger *slog.Logger) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("drive: serial port not configured")
	}
	if deviceExists(path) {
		return nil
	}
	if timeout <= 0 {
		return fmt.Errorf("drive: %w: %s", ErrDeviceTimeout, path)
	}
	logger = logging.NewComponentLogger(logger, "drive")
	logger.InfoContext(ctx, "waiting for serial device",
		logging.String("device", path),
		logging.Duration("timeout", timeout),
		logging.String(logging.FieldEventType, "device_wait_started"),
	)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	queue := make(chan netlink.UEvent, 8)
	errs := make(chan error, 1)
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(logger, "netlink unavailable; polling for serial device", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permission to open netlink sockets"),
			logging.String(logging.FieldImpact, "device detection falls back to polling"),
		)
		queue, errs = nil, nil
	} else {
		defer conn.Close()
		quit := conn.Monitor(queue, errs, ttyAddMatcher())
		defer close(quit)
	}

	ticker := time.NewTicker(devicePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("drive: %w within %s: %s", ErrDeviceTimeout, timeout, path)
		case uevent := <-queue:
			if matchesDevice(uevent, path) || deviceExists(path) {
				logger.InfoContext(ctx, "serial device attached",
					logging.String("device", path),
					logging.String("kobj", uevent.KObj),
					logging.String(logging.FieldEventType, "device_attached"),
				)
				return nil
			}
		case err := <-errs:
			logger.DebugContext(ctx, "netlink monitor error", logging.Error(err))
		case <-ticker.C:
			if deviceExists(path) {
				return nil
			}
		}
	}
}

// ttyAddMatcher matches SUBSYSTEM=tty, ACTION=add.
func ttyAddMatcher() netlink.Matcher {
	action := "add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "tty",
		},
	})
	return rules
}

// matchesDevice reports whether uevent announces path, resolving symlinks
// such as /dev/serial/by-id entries.
func matchesDevice(uevent netlink.UEvent, path string) bool {
	devname := eventDeviceName(uevent)
	if devname == "" {
		return false
	}
	if devname == path {
		return true
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil && resolved == devname {
		return true
	}
	return false
}

func eventDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			return "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}

func deviceExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
