// Package deps reports whether the external pieces a capture needs are in
// place: the analyzer export binary, the capture directory, and the drive's
// serial adapter.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"fluxscp/internal/config"
)

// Requirement defines an external dependency fluxscp relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// CheckCapture reports the capture source and drive for cfg. Exactly one of
// the analyzer command or capture directory is required; the serial port is
// optional because build and --manual runs do not step the drive.
func CheckCapture(cfg *config.Config) []Status {
	var results []Status
	switch {
	case cfg.Analyzer.Command != "":
		results = append(results, CheckBinaries([]Requirement{{
			Name:        "Analyzer",
			Command:     cfg.Analyzer.Command,
			Description: "logic analyzer export command",
		}})...)
	case cfg.Analyzer.CaptureDir != "":
		results = append(results, checkPath("Capture dir", cfg.Analyzer.CaptureDir, "pre-exported captures", false, true))
	default:
		results = append(results, Status{
			Name:        "Analyzer",
			Description: "logic analyzer export command",
			Detail:      "set analyzer.command or analyzer.capture_dir",
		})
	}

	if port := cfg.Drive.SerialPort; port != "" {
		results = append(results, checkPath("Serial port", port, "drive control adapter", true, false))
	} else {
		results = append(results, Status{
			Name:        "Serial port",
			Description: "drive control adapter",
			Optional:    true,
			Detail:      "not configured; capture needs --manual",
		})
	}
	return results
}

func checkPath(name, path, description string, optional, wantDir bool) Status {
	status := Status{
		Name:        name,
		Command:     path,
		Description: description,
		Optional:    optional,
	}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		status.Detail = fmt.Sprintf("%s not found", path)
	case wantDir && !info.IsDir():
		status.Detail = fmt.Sprintf("%s is not a directory", path)
	default:
		status.Available = true
	}
	return status
}
