// Package logging assembles structured slog loggers and formatting helpers used
// across fluxscp.
//
// It owns the console and JSON handlers, mirrors records into a JSON log file,
// and exposes context-aware helpers so capture code can tag log lines with the
// session ID and the cylinder/head being read. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
