// Package config loads, normalizes, and validates fluxscp configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the FLUXSCP_SERIAL_PORT
// environment fallback. The Config type centralizes disk geometry, analyzer
// sample format, decode and image header settings so the CLI can build a
// decoder and an SCP encoder from one source.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
