package session

import (
	"fmt"

	"fluxscp/internal/config"
	"fluxscp/internal/flux"
)

// SettingsFromConfig snapshots the image and decode parameters of cfg so a
// session can later be rebuilt with the values it was captured with.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	params, err := cfg.ImageParams()
	if err != nil {
		return Settings{}, fmt.Errorf("image parameters: %w", err)
	}
	opts, err := cfg.DecodeOptions()
	if err != nil {
		return Settings{}, fmt.Errorf("decode options: %w", err)
	}
	return Settings{
		Image:            params,
		Decode:           opts,
		StartingCylinder: cfg.Geometry.StartingCylinder,
		TrackSkip:        cfg.Geometry.TrackSkip,
		BestEffort:       cfg.Decode.BestEffort,
	}, nil
}

// Stride is the number of drive steps between captured cylinders.
func (s Settings) Stride() int {
	return 1 + s.TrackSkip
}

// Decoder builds a decoder for the session's decode options.
func (s Settings) Decoder() (*flux.Decoder, error) {
	return flux.NewDecoder(s.Decode)
}
