package core

import (
	"errors"
	"fmt"
	"slices"
)

// Allowed option sets for the settings screen.
var (
	IntervalMinuteOptions    = []int{3, 5, 10}
	PreparationSecondOptions = []int{5, 10, 15, 20, 30, 45}
)

// Settings are the user's meditation preferences. The reducer only reads them.
type Settings struct {
	IntervalGongsEnabled bool    `yaml:"interval_gongs_enabled" json:"interval_gongs_enabled"`
	IntervalMinutes      int     `yaml:"interval_minutes" json:"interval_minutes"`
	BackgroundSoundID    string  `yaml:"background_sound_id" json:"background_sound_id"`
	DurationMinutes      int     `yaml:"duration_minutes" json:"duration_minutes"`
	PreparationEnabled   bool    `yaml:"preparation_enabled" json:"preparation_enabled"`
	PreparationSeconds   int     `yaml:"preparation_seconds" json:"preparation_seconds"`
	GongSoundID          string  `yaml:"gong_sound_id" json:"gong_sound_id"`
	GongVolume           float64 `yaml:"gong_volume" json:"gong_volume"`
	BackgroundVolume     float64 `yaml:"background_volume" json:"background_volume"`
}

// DefaultSettings returns the settings used on first launch.
func DefaultSettings() Settings {
	return Settings{
		IntervalGongsEnabled: false,
		IntervalMinutes:      5,
		BackgroundSoundID:    "silent",
		DurationMinutes:      10,
		PreparationEnabled:   true,
		PreparationSeconds:   15,
		GongSoundID:          "temple_bell",
		GongVolume:           1.0,
		BackgroundVolume:     0.15,
	}
}

// EffectivePreparationSeconds is the preparation countdown a new session uses:
// 0 when preparation is disabled. Values are read through Normalize so a
// session always matches what SaveSettings persists.
func (s Settings) EffectivePreparationSeconds() int {
	n := s.Normalize()
	if !n.PreparationEnabled {
		return 0
	}
	return n.PreparationSeconds
}

// Validate reports every out-of-range field.
func (s Settings) Validate() error {
	var errs []error
	if !slices.Contains(IntervalMinuteOptions, s.IntervalMinutes) {
		errs = append(errs, fmt.Errorf("interval_minutes must be one of %v (got %d)", IntervalMinuteOptions, s.IntervalMinutes))
	}
	if s.DurationMinutes < MinDurationMinutes || s.DurationMinutes > MaxDurationMinutes {
		errs = append(errs, fmt.Errorf("duration_minutes must be in [%d,%d] (got %d)", MinDurationMinutes, MaxDurationMinutes, s.DurationMinutes))
	}
	if !slices.Contains(PreparationSecondOptions, s.PreparationSeconds) {
		errs = append(errs, fmt.Errorf("preparation_seconds must be one of %v (got %d)", PreparationSecondOptions, s.PreparationSeconds))
	}
	if s.BackgroundSoundID == "" {
		errs = append(errs, errors.New("background_sound_id must not be empty"))
	}
	if s.GongSoundID == "" {
		errs = append(errs, errors.New("gong_sound_id must not be empty"))
	}
	if s.GongVolume < 0 || s.GongVolume > 1 {
		errs = append(errs, fmt.Errorf("gong_volume must be in [0,1] (got %v)", s.GongVolume))
	}
	if s.BackgroundVolume < 0 || s.BackgroundVolume > 1 {
		errs = append(errs, fmt.Errorf("background_volume must be in [0,1] (got %v)", s.BackgroundVolume))
	}
	return errors.Join(errs...)
}

// Normalize snaps invalid values back to defaults and clamps volumes.
// Reduce and the settings store both see settings through it.
func (s Settings) Normalize() Settings {
	def := DefaultSettings()
	if !slices.Contains(IntervalMinuteOptions, s.IntervalMinutes) {
		s.IntervalMinutes = def.IntervalMinutes
	}
	if s.DurationMinutes < MinDurationMinutes || s.DurationMinutes > MaxDurationMinutes {
		s.DurationMinutes = def.DurationMinutes
	}
	// A zero or negative preparation means "no preparation".
	if s.PreparationSeconds <= 0 {
		s.PreparationEnabled = false
		s.PreparationSeconds = def.PreparationSeconds
	} else if !slices.Contains(PreparationSecondOptions, s.PreparationSeconds) {
		s.PreparationSeconds = def.PreparationSeconds
	}
	if s.BackgroundSoundID == "" {
		s.BackgroundSoundID = def.BackgroundSoundID
	}
	if s.GongSoundID == "" {
		s.GongSoundID = def.GongSoundID
	}
	s.GongVolume = min(max(s.GongVolume, 0), 1)
	s.BackgroundVolume = min(max(s.BackgroundVolume, 0), 1)
	return s
}
