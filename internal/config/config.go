// Package config loads the clock settings file and keeps the current
// snapshot available to the tick loop and the HTTP surface.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/tally-clock/internal/logic"
)

// Settings is one immutable snapshot of the clock configuration.
type Settings struct {
	Clock  logic.Config
	Timing logic.TimingProfile
}

// Default returns the settings used when no file exists.
func Default() Settings {
	return Settings{
		Clock:  logic.DefaultConfig(),
		Timing: logic.DefaultTiming(),
	}
}

// Validate checks both the clock and timing sections.
func (s Settings) Validate() error {
	if err := s.Clock.Validate(); err != nil {
		return fmt.Errorf("clock: %w", err)
	}
	if err := s.Timing.Validate(); err != nil {
		return err
	}
	return nil
}

// fileSettings mirrors the YAML layout. Pointers distinguish "absent"
// (keep the default) from an explicit zero or false.
type fileSettings struct {
	Clock struct {
		Use12HourFormat *bool `yaml:"use_12_hour_format"`
		IncludeHours    *bool `yaml:"include_hours"`
		IncludeMinutes  *bool `yaml:"include_minutes"`
		TallyBase       *int  `yaml:"tally_base"`
		BuzzInterval    *int  `yaml:"buzz_interval"`
		StartMinute     *int  `yaml:"start_minute"`
		AudioEnabled    *bool `yaml:"audio_enabled"`
	} `yaml:"clock"`
	Timing struct {
		Long       string `yaml:"long"`
		Short      string `yaml:"short"`
		InterPulse string `yaml:"inter_pulse"`
		Separator  string `yaml:"separator"`
	} `yaml:"timing"`
}

// Load reads settings from path.
// If the file does not exist, default settings are returned.
func Load(path string) (Settings, error) {
	settings := Default()

	rawData, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("read settings file: %w", err)
	}

	return Parse(rawData)
}

// Parse decodes YAML settings on top of the defaults and validates the result.
func Parse(data []byte) (Settings, error) {
	settings := Default()

	var fileData fileSettings
	if err := yaml.Unmarshal(data, &fileData); err != nil {
		return settings, fmt.Errorf("parse settings yaml: %w", err)
	}
	if err := applyFileSettings(&settings, fileData); err != nil {
		return Default(), err
	}
	if err := settings.Validate(); err != nil {
		return Default(), fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

// Marshal renders settings in the file layout Load understands.
func Marshal(s Settings) ([]byte, error) {
	var fileData fileSettings
	fileData.Clock.Use12HourFormat = &s.Clock.Use12HourFormat
	fileData.Clock.IncludeHours = &s.Clock.IncludeHours
	fileData.Clock.IncludeMinutes = &s.Clock.IncludeMinutes
	fileData.Clock.TallyBase = &s.Clock.TallyBase
	fileData.Clock.BuzzInterval = &s.Clock.BuzzInterval
	fileData.Clock.StartMinute = &s.Clock.StartMinute
	fileData.Clock.AudioEnabled = &s.Clock.AudioEnabled
	fileData.Timing.Long = s.Timing.Long.String()
	fileData.Timing.Short = s.Timing.Short.String()
	fileData.Timing.InterPulse = s.Timing.InterPulse.String()
	fileData.Timing.Separator = s.Timing.Separator.String()

	out, err := yaml.Marshal(fileData)
	if err != nil {
		return nil, fmt.Errorf("marshal settings yaml: %w", err)
	}
	return out, nil
}

func applyFileSettings(settings *Settings, fileData fileSettings) error {
	c := fileData.Clock
	setBool(&settings.Clock.Use12HourFormat, c.Use12HourFormat)
	setBool(&settings.Clock.IncludeHours, c.IncludeHours)
	setBool(&settings.Clock.IncludeMinutes, c.IncludeMinutes)
	setBool(&settings.Clock.AudioEnabled, c.AudioEnabled)
	setInt(&settings.Clock.TallyBase, c.TallyBase)
	setInt(&settings.Clock.BuzzInterval, c.BuzzInterval)
	setInt(&settings.Clock.StartMinute, c.StartMinute)

	t := fileData.Timing
	for _, f := range []struct {
		path string
		raw  string
		dst  *time.Duration
	}{
		{"timing.long", t.Long, &settings.Timing.Long},
		{"timing.short", t.Short, &settings.Timing.Short},
		{"timing.inter_pulse", t.InterPulse, &settings.Timing.InterPulse},
		{"timing.separator", t.Separator, &settings.Timing.Separator},
	} {
		if err := parseDurationField(f.path, f.raw, f.dst); err != nil {
			return err
		}
	}
	return nil
}

// parseDurationField leaves dst untouched for an empty value.
func parseDurationField(path, raw string, dst *time.Duration) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s: duration must be > 0", path)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
