// Package logic contains the pure encoding and scheduling logic of the tally clock.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always passed in as plain minute/second values.
package logic

import (
	"fmt"
	"time"
)

// PulseKind distinguishes the two pulse lengths of the tally encoding.
type PulseKind string

const (
	PulseLong  PulseKind = "LONG"  // worth one tally base
	PulseShort PulseKind = "SHORT" // worth one unit
)

// GapKind identifies why a silent wait is in the pattern.
type GapKind string

const (
	GapInterPulse GapKind = "INTER_PULSE"
	GapSeparator  GapKind = "SEPARATOR" // between hour and minute
)

// EventKind tags an Event as a pulse or a gap.
type EventKind string

const (
	EventPulse EventKind = "PULSE"
	EventGap   EventKind = "GAP"
)

// Event is one step of a Pattern. Pulse is set only for EventPulse,
// Gap only for EventGap.
type Event struct {
	Kind     EventKind
	Pulse    PulseKind
	Gap      GapKind
	Duration time.Duration
}

// PulseEvent returns a pulse step.
func PulseEvent(kind PulseKind, d time.Duration) Event {
	return Event{Kind: EventPulse, Pulse: kind, Duration: d}
}

// GapEvent returns a silent wait step.
func GapEvent(kind GapKind, d time.Duration) Event {
	return Event{Kind: EventGap, Gap: kind, Duration: d}
}

func (e Event) String() string {
	if e.Kind == EventPulse {
		return fmt.Sprintf("%s(%v)", e.Pulse, e.Duration)
	}
	return fmt.Sprintf("%s(%v)", e.Gap, e.Duration)
}

// Pattern is the ordered event list for one hour+minute request.
// Callers must treat it as read-only once built.
type Pattern []Event

// IsEmpty reports whether the pattern produces no output at all.
func (p Pattern) IsEmpty() bool {
	return len(p) == 0
}

// TotalDuration is the wall-clock length of the pattern: every pulse and gap summed.
func (p Pattern) TotalDuration() time.Duration {
	var total time.Duration
	for _, e := range p {
		total += e.Duration
	}
	return total
}

// PulseCount returns the number of pulse events.
func (p Pattern) PulseCount() int {
	n := 0
	for _, e := range p {
		if e.Kind == EventPulse {
			n++
		}
	}
	return n
}

// GapCount returns the number of gap events of any kind.
func (p Pattern) GapCount() int {
	return len(p) - p.PulseCount()
}

// SeparatorCount returns the number of hour/minute separator gaps.
func (p Pattern) SeparatorCount() int {
	n := 0
	for _, e := range p {
		if e.Kind == EventGap && e.Gap == GapSeparator {
			n++
		}
	}
	return n
}

// Config holds the user-facing clock settings. It is a value type; a
// caller takes one snapshot per BuildPattern or schedule check.
type Config struct {
	Use12HourFormat bool
	IncludeHours    bool
	IncludeMinutes  bool
	TallyBase       int // units per LONG pulse, 5 or 10
	BuzzInterval    int // minutes between scheduled buzzes, 1..60
	StartMinute     int // phase of the schedule within the hour, 0..59
	AudioEnabled    bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		IncludeHours:   true,
		IncludeMinutes: true,
		TallyBase:      5,
		BuzzInterval:   15,
		StartMinute:    0,
	}
}

// Validate reports values outside the documented ranges.
// The encoding and schedule functions assume a valid Config.
func (c Config) Validate() error {
	if c.TallyBase != 5 && c.TallyBase != 10 {
		return fmt.Errorf("tally base must be 5 or 10, got %d", c.TallyBase)
	}
	if c.BuzzInterval < 1 || c.BuzzInterval > 60 {
		return fmt.Errorf("buzz interval must be in [1,60], got %d", c.BuzzInterval)
	}
	if c.StartMinute < 0 || c.StartMinute > 59 {
		return fmt.Errorf("start minute must be in [0,59], got %d", c.StartMinute)
	}
	return nil
}

// TimingProfile holds the four durations a pattern is built from.
type TimingProfile struct {
	Long       time.Duration
	Short      time.Duration
	InterPulse time.Duration
	Separator  time.Duration
}

// DefaultTiming returns the stock profile: 250ms long, 100ms short,
// 70ms between pulses and 400ms between hour and minute.
func DefaultTiming() TimingProfile {
	return TimingProfile{
		Long:       250 * time.Millisecond,
		Short:      100 * time.Millisecond,
		InterPulse: 70 * time.Millisecond,
		Separator:  400 * time.Millisecond,
	}
}

// Validate requires every duration to be positive.
func (t TimingProfile) Validate() error {
	for _, f := range []struct {
		name string
		d    time.Duration
	}{
		{"long", t.Long},
		{"short", t.Short},
		{"inter_pulse", t.InterPulse},
		{"separator", t.Separator},
	} {
		if f.d <= 0 {
			return fmt.Errorf("timing %s must be > 0, got %v", f.name, f.d)
		}
	}
	return nil
}

// PulseDuration returns the configured length of a pulse kind.
func (t TimingProfile) PulseDuration(kind PulseKind) time.Duration {
	if kind == PulseLong {
		return t.Long
	}
	return t.Short
}
