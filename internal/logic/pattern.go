package logic

import (
	"fmt"
	"strings"
)

// ConvertHour applies the 12-hour mapping when use12 is set: 0 becomes 12
// and afternoon hours drop by 12. The result is what gets vibrated.
func ConvertHour(hour int, use12 bool) int {
	if !use12 {
		return hour
	}
	if hour == 0 {
		return 12
	}
	if hour > 12 {
		return hour - 12
	}
	return hour
}

// BuildPattern encodes hour (0-23) and minute (0-59) into a Pattern.
// A component that is switched off, or whose value is zero, contributes
// nothing. The result may be empty.
func BuildPattern(hour, minute int, cfg Config, timing TimingProfile) Pattern {
	h := ConvertHour(hour, cfg.Use12HourFormat)
	hourActive := cfg.IncludeHours && h > 0
	minuteActive := cfg.IncludeMinutes && minute > 0

	var p Pattern
	if hourActive {
		p = appendTally(p, h, cfg.TallyBase, timing)
	}
	if minuteActive {
		if len(p) > 0 {
			p = append(p, GapEvent(GapSeparator, timing.Separator))
		}
		p = appendTally(p, minute, cfg.TallyBase, timing)
	}
	return p
}

// appendTally adds the long pulses then the short pulses for n, with an
// inter-pulse gap between consecutive pulses of this group.
func appendTally(p Pattern, n, base int, timing TimingProfile) Pattern {
	longs, shorts := Encode(n, base)
	first := true
	add := func(kind PulseKind) {
		if !first {
			p = append(p, GapEvent(GapInterPulse, timing.InterPulse))
		}
		first = false
		p = append(p, PulseEvent(kind, timing.PulseDuration(kind)))
	}
	for i := 0; i < longs; i++ {
		add(PulseLong)
	}
	for i := 0; i < shorts; i++ {
		add(PulseShort)
	}
	return p
}

// DescribePattern summarizes what BuildPattern would play, e.g.
// "Hour 2: (none) | Min 37: 7L+2S". Sides whose toggle is off are left out.
func DescribePattern(hour, minute int, cfg Config) string {
	var parts []string
	if cfg.IncludeHours {
		h := ConvertHour(hour, cfg.Use12HourFormat)
		parts = append(parts, fmt.Sprintf("Hour %d: %s", h, tallyString(h, cfg.TallyBase)))
	}
	if cfg.IncludeMinutes {
		parts = append(parts, fmt.Sprintf("Min %d: %s", minute, tallyString(minute, cfg.TallyBase)))
	}
	return strings.Join(parts, " | ")
}

func tallyString(n, base int) string {
	if n <= 0 {
		return "(none)"
	}
	longs, shorts := Encode(n, base)
	return fmt.Sprintf("%dL+%dS", longs, shorts)
}
