package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Busy          bool         `json:"busy"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Clock         ClockJSON    `json:"clock"`
	Timing        TimingJSON   `json:"timing"`
	Schedule      ScheduleJSON `json:"schedule"`
	LastBuzz      *BuzzJSON    `json:"last_buzz,omitempty"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"buzz_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ClockJSON is the JSON representation of the clock settings.
type ClockJSON struct {
	Use12HourFormat bool `json:"use_12_hour_format"`
	IncludeHours    bool `json:"include_hours"`
	IncludeMinutes  bool `json:"include_minutes"`
	TallyBase       int  `json:"tally_base"`
	BuzzInterval    int  `json:"buzz_interval"`
	StartMinute     int  `json:"start_minute"`
	AudioEnabled    bool `json:"audio_enabled"`
}

// TimingJSON is the JSON representation of the timing profile.
type TimingJSON struct {
	LongMs       int64 `json:"long_ms"`
	ShortMs      int64 `json:"short_ms"`
	InterPulseMs int64 `json:"inter_pulse_ms"`
	SeparatorMs  int64 `json:"separator_ms"`
}

// ScheduleJSON is the JSON representation of the derived schedule.
type ScheduleJSON struct {
	Cron             string `json:"cron"`
	NextBuzzMinute   int    `json:"next_buzz_minute"`
	CountdownMinutes int    `json:"countdown_minutes"`
	CountdownSeconds int    `json:"countdown_seconds"`
	NextBuzzAt       string `json:"next_buzz_at,omitempty"`
}

// BuzzJSON is the JSON representation of the last buzz.
type BuzzJSON struct {
	RunID       string `json:"run_id"`
	Source      string `json:"source"`
	At          string `json:"at"`
	Hour        int    `json:"hour"`
	Minute      int    `json:"minute"`
	Description string `json:"description"`
	DurationMs  int64  `json:"duration_ms"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of buzz counts.
type CountsJSON struct {
	Scheduled int `json:"scheduled"`
	Manual    int `json:"manual"`
	Empty     int `json:"empty"`
	Dropped   int `json:"dropped"`
	Limited   int `json:"limited"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs       int64  `json:"tick_ms"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
	SettingsPath string `json:"settings_path"`
	PinMotor     int    `json:"pin_motor"`
	PinBuzzer    int    `json:"pin_buzzer"`
}

func buildInner(snap Snapshot) StatusInner {
	clock := snap.Settings.Clock
	timing := snap.Settings.Timing

	inner := StatusInner{
		Busy:          snap.Busy,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Clock: ClockJSON{
			Use12HourFormat: clock.Use12HourFormat,
			IncludeHours:    clock.IncludeHours,
			IncludeMinutes:  clock.IncludeMinutes,
			TallyBase:       clock.TallyBase,
			BuzzInterval:    clock.BuzzInterval,
			StartMinute:     clock.StartMinute,
			AudioEnabled:    clock.AudioEnabled,
		},
		Timing: TimingJSON{
			LongMs:       timing.Long.Milliseconds(),
			ShortMs:      timing.Short.Milliseconds(),
			InterPulseMs: timing.InterPulse.Milliseconds(),
			SeparatorMs:  timing.Separator.Milliseconds(),
		},
		Schedule: ScheduleJSON{
			Cron:             snap.Schedule.CronSpec,
			NextBuzzMinute:   snap.Schedule.NextBuzzMinute,
			CountdownMinutes: snap.Schedule.CountdownMinutes,
			CountdownSeconds: snap.Schedule.CountdownSeconds,
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Scheduled: snap.Counts.Scheduled,
			Manual:    snap.Counts.Manual,
			Empty:     snap.Counts.Empty,
			Dropped:   snap.Counts.Dropped,
			Limited:   snap.Counts.Limited,
		},
		Config: ConfigJSON{
			TickMs:       snap.Config.TickMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			SettingsPath: snap.Config.SettingsPath,
			PinMotor:     snap.Config.PinMotor,
			PinBuzzer:    snap.Config.PinBuzzer,
		},
	}
	if !snap.Schedule.NextBuzzAt.IsZero() {
		inner.Schedule.NextBuzzAt = snap.Schedule.NextBuzzAt.UTC().Format(time.RFC3339)
	}
	if b := snap.LastBuzz; b != nil {
		inner.LastBuzz = &BuzzJSON{
			RunID:       b.RunID,
			Source:      b.Source,
			At:          b.At.UTC().Format(time.RFC3339),
			Hour:        b.Hour,
			Minute:      b.Minute,
			Description: b.Description,
			DurationMs:  b.Duration.Milliseconds(),
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
