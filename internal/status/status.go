// Package status provides a thread-safe status tracker for the tally-clock daemon.
// It is read by the HTTP handlers and by the lifecycle events sent over MQTT.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/tally-clock/internal/config"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs       int64
	HeartbeatMs  int64
	Broker       string
	HTTPAddr     string
	SettingsPath string
	PinMotor     int
	PinBuzzer    int
}

// Schedule is the derived buzz schedule as of the last tick.
type Schedule struct {
	CronSpec         string
	NextBuzzMinute   int // 60-119 means next hour
	CountdownMinutes int
	CountdownSeconds int
	NextBuzzAt       time.Time
}

// Buzz describes the most recent accepted pattern playback.
type Buzz struct {
	RunID       string
	Source      string
	At          time.Time
	Hour        int
	Minute      int
	Description string
	Duration    time.Duration
}

// Counts tracks buzz requests since startup.
type Counts struct {
	Scheduled int // scheduled buzzes started
	Manual    int // manual buzzes started
	Empty     int // requests whose pattern had nothing to play
	Dropped   int // requests dropped because a pattern was playing
	Limited   int // manual requests rejected by the rate limiter
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Settings      config.Settings
	Schedule      Schedule
	Busy          bool
	LastBuzz      *Buzz
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Settings:  config.Default(),
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetSettings records the settings snapshot in force.
func (t *Tracker) SetSettings(s config.Settings) {
	t.mu.Lock()
	t.snap.Settings = s
	t.mu.Unlock()
}

// SetSchedule records the schedule computed on the latest tick.
func (t *Tracker) SetSchedule(s Schedule) {
	t.mu.Lock()
	t.snap.Schedule = s
	t.mu.Unlock()
}

// SetBusy records whether a pattern is playing.
func (t *Tracker) SetBusy(busy bool) {
	t.mu.Lock()
	t.snap.Busy = busy
	t.mu.Unlock()
}

// RecordBuzz stores b as the last buzz and counts it by source.
func (t *Tracker) RecordBuzz(b Buzz) {
	t.mu.Lock()
	t.snap.LastBuzz = &b
	switch b.Source {
	case "SCHEDULED":
		t.snap.Counts.Scheduled++
	case "MANUAL":
		t.snap.Counts.Manual++
	}
	t.mu.Unlock()
}

// CountEmpty counts a request whose pattern was empty.
func (t *Tracker) CountEmpty() {
	t.mu.Lock()
	t.snap.Counts.Empty++
	t.mu.Unlock()
}

// CountDropped counts a request dropped by the busy guard.
func (t *Tracker) CountDropped() {
	t.mu.Lock()
	t.snap.Counts.Dropped++
	t.mu.Unlock()
}

// CountLimited counts a manual request rejected by the rate limiter.
func (t *Tracker) CountLimited() {
	t.mu.Lock()
	t.snap.Counts.Limited++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastBuzz != nil {
		b := *s.LastBuzz
		s.LastBuzz = &b
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
