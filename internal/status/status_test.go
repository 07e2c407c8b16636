package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/tally-clock/internal/config"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{TickMs: 1000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.TickMs != 1000 {
		t.Errorf("Config.TickMs: got %d, want 1000", snap.Config.TickMs)
	}
	if snap.Settings != config.Default() {
		t.Errorf("Settings: got %+v, want defaults", snap.Settings)
	}
	if snap.Busy || snap.MQTTConnected || snap.LastBuzz != nil {
		t.Error("expected zero state initially")
	}
}

func TestRecordBuzzCountsBySource(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.RecordBuzz(Buzz{Source: "SCHEDULED", Hour: 9, Minute: 15})
	tr.RecordBuzz(Buzz{Source: "MANUAL", Hour: 9, Minute: 16, Description: "x"})
	tr.RecordBuzz(Buzz{Source: "MANUAL", Hour: 9, Minute: 17})
	tr.CountDropped()
	tr.CountLimited()
	tr.CountLimited()
	tr.CountEmpty()

	snap := tr.Snapshot()
	want := Counts{Scheduled: 1, Manual: 2, Empty: 1, Dropped: 1, Limited: 2}
	if snap.Counts != want {
		t.Errorf("Counts: got %+v, want %+v", snap.Counts, want)
	}
	if snap.LastBuzz == nil || snap.LastBuzz.Minute != 17 {
		t.Errorf("LastBuzz: got %+v", snap.LastBuzz)
	}
}

func TestSnapshotIsolatesLastBuzz(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.RecordBuzz(Buzz{Source: "MANUAL", Description: "before"})

	snap := tr.Snapshot()
	snap.LastBuzz.Description = "mutated"

	if got := tr.Snapshot().LastBuzz.Description; got != "before" {
		t.Errorf("tracker state changed through snapshot: %q", got)
	}
}

func TestSetScheduleAndBusy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 1, 1, 10, 15, 0, 0, time.UTC)
	tr.SetSchedule(Schedule{CronSpec: "0-59/15 * * * *", NextBuzzMinute: 15, CountdownMinutes: 1, CountdownSeconds: 30, NextBuzzAt: at})
	tr.SetBusy(true)

	snap := tr.Snapshot()
	if snap.Schedule.NextBuzzMinute != 15 || !snap.Schedule.NextBuzzAt.Equal(at) {
		t.Errorf("Schedule: got %+v", snap.Schedule)
	}
	if !snap.Busy {
		t.Error("expected Busy=true")
	}
}

func TestSetMQTTConnectedAndNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetMQTTConnected(true)
	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42"})

	snap := tr.Snapshot()
	if !snap.MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	if snap.Network == nil || snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network: got %+v", snap.Network)
	}
}

func TestUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(start, Config{})
	tr.now = func() time.Time { return start.Add(90 * time.Second) }

	if got := tr.Snapshot().Uptime(); got != 90*time.Second {
		t.Errorf("Uptime: got %v, want 90s", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			tr.SetBusy(i%2 == 0)
			tr.RecordBuzz(Buzz{Source: "MANUAL", Minute: i})
			tr.CountDropped()
		}(i)
		go func() {
			defer wg.Done()
			_ = tr.Snapshot()
		}()
	}
	wg.Wait()

	if got := tr.Snapshot().Counts; got.Manual != 10 || got.Dropped != 10 {
		t.Errorf("Counts: got %+v", got)
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(start, Config{Broker: "tcp://broker:1883", PinMotor: 18, PinBuzzer: -1})
	tr.now = func() time.Time { return start.Add(time.Hour) }
	tr.SetSchedule(Schedule{CronSpec: "0-59/15 * * * *", NextBuzzMinute: 15, CountdownMinutes: 3, CountdownSeconds: 5})
	tr.RecordBuzz(Buzz{RunID: "r1", Source: "SCHEDULED", At: start, Hour: 1, Minute: 0, Duration: 1200 * time.Millisecond})

	var sj StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if sj.Status.UptimeSeconds != 3600 {
		t.Errorf("uptime: got %d, want 3600", sj.Status.UptimeSeconds)
	}
	if sj.Status.Clock.TallyBase != 5 || !sj.Status.Clock.IncludeHours {
		t.Errorf("clock: got %+v", sj.Status.Clock)
	}
	if sj.Status.Timing.SeparatorMs != 400 {
		t.Errorf("timing: got %+v", sj.Status.Timing)
	}
	if sj.Status.Schedule.Cron != "0-59/15 * * * *" || sj.Status.Schedule.CountdownSeconds != 5 {
		t.Errorf("schedule: got %+v", sj.Status.Schedule)
	}
	if sj.Status.Schedule.NextBuzzAt != "" {
		t.Errorf("next_buzz_at should be omitted when unknown, got %q", sj.Status.Schedule.NextBuzzAt)
	}
	if sj.Status.LastBuzz == nil || sj.Status.LastBuzz.DurationMs != 1200 {
		t.Errorf("last buzz: got %+v", sj.Status.LastBuzz)
	}
	if sj.Status.Config.PinBuzzer != -1 {
		t.Errorf("pin_buzzer: got %d", sj.Status.Config.PinBuzzer)
	}
	if sj.Status.Event != "" {
		t.Errorf("event should be empty for web JSON, got %q", sj.Status.Event)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetNetwork(&NetworkInfo{Status: "connected", SSID: "MyNet"})

	var sj StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM"), &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if sj.Status.Event != "SHUTDOWN" || sj.Status.Reason != "SIGTERM" {
		t.Errorf("event/reason: got %q/%q", sj.Status.Event, sj.Status.Reason)
	}
	if sj.Status.Network == nil || sj.Status.Network.SSID != "MyNet" {
		t.Errorf("network: got %+v", sj.Status.Network)
	}
	if sj.Status.LastBuzz != nil {
		t.Error("last_buzz should be omitted before any buzz")
	}
}
