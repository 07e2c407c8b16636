package internal

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/tally-clock/internal/buzzer"
	"github.com/sweeney/tally-clock/internal/config"
	"github.com/sweeney/tally-clock/internal/gpio"
	"github.com/sweeney/tally-clock/internal/logic"
	"github.com/sweeney/tally-clock/internal/mqtt"
	"github.com/sweeney/tally-clock/internal/sequencer"
	"github.com/sweeney/tally-clock/internal/status"
	"github.com/sweeney/tally-clock/internal/web"
)

// stepClock advances on Sleep only, so playback completes instantly.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type system struct {
	buzzer  *buzzer.Buzzer
	out     *gpio.FakeOutput
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	store   *config.Store
}

func newSystem(t *testing.T, store *config.Store, start time.Time) *system {
	t.Helper()
	s := &system{
		out:     gpio.NewFakeOutput(),
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(start, status.Config{}),
		store:   store,
	}
	s.buzzer = buzzer.New(buzzer.Options{
		Executor:  sequencer.New(sequencer.WithClock(&stepClock{now: start})),
		Output:    s.out,
		Publisher: s.pub,
		Tracker:   s.tracker,
		Settings:  store.Get,
		Log:       zerolog.Nop(),
		Now:       func() time.Time { return start },
	})
	s.pub.OnCommand(s.buzzer.HandleCommand)
	return s
}

// tickHour samples one hour at 1 Hz starting at start, waiting for each
// buzz to finish before moving on.
func (s *system) tickHour(start time.Time) {
	for i := 0; i < 3600; i++ {
		if s.buzzer.Tick(start.Add(time.Duration(i) * time.Second)) {
			s.buzzer.Wait()
		}
	}
}

// TestIntegrationScheduledHour drives an hour of ticks with the default
// settings and checks every buzz end to end.
func TestIntegrationScheduledHour(t *testing.T) {
	start := time.Date(2026, 1, 1, 14, 0, 0, 0, time.UTC)
	s := newSystem(t, config.NewStaticStore(config.Default()), start)

	s.tickHour(start)

	events := s.pub.Events()
	if len(events) != 8 {
		t.Fatalf("expected 4 buzzes (8 events), got %d events", len(events))
	}

	wantMinutes := []int{0, 15, 30, 45}
	totalPulses := 0
	for i, m := range wantMinutes {
		startEv, doneEv := events[2*i], events[2*i+1]
		if startEv.Type != mqtt.BuzzStart || doneEv.Type != mqtt.BuzzDone {
			t.Errorf("buzz %d: types %s/%s", i, startEv.Type, doneEv.Type)
		}
		if startEv.Minute != m || startEv.Hour != 14 {
			t.Errorf("buzz %d: time %02d:%02d, want 14:%02d", i, startEv.Hour, startEv.Minute, m)
		}
		if startEv.RunID != doneEv.RunID {
			t.Errorf("buzz %d: run ids differ", i)
		}
		p := logic.BuildPattern(14, m, logic.DefaultConfig(), logic.DefaultTiming())
		if startEv.Pulses != p.PulseCount() {
			t.Errorf("buzz %d: pulses %d, want %d", i, startEv.Pulses, p.PulseCount())
		}
		if startEv.Duration != p.TotalDuration() {
			t.Errorf("buzz %d: duration %v, want %v", i, startEv.Duration, p.TotalDuration())
		}
		totalPulses += p.PulseCount()
	}

	if got := len(s.out.Vibrations()); got != totalPulses {
		t.Errorf("vibrations: got %d, want %d", got, totalPulses)
	}

	// Verify payload shape on the wire
	var payload mqtt.Payload
	if err := json.Unmarshal(s.pub.Payloads()[2], &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Buzz.Time != "14:15" {
		t.Errorf("payload time: got %q, want 14:15", payload.Buzz.Time)
	}
	if payload.Buzz.Event != "BUZZ_START" || payload.Buzz.Source != "SCHEDULED" {
		t.Errorf("payload: %+v", payload.Buzz)
	}
	if payload.Buzz.Description != "Hour 14: 2L+4S | Min 15: 3L+0S" {
		t.Errorf("payload description: %q", payload.Buzz.Description)
	}

	snap := s.tracker.Snapshot()
	if snap.Counts.Scheduled != 4 {
		t.Errorf("scheduled count: got %d, want 4", snap.Counts.Scheduled)
	}
	if snap.Schedule.NextBuzzMinute != 60 {
		// last tick is 14:59:59
		t.Errorf("next buzz minute: got %d, want 60", snap.Schedule.NextBuzzMinute)
	}
}

// TestIntegrationSettingsFile loads settings from YAML and checks that a
// reload changes what is played.
func TestIntegrationSettingsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	initial := `clock:
  tally_base: 10
  buzz_interval: 30
  start_minute: 5
  audio_enabled: true
timing:
  long: 300ms
`
	if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := config.NewStore(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	start := time.Date(2026, 1, 1, 21, 0, 0, 0, time.UTC)
	s := newSystem(t, store, start)
	s.tickHour(start)

	events := s.pub.Events()
	if len(events) != 4 {
		t.Fatalf("expected 2 buzzes (4 events), got %d", len(events))
	}
	if events[0].Minute != 5 || events[2].Minute != 35 {
		t.Errorf("buzz minutes: %d, %d, want 5, 35", events[0].Minute, events[2].Minute)
	}
	// 21 -> 2L+1S, 5 -> 5S in base 10
	if events[0].Description != "Hour 21: 2L+1S | Min 5: 0L+5S" {
		t.Errorf("description: %q", events[0].Description)
	}
	vib := s.out.Vibrations()
	if len(vib) == 0 || vib[0] != 300*time.Millisecond {
		t.Errorf("first vibration: %v, want 300ms", vib)
	}
	if got, want := len(s.out.Beeps()), len(vib); got != want {
		t.Errorf("beeps: got %d, want %d with audio enabled", got, want)
	}

	// Switch to 12 hour, minutes only off, and reload.
	updated := `clock:
  use_12_hour_format: true
  include_minutes: false
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	s.pub.Reset()
	if got := s.buzzer.FeelNow(time.Date(2026, 1, 1, 21, 40, 0, 0, time.UTC)); got != buzzer.ResultStarted {
		t.Fatalf("FeelNow: got %s, want STARTED", got)
	}
	s.buzzer.Wait()
	events = s.pub.Events()
	if len(events) != 2 || events[0].Description != "Hour 9: 1L+4S" {
		t.Errorf("after reload: %+v", events)
	}

	// A broken file keeps the previous settings.
	if err := os.WriteFile(path, []byte("clock:\n  tally_base: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Reload(); err == nil {
		t.Error("expected error reloading tally_base 7")
	}
	if got := store.Get().Clock.TallyBase; got != 5 {
		t.Errorf("tally base after failed reload: got %d, want 5", got)
	}
}

// TestIntegrationManualRequests exercises the HTTP and MQTT request paths
// against a real buzzer.
func TestIntegrationManualRequests(t *testing.T) {
	start := time.Date(2026, 1, 1, 6, 1, 0, 0, time.UTC)
	s := newSystem(t, config.NewStaticStore(config.Default()), start)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := web.New("", s.tracker, s.buzzer)
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	resp, err := http.Post("http://"+ln.Addr().String()+"/buzz", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /buzz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("POST /buzz: status %d, want 202", resp.StatusCode)
	}
	s.buzzer.Wait()

	s.pub.Send(mqtt.Command{Name: mqtt.CommandFeelNow})
	s.buzzer.Wait()

	snap := s.tracker.Snapshot()
	if snap.Counts.Manual != 2 {
		t.Errorf("manual count: got %d, want 2", snap.Counts.Manual)
	}
	for _, ev := range s.pub.Events() {
		if ev.Source != string(buzzer.SourceManual) {
			t.Errorf("event source: got %q, want MANUAL", ev.Source)
		}
	}
	// 06:01 -> L S | S, twice
	if got := len(s.out.Vibrations()); got != 6 {
		t.Errorf("vibrations: got %d, want 6", got)
	}
}
