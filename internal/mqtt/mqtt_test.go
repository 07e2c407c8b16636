package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func sampleEvent() BuzzEvent {
	return BuzzEvent{
		Timestamp:   time.Date(2026, 2, 2, 14, 37, 0, 0, time.UTC),
		Type:        BuzzStart,
		RunID:       "3f1c1f5e-6a5e-4c5e-9d7e-1b2a3c4d5e6f",
		Source:      "SCHEDULED",
		Hour:        14,
		Minute:      37,
		Description: "Hour 14: 2L+4S | Min 37: 7L+2S",
		Pulses:      15,
		Duration:    4060 * time.Millisecond,
	}
}

func TestFormatPayload(t *testing.T) {
	payload, err := FormatPayload(sampleEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Buzz.Timestamp != "2026-02-02T14:37:00Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Buzz.Timestamp)
	}
	if parsed.Buzz.Event != "BUZZ_START" {
		t.Errorf("unexpected event: %s", parsed.Buzz.Event)
	}
	if parsed.Buzz.Time != "14:37" {
		t.Errorf("unexpected time: %s", parsed.Buzz.Time)
	}
	if parsed.Buzz.Source != "SCHEDULED" {
		t.Errorf("unexpected source: %s", parsed.Buzz.Source)
	}
	if parsed.Buzz.Pulses != 15 {
		t.Errorf("unexpected pulses: %d", parsed.Buzz.Pulses)
	}
	if parsed.Buzz.DurationMs != 4060 {
		t.Errorf("unexpected duration_ms: %d", parsed.Buzz.DurationMs)
	}
	if parsed.Buzz.RunID != sampleEvent().RunID {
		t.Errorf("unexpected run_id: %s", parsed.Buzz.RunID)
	}
}

func TestFormatPayloadPadsTime(t *testing.T) {
	ev := sampleEvent()
	ev.Hour, ev.Minute = 7, 5
	payload, _ := FormatPayload(ev)

	var parsed Payload
	json.Unmarshal(payload, &parsed)
	if parsed.Buzz.Time != "07:05" {
		t.Errorf("time: got %q, want 07:05", parsed.Buzz.Time)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"system":{"timestamp":"2026-02-02T00:00:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != want {
		t.Errorf("got %s, want %s", payload, want)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RELOAD"})
	var raw map[string]map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["system"]["reason"]; ok {
		t.Error("reason should be omitted when empty")
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		payload string
		want    string
		wantErr bool
	}{
		{`{"command":"FEEL_NOW"}`, CommandFeelNow, false},
		{`{"command":" feel_now "}`, CommandFeelNow, false},
		{`{"command":""}`, "", true},
		{`{}`, "", true},
		{`FEEL_NOW`, "", true},
	}
	for _, tt := range tests {
		c, err := ParseCommand([]byte(tt.payload))
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			continue
		}
		if c.Name != tt.want {
			t.Errorf("%s: got %q, want %q", tt.payload, c.Name, tt.want)
		}
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.Publish(sampleEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := f.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != BuzzStart {
		t.Errorf("unexpected event type: %s", events[0].Type)
	}
	if len(f.Payloads()) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(f.Payloads()))
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")

	if err := f.Publish(sampleEvent()); err == nil {
		t.Error("expected error")
	}
	if len(f.Events()) != 0 {
		t.Errorf("expected no events recorded on error, got %d", len(f.Events()))
	}
}

func TestFakePublisherSystem(t *testing.T) {
	f := NewFakePublisher()
	f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "STARTUP"})

	f.PublishSystemError = errors.New("down")
	if err := f.PublishSystem(SystemEvent{Event: "HEARTBEAT"}); err == nil {
		t.Error("expected error")
	}
	if got := f.SystemEvents(); len(got) != 1 || got[0].Event != "STARTUP" {
		t.Errorf("system events: got %+v", got)
	}
}

func TestFakePublisherCommands(t *testing.T) {
	f := NewFakePublisher()
	f.Send(Command{Name: CommandFeelNow}) // no handler yet: ignored

	var got []Command
	f.OnCommand(func(c Command) { got = append(got, c) })
	f.Send(Command{Name: CommandFeelNow})

	if len(got) != 1 || got[0].Name != CommandFeelNow {
		t.Errorf("commands: got %+v", got)
	}
}

func TestFakePublisherCloseAndReset(t *testing.T) {
	f := NewFakePublisher()
	if f.Closed() {
		t.Error("should not be closed initially")
	}
	f.Close()
	if !f.Closed() {
		t.Error("should be closed after Close()")
	}

	f.Publish(sampleEvent())
	f.Connected = true
	f.Reset()
	if f.Closed() || f.IsConnected() || len(f.Events()) != 0 {
		t.Error("Reset did not clear state")
	}
}
