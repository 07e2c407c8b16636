package gpio

import (
	"sync"
	"time"
)

// FakeOutput is a test double that records output calls.
// Safe for use from the sequencer's playback goroutine.
type FakeOutput struct {
	mu sync.Mutex

	vibrations []time.Duration
	beeps      []Beep
	closed     bool

	// VibrateError, if set, will be returned by Vibrate().
	VibrateError error

	// BeepError, if set, will be returned by Beep().
	BeepError error
}

// Beep is a single recorded buzzer call.
type Beep struct {
	FreqHz   int
	Duration time.Duration
}

// NewFakeOutput creates an empty FakeOutput.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Vibrate records the call, even when VibrateError is set.
func (f *FakeOutput) Vibrate(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vibrations = append(f.vibrations, d)
	return f.VibrateError
}

// Beep records the call, even when BeepError is set.
func (f *FakeOutput) Beep(freqHz int, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beeps = append(f.beeps, Beep{FreqHz: freqHz, Duration: d})
	return f.BeepError
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Vibrations returns a copy of the recorded vibration durations.
func (f *FakeOutput) Vibrations() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.vibrations...)
}

// Beeps returns a copy of the recorded buzzer calls.
func (f *FakeOutput) Beeps() []Beep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Beep(nil), f.beeps...)
}

// Closed reports whether Close was called.
func (f *FakeOutput) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears recorded calls and injected errors.
func (f *FakeOutput) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vibrations = nil
	f.beeps = nil
	f.closed = false
	f.VibrateError = nil
	f.BeepError = nil
}
