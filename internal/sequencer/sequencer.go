// Package sequencer plays a logic.Pattern in real time.
//
// An Executor runs at most one pattern at a time. A request that arrives
// while a pattern is playing is dropped, never queued, and a started
// pattern always plays to the end.
package sequencer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/tally-clock/internal/logic"
)

// Clock provides the time source and suspension primitive for playback.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Callbacks receive the output of a running pattern. Nil fields are skipped.
// They are invoked on the playback goroutine and must not block for longer
// than the pulse they are handed.
type Callbacks struct {
	OnPulse    func(kind logic.PulseKind, d time.Duration)
	OnTone     func(kind logic.PulseKind, d time.Duration)
	OnComplete func()
}

// Executor plays patterns one at a time.
type Executor struct {
	clock Clock
	busy  atomic.Bool
	wg    sync.WaitGroup
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// New creates an idle Executor.
func New(opts ...Option) *Executor {
	e := &Executor{clock: realClock{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute starts playing p and returns true, or returns false without
// invoking any callback if another pattern is still playing.
//
// An empty pattern completes immediately: OnComplete runs on the caller's
// goroutine before Execute returns. Otherwise playback happens on a new
// goroutine and OnComplete runs after the last event's duration has elapsed.
func (e *Executor) Execute(p logic.Pattern, audioEnabled bool, cb Callbacks) bool {
	if !e.busy.CompareAndSwap(false, true) {
		return false
	}
	if p.IsEmpty() {
		e.busy.Store(false)
		if cb.OnComplete != nil {
			cb.OnComplete()
		}
		return true
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.play(p, audioEnabled, cb)
		if cb.OnComplete != nil {
			cb.OnComplete()
		}
	}()
	return true
}

// Busy reports whether a pattern is currently playing.
func (e *Executor) Busy() bool {
	return e.busy.Load()
}

// Wait blocks until the pattern in flight, if any, has finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// play walks the events in order. Sleeps are measured against cumulative
// deadlines from the start of playback.
func (e *Executor) play(p logic.Pattern, audioEnabled bool, cb Callbacks) {
	defer e.busy.Store(false)

	deadline := e.clock.Now()
	for _, ev := range p {
		if ev.Kind == logic.EventPulse {
			if cb.OnPulse != nil {
				cb.OnPulse(ev.Pulse, ev.Duration)
			}
			if audioEnabled && cb.OnTone != nil {
				cb.OnTone(ev.Pulse, ev.Duration)
			}
		}
		deadline = deadline.Add(ev.Duration)
		if wait := deadline.Sub(e.clock.Now()); wait > 0 {
			e.clock.Sleep(wait)
		}
	}
}
