// Package buzzer connects the tally clock's pure logic to its outputs.
// It decides on every tick whether a scheduled buzz is due, serves manual
// "feel now" requests, and reports every playback to MQTT and the status
// tracker.
package buzzer

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sweeney/tally-clock/internal/config"
	"github.com/sweeney/tally-clock/internal/gpio"
	"github.com/sweeney/tally-clock/internal/logic"
	"github.com/sweeney/tally-clock/internal/mqtt"
	"github.com/sweeney/tally-clock/internal/sequencer"
	"github.com/sweeney/tally-clock/internal/status"
)

// Source says who asked for a buzz.
type Source string

const (
	SourceScheduled Source = "SCHEDULED"
	SourceManual    Source = "MANUAL"
)

// Result is the outcome of a buzz request.
type Result string

const (
	ResultStarted Result = "STARTED" // pattern is playing
	ResultEmpty   Result = "EMPTY"   // nothing to play for this time and settings
	ResultBusy    Result = "BUSY"    // dropped, another pattern is playing
	ResultLimited Result = "LIMITED" // manual request rate exceeded
)

// Tone frequencies for the two pulse kinds.
const (
	ToneLongHz  = 440
	ToneShortHz = 880
)

// Options holds the collaborators of a Buzzer. Executor, Output,
// Publisher, Tracker and Settings are required.
type Options struct {
	Executor  *sequencer.Executor
	Output    gpio.Output
	Publisher mqtt.Publisher
	Tracker   *status.Tracker
	Settings  func() config.Settings
	Log       zerolog.Logger

	// ManualRate limits manual requests per second; zero disables the limit.
	ManualRate  rate.Limit
	ManualBurst int

	// Now defaults to time.Now.
	Now func() time.Time
}

// Buzzer plays the current time on request or on schedule.
type Buzzer struct {
	exec      *sequencer.Executor
	output    gpio.Output
	publisher mqtt.Publisher
	tracker   *status.Tracker
	settings  func() config.Settings
	log       zerolog.Logger
	limiter   *rate.Limiter
	now       func() time.Time
	next      nextBuzz

	mu            sync.Mutex
	lastFired     time.Time // minute of the last scheduled buzz
	startTime     time.Time
	lastHeartbeat time.Time
}

// New creates a Buzzer from opts.
func New(opts Options) *Buzzer {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	b := &Buzzer{
		exec:      opts.Executor,
		output:    opts.Output,
		publisher: opts.Publisher,
		tracker:   opts.Tracker,
		settings:  opts.Settings,
		log:       opts.Log,
		now:       now,
	}
	if opts.ManualRate > 0 {
		burst := opts.ManualBurst
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(opts.ManualRate, burst)
	}
	start := now()
	b.startTime = start
	b.lastHeartbeat = start
	return b
}

// Tick samples the schedule at now. It refreshes the status tracker and
// starts a scheduled buzz when one is due, reporting whether it did.
// Each wall-clock minute fires at most once, even if sampled twice.
func (b *Buzzer) Tick(now time.Time) bool {
	s := b.settings()
	c := s.Clock
	minute, second := now.Minute(), now.Second()

	cm, cs := logic.Countdown(minute, second, c.StartMinute, c.BuzzInterval)
	sched := status.Schedule{
		CronSpec:         logic.CronSpec(c.StartMinute, c.BuzzInterval),
		NextBuzzMinute:   logic.NextBuzzMinute(minute, c.StartMinute, c.BuzzInterval),
		CountdownMinutes: cm,
		CountdownSeconds: cs,
	}
	if at, err := b.next.at(now, c); err != nil {
		b.log.Warn().Err(err).Str("cron", sched.CronSpec).Msg("cannot compute next buzz time")
	} else {
		sched.NextBuzzAt = at
	}
	b.tracker.SetSettings(s)
	b.tracker.SetSchedule(sched)
	b.tracker.SetBusy(b.exec.Busy())

	if !logic.ShouldFireNow(minute, second, c.StartMinute, c.BuzzInterval) {
		return false
	}

	m := now.Truncate(time.Minute)
	b.mu.Lock()
	if m.Equal(b.lastFired) {
		b.mu.Unlock()
		return false
	}
	b.lastFired = m
	b.mu.Unlock()

	return b.start(SourceScheduled, now, s) == ResultStarted
}

// FeelNow plays the time at now on request.
func (b *Buzzer) FeelNow(now time.Time) Result {
	if b.limiter != nil && !b.limiter.AllowN(now, 1) {
		b.tracker.CountLimited()
		b.log.Info().Msg("manual buzz rate limited")
		return ResultLimited
	}
	return b.start(SourceManual, now, b.settings())
}

// HandleCommand serves a command received over MQTT.
func (b *Buzzer) HandleCommand(cmd mqtt.Command) {
	switch cmd.Name {
	case mqtt.CommandFeelNow:
		res := b.FeelNow(b.now())
		b.log.Info().Str("command", cmd.Name).Str("result", string(res)).Msg("mqtt command")
	default:
		b.log.Warn().Str("command", cmd.Name).Msg("unknown mqtt command")
	}
}

// Wait blocks until the pattern in flight, if any, has finished playing.
func (b *Buzzer) Wait() {
	b.exec.Wait()
}

func (b *Buzzer) start(src Source, now time.Time, s config.Settings) Result {
	hour, minute := now.Hour(), now.Minute()
	p := logic.BuildPattern(hour, minute, s.Clock, s.Timing)
	empty := p.IsEmpty()

	ev := mqtt.BuzzEvent{
		Timestamp:   now,
		Type:        mqtt.BuzzStart,
		RunID:       uuid.NewString(),
		Source:      string(src),
		Hour:        hour,
		Minute:      minute,
		Description: logic.DescribePattern(hour, minute, s.Clock),
		Pulses:      p.PulseCount(),
		Duration:    p.TotalDuration(),
	}
	log := b.log.With().
		Str("run_id", ev.RunID).
		Str("source", ev.Source).
		Str("time", fmt.Sprintf("%02d:%02d", hour, minute)).
		Logger()

	// BUZZ_DONE must not overtake BUZZ_START.
	started := make(chan struct{})

	b.tracker.SetBusy(true)
	accepted := b.exec.Execute(p, s.Clock.AudioEnabled, sequencer.Callbacks{
		OnPulse: func(_ logic.PulseKind, d time.Duration) {
			if err := b.output.Vibrate(d); err != nil {
				log.Warn().Err(err).Msg("vibrate failed")
			}
		},
		OnTone: func(kind logic.PulseKind, d time.Duration) {
			if err := b.output.Beep(toneHz(kind), d); err != nil {
				log.Warn().Err(err).Msg("beep failed")
			}
		},
		OnComplete: func() {
			if empty {
				return
			}
			<-started
			b.tracker.SetBusy(false)
			done := ev
			done.Type = mqtt.BuzzDone
			done.Timestamp = b.now()
			if err := b.publisher.Publish(done); err != nil {
				log.Warn().Err(err).Msg("publish error")
			}
			log.Debug().Msg("buzz done")
		},
	})

	switch {
	case !accepted:
		b.tracker.CountDropped()
		log.Info().Msg("buzz dropped, pattern already playing")
		return ResultBusy
	case empty:
		b.tracker.SetBusy(false)
		b.tracker.CountEmpty()
		log.Debug().Str("description", ev.Description).Msg("nothing to play")
		return ResultEmpty
	}

	b.tracker.RecordBuzz(status.Buzz{
		RunID:       ev.RunID,
		Source:      ev.Source,
		At:          now,
		Hour:        hour,
		Minute:      minute,
		Description: ev.Description,
		Duration:    ev.Duration,
	})
	log.Info().
		Str("description", ev.Description).
		Dur("duration", ev.Duration).
		Msg("buzz")
	if err := b.publisher.Publish(ev); err != nil {
		log.Warn().Err(err).Msg("publish error")
	}
	close(started)
	return ResultStarted
}

func toneHz(kind logic.PulseKind) int {
	if kind == logic.PulseLong {
		return ToneLongHz
	}
	return ToneShortHz
}

// Heartbeat contains information for a heartbeat event.
type Heartbeat struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    status.Counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (b *Buzzer) CheckHeartbeat(now time.Time, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if now.Sub(b.lastHeartbeat) < interval {
		return nil
	}

	b.lastHeartbeat = now
	return &Heartbeat{
		Timestamp: now,
		Uptime:    now.Sub(b.startTime),
		Counts:    b.tracker.Snapshot().Counts,
	}
}
