//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealOutput drives the motor and buzzer lines of an actual Raspberry Pi.
type RealOutput struct {
	chip   *gpiocdev.Chip
	motor  *gpiocdev.Line
	buzzer *gpiocdev.Line // nil when tones are disabled

	mu       sync.Mutex
	motorOff *time.Timer
	beepStop chan struct{}
	closed   bool
}

// NewRealOutput requests the motor pin, and the buzzer pin unless it is negative.
func NewRealOutput(pinMotor, pinBuzzer int) (*RealOutput, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	motor, err := chip.RequestLine(pinMotor, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request motor pin %d: %w", pinMotor, err)
	}

	var buzzer *gpiocdev.Line
	if pinBuzzer >= 0 {
		buzzer, err = chip.RequestLine(pinBuzzer, gpiocdev.AsOutput(0))
		if err != nil {
			motor.Close()
			chip.Close()
			return nil, fmt.Errorf("request buzzer pin %d: %w", pinBuzzer, err)
		}
	}

	return &RealOutput{
		chip:   chip,
		motor:  motor,
		buzzer: buzzer,
	}, nil
}

// Vibrate drives the motor line high and drops it again after d.
func (o *RealOutput) Vibrate(d time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errors.New("gpio: output closed")
	}

	if err := o.motor.SetValue(1); err != nil {
		return fmt.Errorf("motor on: %w", err)
	}
	if o.motorOff != nil {
		o.motorOff.Stop()
	}
	o.motorOff = time.AfterFunc(d, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if !o.closed {
			_ = o.motor.SetValue(0)
		}
	})
	return nil
}

// Beep bit-bangs a square wave on the buzzer line for d.
// It is a no-op when no buzzer pin was configured.
func (o *RealOutput) Beep(freqHz int, d time.Duration) error {
	if o.buzzer == nil {
		return nil
	}
	if freqHz <= 0 {
		return fmt.Errorf("beep frequency must be > 0, got %d", freqHz)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errors.New("gpio: output closed")
	}
	if o.beepStop != nil {
		close(o.beepStop)
	}
	stop := make(chan struct{})
	o.beepStop = stop

	go o.squareWave(time.Second/time.Duration(2*freqHz), d, stop)
	return nil
}

func (o *RealOutput) squareWave(half, d time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(half)
	defer ticker.Stop()
	end := time.NewTimer(d)
	defer end.Stop()
	defer o.buzzer.SetValue(0)

	level := 0
	for {
		select {
		case <-stop:
			return
		case <-end.C:
			return
		case <-ticker.C:
			level ^= 1
			if err := o.buzzer.SetValue(level); err != nil {
				return
			}
		}
	}
}

// Close switches both outputs off and releases GPIO resources.
// Pins are reconfigured to input with pull-down (matching Pi boot defaults)
// before closing so the motor cannot be left driven across a reboot.
func (o *RealOutput) Close() error {
	o.mu.Lock()
	o.closed = true
	if o.motorOff != nil {
		o.motorOff.Stop()
	}
	if o.beepStop != nil {
		close(o.beepStop)
		o.beepStop = nil
	}
	o.mu.Unlock()

	var errs []error
	for name, line := range map[string]*gpiocdev.Line{"motor": o.motor, "buzzer": o.buzzer} {
		if line == nil {
			continue
		}
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("%s off: %w", name, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
