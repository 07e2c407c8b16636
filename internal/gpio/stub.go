//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// NewRealOutput returns an error on non-Linux platforms.
func NewRealOutput(pinMotor, pinBuzzer int) (*RealOutput, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Vibrate is not implemented on non-Linux platforms.
func (o *RealOutput) Vibrate(d time.Duration) error {
	return errors.New("gpio: not supported")
}

// Beep is not implemented on non-Linux platforms.
func (o *RealOutput) Beep(freqHz int, d time.Duration) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (o *RealOutput) Close() error {
	return nil
}
