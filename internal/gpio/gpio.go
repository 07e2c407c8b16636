// Package gpio drives the tally clock's output hardware.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Output is the pair of physical capabilities a pattern is played on.
// Both calls return as soon as the output has been started; the hardware
// is switched off again after d without further calls.
type Output interface {
	// Vibrate runs the haptic motor for d.
	Vibrate(d time.Duration) error

	// Beep sounds the buzzer at freqHz for d.
	Beep(freqHz int, d time.Duration) error

	// Close releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinMotor  = 18 // vibration motor driver
	DefaultPinBuzzer = 13 // passive piezo buzzer, -1 disables tones
)
