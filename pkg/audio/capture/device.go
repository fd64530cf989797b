package capture

import "errors"

// Acquisition failure kinds. Callers use these for user-facing messaging; the
// capture layer never retries on its own.
var (
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrDeviceUnavailable = errors.New("microphone is in use by another process")
	ErrNoDevice          = errors.New("no microphone found")
)

// Device is a mono float32 capture source.
type Device interface {
	// Start acquires the device and begins invoking onBlock once per captured
	// block of samples.
	Start(onBlock func(samples []float32)) error

	// SampleRate reports the capture rate in Hz.
	SampleRate() int

	// Stop releases the device. Safe to call multiple times and safe to call
	// when never started.
	Stop() error
}
