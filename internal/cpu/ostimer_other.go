//go:build !linux && !darwin

package cpu

import "time"

// osEpoch is the reference point for OS counter values.
var osEpoch = time.Now()

// ReadOSCounter returns monotonic nanoseconds since package initialization.
func ReadOSCounter() uint64 {
	return uint64(time.Since(osEpoch).Nanoseconds())
}

// OSCounterFrequency returns the fixed frequency of ReadOSCounter in Hz.
func OSCounterFrequency() uint64 {
	return 1_000_000_000
}
