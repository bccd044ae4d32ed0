//go:build linux || darwin

package cpu

import "golang.org/x/sys/unix"

// ReadOSCounter returns CLOCK_MONOTONIC_RAW in nanoseconds.
func ReadOSCounter() uint64 {
	var ts unix.Timespec

	// clock_gettime cannot fail for a valid clock id and a valid pointer.
	_ = unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts)

	return uint64(ts.Nano())
}

// OSCounterFrequency returns the fixed frequency of ReadOSCounter in Hz.
func OSCounterFrequency() uint64 {
	return 1_000_000_000
}
