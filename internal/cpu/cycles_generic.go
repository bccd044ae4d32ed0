//go:build !amd64 && !arm64

package cpu

const counterName = fallbackCounterName

// readCycleCounter falls back to the OS monotonic counter on platforms without
// assembly support. Returns nanoseconds since an arbitrary point in time.
func readCycleCounter() uint64 {
	return ReadOSCounter()
}
