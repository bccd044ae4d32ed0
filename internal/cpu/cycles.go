package cpu

// ReadCycleCounter reads the CPU's cycle counter (TSC on x86, CNTVCT on ARM).
// Values are only meaningful as deltas within one process run.
// On platforms without assembly support, falls back to the OS monotonic counter.
func ReadCycleCounter() uint64 {
	return readCycleCounter()
}

// CyclesSince returns the number of cycles elapsed since the given start cycle count.
func CyclesSince(start uint64) uint64 {
	return ReadCycleCounter() - start
}

// CounterName returns the name of the hardware counter backing ReadCycleCounter.
func CounterName() string {
	return counterName
}

// IsHighPrecision reports whether ReadCycleCounter is backed by a hardware counter
// rather than the OS clock fallback.
func IsHighPrecision() bool {
	return counterName != fallbackCounterName
}

const fallbackCounterName = "monotonic"
