// Package timer exposes the clock primitives every measurement in perfaware is
// built on: the hardware cycle counter, the OS monotonic counter, and an
// estimate of the cycle counter frequency obtained by racing the two.
//
// Cycle counter values are opaque ticks. Only deltas taken within one process
// run are meaningful, and the frequency has to be estimated again every run.
package timer

import (
	"errors"
	"fmt"
	"math/bits"
	"time"

	"github.com/cwbudde/perfaware/internal/cpu"
)

// DefaultEstimateWait is the wall-clock window EstimateCPUFrequency spins for.
const DefaultEstimateWait = 100 * time.Millisecond

// ErrNoFrequency is the panic value of MustEstimateCPUFrequency when the OS
// timer never advanced.
var ErrNoFrequency = errors.New("perfaware/timer: could not estimate CPU timer frequency")

// Clock is a pair of counters: a fine-grained CPU counter and an OS counter
// with a known fixed frequency.
type Clock interface {
	CPUTicks() uint64
	OSTicks() uint64
	OSFrequency() uint64
}

type systemClock struct{}

func (systemClock) CPUTicks() uint64    { return cpu.ReadCycleCounter() }
func (systemClock) OSTicks() uint64     { return cpu.ReadOSCounter() }
func (systemClock) OSFrequency() uint64 { return cpu.OSCounterFrequency() }

// System is the Clock backed by the hardware counter of the running CPU.
var System Clock = systemClock{}

// ReadCPUTicks reads the finest-grained hardware cycle counter available.
func ReadCPUTicks() uint64 {
	return cpu.ReadCycleCounter()
}

// ReadOSTicks reads the platform monotonic counter.
func ReadOSTicks() uint64 {
	return cpu.ReadOSCounter()
}

// OSTickFrequency returns the fixed frequency of ReadOSTicks in Hz.
func OSTickFrequency() uint64 {
	return cpu.OSCounterFrequency()
}

// Source names the counter behind ReadCPUTicks ("rdtsc", "cntvct_el0" or
// "monotonic").
func Source() string {
	return cpu.CounterName()
}

// EstimateCPUFrequency estimates the frequency of ReadCPUTicks in Hz by spinning
// on the OS timer for wait. It returns 0 if the OS timer did not advance.
func EstimateCPUFrequency(wait time.Duration) uint64 {
	return EstimateFrequency(System, wait)
}

// MustEstimateCPUFrequency is like EstimateCPUFrequency but panics with
// ErrNoFrequency instead of returning 0.
func MustEstimateCPUFrequency(wait time.Duration) uint64 {
	freq := EstimateCPUFrequency(wait)
	if freq == 0 {
		panic(fmt.Errorf("%w: OS timer did not advance within %v", ErrNoFrequency, wait))
	}

	return freq
}

// EstimateFrequency races c's CPU counter against its OS counter for wait and
// returns the CPU counter frequency in Hz, or 0 if no OS ticks elapsed.
//
// A clock whose OS counter stops advancing is abandoned after a wall-clock
// watchdog of 2*wait+10ms.
func EstimateFrequency(c Clock, wait time.Duration) uint64 {
	osFreq := c.OSFrequency()
	osWait := mulDiv(osFreq, uint64(wait), uint64(time.Second))

	cpuStart := c.CPUTicks()
	osStart := c.OSTicks()

	var osElapsed uint64

	deadline := time.Now().Add(2*wait + 10*time.Millisecond)

	for spins := 0; osElapsed < osWait; spins++ {
		osElapsed = c.OSTicks() - osStart

		if spins&1023 == 1023 && time.Now().After(deadline) {
			break
		}
	}

	cpuElapsed := c.CPUTicks() - cpuStart

	if osElapsed == 0 {
		return 0
	}

	return mulDiv(osFreq, cpuElapsed, osElapsed)
}

// mulDiv computes a*b/d with a 128-bit intermediate product.
func mulDiv(a, b, d uint64) uint64 {
	if d == 0 {
		return 0
	}

	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return uint64(float64(a) * float64(b) / float64(d))
	}

	q, _ := bits.Div64(hi, lo, d)

	return q
}

// TicksFor converts a wall-clock duration into ticks at the given frequency.
func TicksFor(d time.Duration, frequency uint64) uint64 {
	if d <= 0 {
		return 0
	}

	return mulDiv(frequency, uint64(d), uint64(time.Second))
}
