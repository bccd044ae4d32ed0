// Package stats holds the display values derived from raw tick counts.
package stats

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/perfaware/timer"
)

// RunTime is a tick count paired with the frequency needed to turn it into
// wall time.
type RunTime struct {
	Ticks     float64
	Frequency uint64
}

// NewRunTime pairs ticks with a freshly estimated CPU timer frequency. This
// spins for timer.DefaultEstimateWait.
func NewRunTime(ticks uint64) RunTime {
	return WithFrequency(ticks, timer.EstimateCPUFrequency(timer.DefaultEstimateWait))
}

// WithFrequency pairs ticks with a known timer frequency.
func WithFrequency(ticks, frequency uint64) RunTime {
	return RunTime{Ticks: float64(ticks), Frequency: frequency}
}

// Average returns the mean run time of count runs totalling total ticks.
func Average(total, count, frequency uint64) RunTime {
	if count == 0 {
		return RunTime{Frequency: frequency}
	}

	return RunTime{Ticks: float64(total) / float64(count), Frequency: frequency}
}

// Seconds returns the run time in seconds, or 0 if the frequency is unknown.
func (r RunTime) Seconds() float64 {
	if r.Frequency == 0 {
		return 0
	}

	return r.Ticks / float64(r.Frequency)
}

// Milliseconds returns the run time in milliseconds.
func (r RunTime) Milliseconds() float64 {
	return r.Seconds() * 1000
}

// Elapsed converts the run time into a time.Duration.
func (r RunTime) Elapsed() time.Duration {
	return time.Duration(r.Seconds() * float64(time.Second))
}

// String formats as "<ticks> (<ms> ms)".
func (r RunTime) String() string {
	return fmt.Sprintf("%s (%.4f ms)", formatTicks(r.Ticks), r.Milliseconds())
}

func formatTicks(ticks float64) string {
	if ticks == math.Trunc(ticks) {
		return fmt.Sprintf("%.0f", ticks)
	}

	return fmt.Sprintf("%.1f", ticks)
}

// Throughput is an amount of data processed over a duration.
type Throughput struct {
	Bytes    uint64
	Duration time.Duration
}

// NewThroughput returns the throughput of processing bytes in run.
func NewThroughput(bytes uint64, run RunTime) Throughput {
	return Throughput{Bytes: bytes, Duration: run.Elapsed()}
}

// MB returns the data processed in MiB.
func (t Throughput) MB() float64 {
	return float64(t.Bytes) / 1024 / 1024
}

// GBPerSecond returns the throughput in GiB/s, or 0 for a zero duration.
func (t Throughput) GBPerSecond() float64 {
	if t.Duration <= 0 {
		return 0
	}

	return t.MB() / 1024 / t.Duration.Seconds()
}

// BytesPerSecond returns the throughput in bytes/s, or 0 for a zero duration.
func (t Throughput) BytesPerSecond() float64 {
	if t.Duration <= 0 {
		return 0
	}

	return float64(t.Bytes) / t.Duration.Seconds()
}

// String formats as "<GB/s> GB/s".
func (t Throughput) String() string {
	return fmt.Sprintf("%.2f GB/s", t.GBPerSecond())
}
