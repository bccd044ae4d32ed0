package repetition

import (
	"fmt"

	"github.com/cwbudde/perfaware/pagefault"
	"github.com/cwbudde/perfaware/stats"
)

// MinRunTime returns the fastest iteration, or zero before the first one.
func (t *Tester) MinRunTime() stats.RunTime {
	if t.results.TestCount == 0 {
		return stats.WithFrequency(0, t.frequency)
	}

	return stats.WithFrequency(t.results.MinTime, t.frequency)
}

// MaxRunTime returns the slowest iteration.
func (t *Tester) MaxRunTime() stats.RunTime {
	return stats.WithFrequency(t.results.MaxTime, t.frequency)
}

// AvgRunTime returns the mean iteration time.
func (t *Tester) AvgRunTime() stats.RunTime {
	return stats.Average(t.results.TotalTime, t.results.TestCount, t.frequency)
}

func (t *Tester) throughput(run stats.RunTime) stats.Throughput {
	return stats.NewThroughput(t.targetBytes, run)
}

// printNewMin redraws the progress line in place.
func (t *Tester) printNewMin() {
	if !t.live {
		return
	}

	run := t.MinRunTime()

	t.term.ClearLine()
	fmt.Fprintf(t.term, "\rMin: Took %s at %s", run, t.throughput(run))
}

func (t *Tester) printResults() {
	if t.live {
		t.term.ClearLine()
		fmt.Fprint(t.term, "\r")
	}

	minRun, maxRun, avgRun := t.MinRunTime(), t.MaxRunTime(), t.AvgRunTime()

	fmt.Fprintf(t.out, "Min: %s at %s\n", minRun, t.throughput(minRun))
	fmt.Fprintf(t.out, "Max: %s at %s\n", maxRun, t.throughput(maxRun))
	fmt.Fprintf(t.out, "Avg: %s at %s\n", avgRun, t.throughput(avgRun))

	if !t.faultsEnabled {
		fmt.Fprintln(t.out, "Page faults: unavailable")
		return
	}

	faults := t.results.PageFaultsAtMin
	fmt.Fprintf(t.out, "Page faults: %d (%.2fMB)\n", faults, pagefault.TouchedMB(faults))
}
