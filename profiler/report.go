package profiler

import (
	"fmt"
	"io"
	"strings"

	"github.com/cwbudde/perfaware/stats"
)

// Aggregate is the per-label summary of every span sharing that label.
type Aggregate struct {
	Label    string
	HitCount uint64
	// Inclusive is the sum of End-Start over all spans with this label.
	Inclusive uint64
	// Exclusive is Inclusive minus the time attributed to direct children.
	Exclusive uint64
	// Depth is the ancestor depth of the first span with this label.
	Depth    int
	Bytes    uint64
	Function bool
}

// Report is the aggregated result of one profiling run.
type Report struct {
	// Aggregates are in the order their labels were first seen.
	Aggregates []Aggregate
	TotalTicks uint64
	Frequency  uint64
}

// Summarize groups closed spans by label. It panics with ErrOpenSpans if a
// span was never closed.
func Summarize(spans []Span, totalTicks, frequency uint64) *Report {
	r := &Report{TotalTicks: totalTicks, Frequency: frequency}
	index := make(map[string]int)
	children := make([]uint64, 0, len(spans))

	for _, span := range spans {
		if !span.Closed {
			panic(fmt.Errorf("%w: %q", ErrOpenSpans, span.Label))
		}

		i, ok := index[span.Label]
		if !ok {
			i = len(r.Aggregates)
			index[span.Label] = i
			r.Aggregates = append(r.Aggregates, Aggregate{
				Label:    span.Label,
				Depth:    span.Depth,
				Function: span.Function,
			})
			children = append(children, 0)
		}

		agg := &r.Aggregates[i]
		agg.HitCount++
		agg.Inclusive += span.Ticks()
		agg.Bytes += span.Bytes
		children[i] += span.ChildTicks
	}

	for i := range r.Aggregates {
		agg := &r.Aggregates[i]
		if children[i] < agg.Inclusive {
			agg.Exclusive = agg.Inclusive - children[i]
		}
	}

	return r
}

// Lookup returns the aggregate for label.
func (r *Report) Lookup(label string) (Aggregate, bool) {
	for _, agg := range r.Aggregates {
		if agg.Label == label {
			return agg, true
		}
	}

	return Aggregate{}, false
}

// Merge folds other into r: hit counts, ticks and bytes are summed per label,
// labels new to r are appended in other's order, and total ticks add up.
func (r *Report) Merge(other *Report) {
	for _, agg := range other.Aggregates {
		merged := false

		for i := range r.Aggregates {
			if r.Aggregates[i].Label == agg.Label {
				r.Aggregates[i].HitCount += agg.HitCount
				r.Aggregates[i].Inclusive += agg.Inclusive
				r.Aggregates[i].Exclusive += agg.Exclusive
				r.Aggregates[i].Bytes += agg.Bytes
				merged = true

				break
			}
		}

		if !merged {
			r.Aggregates = append(r.Aggregates, agg)
		}
	}

	r.TotalTicks += other.TotalTicks
	if r.Frequency == 0 {
		r.Frequency = other.Frequency
	}
}

func (r *Report) percent(ticks uint64) float64 {
	if r.TotalTicks == 0 {
		return 0
	}

	return 100 * float64(ticks) / float64(r.TotalTicks)
}

// String renders the report as WriteTo does.
func (r *Report) String() string {
	var b strings.Builder

	for _, agg := range r.Aggregates {
		b.WriteString(strings.Repeat("\t", agg.Depth))
		fmt.Fprintf(&b, "%s[%d] took %s (%.2f%%",
			agg.Label, agg.HitCount, stats.WithFrequency(agg.Exclusive, r.Frequency), r.percent(agg.Exclusive))

		if agg.Exclusive != agg.Inclusive {
			fmt.Fprintf(&b, " | %.2f%% w/ children", r.percent(agg.Inclusive))
		}

		b.WriteString(")")

		if agg.Bytes > 0 {
			tp := stats.NewThroughput(agg.Bytes, stats.WithFrequency(agg.Inclusive, r.Frequency))
			fmt.Fprintf(&b, " %.3fMB at %s", tp.MB(), tp)
		}

		b.WriteString("\n")
	}

	total := stats.WithFrequency(r.TotalTicks, r.Frequency)
	fmt.Fprintf(&b, "program took %.4fms (%d cycles)\n", total.Milliseconds(), r.TotalTicks)

	return b.String()
}

// WriteTo writes one line per label, indented by depth, followed by the total.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, r.String())

	return int64(n), err
}
