package profiler

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/cwbudde/perfaware/timer"
)

// Span is one timed execution of a labeled region.
type Span struct {
	Label string
	Start uint64
	End   uint64
	// Closed is set once End is valid.
	Closed bool
	// Depth is the number of open ancestors when the span was pushed.
	Depth int
	// Parent is the index of the enclosing span in the log, or -1 at root.
	Parent int
	// ChildTicks is the time attributed to direct children.
	ChildTicks uint64
	// Bytes is the amount of data the region declared it processes.
	Bytes uint64
	// Function marks spans opened by Func.
	Function bool
}

// Ticks returns End-Start of a closed span.
func (s Span) Ticks() uint64 {
	return s.End - s.Start
}

// Profiler records spans and the global run window.
type Profiler struct {
	clock        timer.Clock
	out          io.Writer
	frequency    uint64
	estimateWait time.Duration

	start uint64
	end   uint64
	run   uint64
	spans []Span
	stack []int

	funcLabels map[uintptr]string
}

// Option configures a Profiler.
type Option func(*Profiler)

// WithClock reads ticks from c instead of timer.System.
func WithClock(c timer.Clock) Option {
	return func(p *Profiler) {
		p.clock = c
	}
}

// WithFrequency fixes the tick frequency used by the report instead of
// estimating it in End.
func WithFrequency(hz uint64) Option {
	return func(p *Profiler) {
		p.frequency = hz
	}
}

// WithOutput sets where End writes the report. nil disables printing.
func WithOutput(w io.Writer) Option {
	return func(p *Profiler) {
		p.out = w
	}
}

// WithEstimateWait sets how long End spends estimating the tick frequency.
func WithEstimateWait(d time.Duration) Option {
	return func(p *Profiler) {
		p.estimateWait = d
	}
}

// New returns a Profiler that prints its report to stdout.
func New(opts ...Option) *Profiler {
	p := &Profiler{
		clock:        timer.System,
		out:          os.Stdout,
		estimateWait: timer.DefaultEstimateWait,
		funcLabels:   make(map[uintptr]string),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start resets the span log and call stack and records the global start tick.
// Handles from earlier runs no longer close anything.
func (p *Profiler) Start() {
	p.spans = p.spans[:0]
	p.stack = p.stack[:0]
	p.end = 0
	p.run++
	p.start = p.clock.CPUTicks()
}

// Handle identifies a span opened by Push.
type Handle struct {
	p     *Profiler
	run   uint64
	index int
}

// Close closes the span. It is equivalent to calling Close on the profiler
// that opened it.
func (h Handle) Close() {
	if h.p == nil {
		panic(fmt.Errorf("%w: zero handle", ErrUnknownSpan))
	}

	h.p.Close(h)
}

// Push opens a span labeled label as a child of the innermost open span.
func (p *Profiler) Push(label string) Handle {
	return p.push(label, 0, false)
}

// PushBytes is like Push and declares that the region processes bytes bytes.
func (p *Profiler) PushBytes(label string, bytes uint64) Handle {
	return p.push(label, bytes, false)
}

func (p *Profiler) push(label string, bytes uint64, function bool) Handle {
	parent := -1
	if n := len(p.stack); n > 0 {
		parent = p.stack[n-1]
	}

	index := len(p.spans)
	p.spans = append(p.spans, Span{
		Label:    label,
		Depth:    len(p.stack),
		Parent:   parent,
		Bytes:    bytes,
		Function: function,
	})
	p.stack = append(p.stack, index)

	// Read the counter last so bookkeeping is not charged to the span.
	p.spans[index].Start = p.clock.CPUTicks()

	return Handle{p: p, run: p.run, index: index}
}

// Close records the end tick of h. h must be the innermost open span.
func (p *Profiler) Close(h Handle) {
	end := p.clock.CPUTicks()

	if h.p != p || h.run != p.run || h.index < 0 || h.index >= len(p.spans) || p.spans[h.index].Closed {
		panic(fmt.Errorf("%w: handle %d", ErrUnknownSpan, h.index))
	}

	top := len(p.stack) - 1
	if top < 0 || p.stack[top] != h.index {
		panic(fmt.Errorf("%w: closing %q while %q is still open",
			ErrUnbalancedClose, p.spans[h.index].Label, p.innermost()))
	}

	p.stack = p.stack[:top]

	span := &p.spans[h.index]
	span.End = end
	span.Closed = true

	if span.Parent >= 0 {
		p.spans[span.Parent].ChildTicks += end - span.Start
	}
}

// Zone opens a span and returns the function that closes it, for use with
// defer:
//
//	defer p.Zone("lookup")()
func (p *Profiler) Zone(label string) func() {
	return p.Push(label).Close
}

// ZoneBytes is Zone for a region that processes bytes bytes.
func (p *Profiler) ZoneBytes(label string, bytes uint64) func() {
	return p.PushBytes(label, bytes).Close
}

// Func opens a span labeled with the name of the calling function.
//
//	defer p.Func()()
func (p *Profiler) Func() func() {
	var pcs [1]uintptr
	runtime.Callers(2, pcs[:])

	return p.push(p.funcLabel(pcs[0]), 0, true).Close
}

func (p *Profiler) funcLabel(pc uintptr) string {
	if label, ok := p.funcLabels[pc]; ok {
		return label
	}

	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()

	label := frame.Function
	if label == "" {
		label = "unknown"
	}

	if i := strings.LastIndexByte(label, '/'); i >= 0 {
		label = label[i+1:]
	}

	p.funcLabels[pc] = label

	return label
}

// Open returns the number of spans currently open.
func (p *Profiler) Open() int {
	return len(p.stack)
}

// Spans returns a copy of the span log.
func (p *Profiler) Spans() []Span {
	out := make([]Span, len(p.spans))
	copy(out, p.spans)

	return out
}

// End records the global end tick, aggregates the span log and writes the
// report. It panics with ErrOpenSpans if any span is still open, and with
// timer.ErrNoFrequency if no frequency was given and none can be estimated.
func (p *Profiler) End() *Report {
	if n := len(p.stack); n > 0 {
		panic(fmt.Errorf("%w: %d open, innermost %q", ErrOpenSpans, n, p.innermost()))
	}

	p.end = p.clock.CPUTicks()

	freq := p.frequency
	if freq == 0 {
		freq = timer.EstimateFrequency(p.clock, p.estimateWait)
	}

	if freq == 0 {
		panic(fmt.Errorf("%w: OS timer did not advance within %v", timer.ErrNoFrequency, p.estimateWait))
	}

	report := Summarize(p.spans, p.end-p.start, freq)

	if p.out != nil {
		_, _ = report.WriteTo(p.out)
	}

	return report
}

func (p *Profiler) innermost() string {
	if n := len(p.stack); n > 0 {
		return p.spans[p.stack[n-1]].Label
	}

	return ""
}
