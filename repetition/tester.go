// Package repetition measures the steady-state cost of a repeated operation.
//
// A Tester runs the measured region over and over and keeps the fastest run.
// Noise from the OS and other processes only ever makes a run slower, so the
// minimum converges on the undisturbed cost. The test completes once no new
// minimum has appeared for a whole time budget:
//
//	tester := repetition.New(uint64(len(buf)), freq)
//	for tester.LoopTest() {
//		tester.Begin()
//		n := work(buf)
//		tester.End()
//		tester.CountBytes(uint64(n))
//	}
package repetition

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/muesli/termenv"

	"github.com/cwbudde/perfaware/pagefault"
	"github.com/cwbudde/perfaware/timer"
)

// DefaultTimeBudget is how long a wave keeps going without a new minimum.
const DefaultTimeBudget = 10 * time.Second

// State is the phase of a Tester.
type State int

const (
	// Testing means LoopTest will keep returning true.
	Testing State = iota
	// Error means a protocol violation stopped the test.
	Error
	// Completed means no new minimum appeared within the time budget.
	Completed
)

func (s State) String() string {
	switch s {
	case Testing:
		return "testing"
	case Error:
		return "error"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Results are the best-ever statistics of a Tester. All times are in ticks.
type Results struct {
	TestCount uint64
	TotalTime uint64
	MaxTime   uint64
	// MinTime is math.MaxUint64 until the first iteration completes.
	MinTime         uint64
	PageFaultsAtMin uint64
	TotalPageFaults uint64
}

// AverageTime returns TotalTime/TestCount, or 0 before the first iteration.
func (r Results) AverageTime() float64 {
	if r.TestCount == 0 {
		return 0
	}

	return float64(r.TotalTime) / float64(r.TestCount)
}

// Tester drives one benchmark target. It is not safe for concurrent use.
type Tester struct {
	targetBytes uint64
	frequency   uint64
	budget      time.Duration
	budgetTicks uint64

	// lastImprovement is the tick at which the wave started or the minimum
	// last dropped.
	lastImprovement uint64

	openBlocks   uint64
	closedBlocks uint64
	timeAccum    uint64
	bytesAccum   uint64
	faultsAccum  uint64

	state   State
	err     error
	results Results

	clock         timer.Clock
	probe         pagefault.Probe
	faultsEnabled bool
	out           io.Writer
	term          *termenv.Output
	live          bool
	log           *slog.Logger
}

// Option configures a Tester.
type Option func(*Tester)

// WithTimeBudget sets how long a wave may go without a new minimum.
func WithTimeBudget(d time.Duration) Option {
	return func(t *Tester) {
		t.budget = d
	}
}

// WithClock reads ticks from c instead of timer.System.
func WithClock(c timer.Clock) Option {
	return func(t *Tester) {
		t.clock = c
	}
}

// WithFaultProbe counts page faults with p. nil disables fault tracking.
func WithFaultProbe(p pagefault.Probe) Option {
	return func(t *Tester) {
		t.probe = p
	}
}

// WithOutput sets where progress and the final report are written.
func WithOutput(w io.Writer) Option {
	return func(t *Tester) {
		t.out = w
	}
}

// WithLiveOutput toggles the in-place progress line.
func WithLiveOutput(on bool) Option {
	return func(t *Tester) {
		t.live = on
	}
}

// WithLogger sets the logger diagnostics go to.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tester) {
		t.log = l
	}
}

// New returns a Tester in the Testing state for an operation that processes
// targetBytes per iteration, timed by a counter running at frequency Hz.
func New(targetBytes, frequency uint64, opts ...Option) *Tester {
	t := &Tester{
		targetBytes: targetBytes,
		frequency:   frequency,
		budget:      DefaultTimeBudget,
		clock:       timer.System,
		probe:       pagefault.Default,
		out:         os.Stdout,
		live:        true,
		log:         slog.Default(),
		results:     Results{MinTime: math.MaxUint64},
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.budget <= 0 {
		t.budget = DefaultTimeBudget
	}

	if t.out == nil {
		t.out = io.Discard
	}

	t.budgetTicks = timer.TicksFor(t.budget, t.frequency)
	t.term = termenv.NewOutput(t.out)

	if t.probe != nil {
		if _, err := t.probe.Count(); err != nil {
			t.log.Warn("page fault probe unavailable, fault metrics disabled", "error", err)
		} else {
			t.faultsEnabled = true
		}
	}

	t.lastImprovement = t.clock.CPUTicks()

	return t
}

// NewWave re-arms the tester for another run against the same target and
// frequency, keeping the best-ever results. A mismatch moves it to Error.
// A non-positive budget means DefaultTimeBudget.
func (t *Tester) NewWave(targetBytes, frequency uint64, budget time.Duration) {
	t.state = Testing
	t.err = nil

	if targetBytes != t.targetBytes {
		t.fail(fmt.Errorf("%w: target byte count %d, was %d", ErrWaveMismatch, targetBytes, t.targetBytes))
	}

	if frequency != t.frequency {
		t.fail(fmt.Errorf("%w: timer frequency %d, was %d", ErrWaveMismatch, frequency, t.frequency))
	}

	if budget <= 0 {
		budget = DefaultTimeBudget
	}

	t.budget = budget
	t.budgetTicks = timer.TicksFor(budget, t.frequency)
	t.resetIteration()
	t.lastImprovement = t.clock.CPUTicks()
}

// Begin opens a measured block.
func (t *Tester) Begin() {
	t.openBlocks++

	// readFaults may reset faultsAccum, so read it before updating.
	faults := t.readFaults()
	t.faultsAccum -= faults
	t.timeAccum -= t.clock.CPUTicks()
}

// End closes the block opened by the matching Begin.
func (t *Tester) End() {
	t.timeAccum += t.clock.CPUTicks()

	faults := t.readFaults()
	t.faultsAccum += faults
	t.closedBlocks++
}

// CountBytes declares bytes processed during this iteration.
func (t *Tester) CountBytes(n uint64) {
	t.bytesAccum += n
}

func (t *Tester) readFaults() uint64 {
	if !t.faultsEnabled {
		return 0
	}

	n, err := t.probe.Count()
	if err != nil {
		// Unbalanced reads would corrupt the accumulator, so stop counting
		// for good and drop what this iteration collected.
		t.faultsEnabled = false
		t.faultsAccum = 0
		t.log.Warn("page fault probe failed, fault metrics disabled", "error", err)

		return 0
	}

	return n
}

// LoopTest folds the iteration that just finished into the results and
// reports whether the caller should run another one.
func (t *Tester) LoopTest() bool {
	if t.state != Testing {
		return false
	}

	now := t.clock.CPUTicks()

	if t.openBlocks > 0 || t.closedBlocks > 0 {
		if t.openBlocks != t.closedBlocks {
			t.fail(fmt.Errorf("%w: %d begin, %d end", ErrUnbalancedBlocks, t.openBlocks, t.closedBlocks))
		}

		if t.bytesAccum != t.targetBytes {
			t.fail(fmt.Errorf("%w: %d vs %d", ErrByteCountMismatch, t.bytesAccum, t.targetBytes))
		}

		if t.state == Testing {
			t.record(t.timeAccum, t.faultsAccum, now)
		}

		t.resetIteration()
	}

	if t.state == Testing && now-t.lastImprovement > t.budgetTicks {
		t.state = Completed
		t.printResults()
	}

	return t.state == Testing
}

func (t *Tester) record(elapsed, faults, now uint64) {
	r := &t.results
	r.TestCount++
	r.TotalTime += elapsed
	r.TotalPageFaults += faults
	r.MaxTime = max(r.MaxTime, elapsed)

	if elapsed < r.MinTime {
		r.MinTime = elapsed
		r.PageFaultsAtMin = faults
		t.lastImprovement = now

		t.printNewMin()
	}
}

func (t *Tester) resetIteration() {
	t.openBlocks = 0
	t.closedBlocks = 0
	t.timeAccum = 0
	t.bytesAccum = 0
	t.faultsAccum = 0
}

func (t *Tester) fail(err error) {
	t.state = Error
	t.err = errors.Join(t.err, err)
	t.log.Error("repetition test stopped", "error", err)
}

// State returns the current phase.
func (t *Tester) State() State {
	return t.state
}

// Err returns the protocol violations that moved the tester into Error, or nil.
func (t *Tester) Err() error {
	return t.err
}

// Results returns the best-ever statistics. They stay valid after Error.
func (t *Tester) Results() Results {
	return t.results
}

// TargetBytes returns the byte count every iteration must process.
func (t *Tester) TargetBytes() uint64 {
	return t.targetBytes
}

// Frequency returns the tick frequency the tester converts times with.
func (t *Tester) Frequency() uint64 {
	return t.frequency
}

// FaultsEnabled reports whether page faults are being counted.
func (t *Tester) FaultsEnabled() bool {
	return t.faultsEnabled
}
