package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/cwbudde/perfaware/baseline"
	"github.com/cwbudde/perfaware/metrics"
	"github.com/cwbudde/perfaware/pagefault"
	"github.com/cwbudde/perfaware/repetition"
	"github.com/cwbudde/perfaware/timer"
)

// session is the measurement environment of one test command: a frequency
// estimated once, the configured fault probe, an optional metrics exporter
// and an optional baseline file.
type session struct {
	a         *app
	out       io.Writer
	frequency uint64
	probe     pagefault.Probe
	metrics   *metrics.Collector
	baseline  *baseline.Store
}

// newSession estimates the CPU timer frequency and starts the metrics server
// when one is configured. The server stops when ctx is done.
func (a *app) newSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	probe, err := a.cfg.Probe()
	if err != nil {
		return nil, err
	}

	freq := timer.MustEstimateCPUFrequency(a.cfg.EstimateWait)
	a.logger.Debug("estimated cpu timer frequency", "source", timer.Source(), "hz", freq)

	s := &session{
		a:         a,
		out:       cmd.OutOrStdout(),
		frequency: freq,
		probe:     probe,
	}

	if path := a.cfg.Baseline; path != "" {
		store, err := baseline.Load(path)
		if err != nil {
			return nil, err
		}

		a.logger.Debug("loaded baseline", "path", path, "entries", store.Len())
		s.baseline = store
	}

	if addr := a.cfg.MetricsAddr; addr != "" {
		reg := prometheus.NewRegistry()
		col := metrics.New()

		if err := col.Register(reg); err != nil {
			return nil, err
		}

		col.SetFrequency(freq)
		s.metrics = col

		go func() {
			if err := metrics.Serve(ctx, addr, reg); err != nil {
				a.logger.Error("metrics server stopped", "addr", addr, "error", err)
			}
		}()

		a.logger.Info("serving metrics", "addr", addr)
	}

	return s, nil
}

func (s *session) newTester(targetBytes uint64) *repetition.Tester {
	return repetition.New(targetBytes, s.frequency,
		repetition.WithTimeBudget(s.a.cfg.TimeBudget),
		repetition.WithFaultProbe(s.probe),
		repetition.WithOutput(s.out),
		repetition.WithLiveOutput(s.a.cfg.Live),
		repetition.WithLogger(s.a.logger.With("component", "repetition")),
	)
}

// benchmark is one named operation driven by a repetition tester.
type benchmark struct {
	name string
	run  func(t *repetition.Tester) error
}

// runTest drives t until it leaves the Testing state or ctx is done. A
// failing operation or a tester error ends the test with an error; an
// interrupted test reports nothing.
func (s *session) runTest(ctx context.Context, b benchmark, t *repetition.Tester) error {
	fmt.Fprintf(s.out, "\n%s\n", headingStyle.Render("--- "+b.name+" ---"))

	for ctx.Err() == nil && t.LoopTest() {
		if err := b.run(t); err != nil {
			return fmt.Errorf("%s: %w", b.name, err)
		}
	}

	if ctx.Err() != nil {
		fmt.Fprintln(s.out, "\ninterrupted")
		return nil
	}

	if s.metrics != nil {
		s.metrics.ObserveTester(b.name, t)
	}

	if t.State() == repetition.Error {
		return fmt.Errorf("%s: %w", b.name, t.Err())
	}

	return s.compareBaseline(b.name, t)
}

// compareBaseline prints the best run against the stored one and records it
// when it is faster.
func (s *session) compareBaseline(name string, t *repetition.Tester) error {
	if s.baseline == nil || t.Results().TestCount == 0 {
		return nil
	}

	key := baseline.Key{Test: name, TargetBytes: t.TargetBytes()}
	best := t.MinRunTime().Seconds()

	if prev, ok := s.baseline.Lookup(key); ok {
		delta, _ := s.baseline.Compare(key, best)
		fmt.Fprintf(s.out, "Baseline: %.4f ms (%+.2f%%)\n", prev.MinSeconds*1000, delta*100)
	} else {
		fmt.Fprintln(s.out, "Baseline: none")
	}

	_, err := s.baseline.Record(key, best, time.Now())

	return err
}

// close saves the baseline file when one is configured.
func (s *session) close() error {
	if s.baseline == nil {
		return nil
	}

	if err := s.baseline.Save(s.a.cfg.Baseline); err != nil {
		return err
	}

	s.a.logger.Debug("saved baseline", "path", s.a.cfg.Baseline, "entries", s.baseline.Len())

	return nil
}

// runWaves runs every benchmark once per wave, re-arming each tester with
// NewWave after the first. waves <= 0 repeats until ctx is done.
func (s *session) runWaves(ctx context.Context, targetBytes uint64, benches []benchmark, waves int) (err error) {
	defer func() {
		err = errors.Join(err, s.close())
	}()

	testers := make([]*repetition.Tester, len(benches))

	for wave := 0; waves <= 0 || wave < waves; wave++ {
		for i, b := range benches {
			if ctx.Err() != nil {
				return nil
			}

			if testers[i] == nil {
				testers[i] = s.newTester(targetBytes)
			} else {
				testers[i].NewWave(targetBytes, s.frequency, s.a.cfg.TimeBudget)
			}

			if err := s.runTest(ctx, b, testers[i]); err != nil {
				return err
			}
		}
	}

	return nil
}

// selectBenchmarks filters benches by a comma-separated list of names, "all"
// selecting every one.
func selectBenchmarks(benches []benchmark, list string) ([]benchmark, error) {
	if list == "" || list == "all" {
		return benches, nil
	}

	var selected []benchmark

	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		found := false

		for _, b := range benches {
			if b.name == name {
				selected = append(selected, b)
				found = true

				break
			}
		}

		if !found {
			return nil, fmt.Errorf("unknown test %q (want %s)", name, benchmarkNames(benches))
		}
	}

	if len(selected) == 0 {
		return nil, errors.New("no tests selected")
	}

	return selected, nil
}

func benchmarkNames(benches []benchmark) string {
	names := make([]string, len(benches))
	for i, b := range benches {
		names[i] = b.name
	}

	return strings.Join(names, ", ")
}
