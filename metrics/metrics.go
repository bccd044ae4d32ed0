// Package metrics publishes repetition test results as Prometheus gauges so a
// long-running benchmark can be watched from outside the process.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwbudde/perfaware/repetition"
	"github.com/cwbudde/perfaware/stats"
)

const namespace = "perfaware"

// Collector holds the gauges for every named repetition test.
type Collector struct {
	MinSeconds         *prometheus.GaugeVec
	MaxSeconds         *prometheus.GaugeVec
	AvgSeconds         *prometheus.GaugeVec
	Iterations         *prometheus.GaugeVec
	BestBytesPerSecond *prometheus.GaugeVec
	PageFaults         *prometheus.GaugeVec
	TimerFrequency     prometheus.Gauge
}

// New creates the gauges. They are not registered yet.
func New() *Collector {
	vec := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "repetition",
			Name:      name,
			Help:      help,
		}, []string{"test"})
	}

	return &Collector{
		MinSeconds:         vec("min_seconds", "Fastest iteration of the test."),
		MaxSeconds:         vec("max_seconds", "Slowest iteration of the test."),
		AvgSeconds:         vec("avg_seconds", "Mean iteration time of the test."),
		Iterations:         vec("iterations", "Iterations folded into the results."),
		BestBytesPerSecond: vec("best_bytes_per_second", "Throughput of the fastest iteration."),
		PageFaults:         vec("page_faults", "Page faults taken by the fastest iteration."),
		TimerFrequency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "timer",
			Name:      "frequency_hz",
			Help:      "Estimated frequency of the CPU cycle counter.",
		}),
	}
}

// Register registers every gauge with reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		c.MinSeconds, c.MaxSeconds, c.AvgSeconds,
		c.Iterations, c.BestBytesPerSecond, c.PageFaults,
		c.TimerFrequency,
	}

	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	return nil
}

// SetFrequency publishes the estimated timer frequency.
func (c *Collector) SetFrequency(hz uint64) {
	c.TimerFrequency.Set(float64(hz))
}

// ObserveRepetition publishes the results of the test named test. Nothing is
// published before the first iteration.
func (c *Collector) ObserveRepetition(test string, r repetition.Results, targetBytes, frequency uint64) {
	if r.TestCount == 0 {
		return
	}

	minRun := stats.WithFrequency(r.MinTime, frequency)

	c.MinSeconds.WithLabelValues(test).Set(minRun.Seconds())
	c.MaxSeconds.WithLabelValues(test).Set(stats.WithFrequency(r.MaxTime, frequency).Seconds())
	c.AvgSeconds.WithLabelValues(test).Set(stats.Average(r.TotalTime, r.TestCount, frequency).Seconds())
	c.Iterations.WithLabelValues(test).Set(float64(r.TestCount))
	c.BestBytesPerSecond.WithLabelValues(test).Set(stats.NewThroughput(targetBytes, minRun).BytesPerSecond())
	c.PageFaults.WithLabelValues(test).Set(float64(r.PageFaultsAtMin))
}

// ObserveTester publishes the current results of t.
func (c *Collector) ObserveTester(test string, t *repetition.Tester) {
	c.ObserveRepetition(test, t.Results(), t.TargetBytes(), t.Frequency())
}

// Serve exposes the metrics gathered by g on addr under /metrics until ctx is
// cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)

	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}

		return nil
	}
}
