package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cwbudde/perfaware/pagefault"
	"github.com/cwbudde/perfaware/repetition"
)

func newTouchCmd(a *app) *cobra.Command {
	var (
		size  string
		waves int
		tests string
	)

	cmd := &cobra.Command{
		Use:   "touch",
		Short: "Measure writing every byte of a buffer",
		Long: `touch writes every byte of a buffer, either freshly mapped for each
iteration ("write+map", every page faults) or allocated once and reused
("write").`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			n, err := humanize.ParseBytes(size)
			if err != nil {
				return fmt.Errorf("invalid --size: %w", err)
			}

			if n == 0 {
				return fmt.Errorf("invalid --size: must be positive")
			}

			benches, err := selectBenchmarks(touchBenchmarks(int(n)), tests)
			if err != nil {
				return err
			}

			s, err := a.newSession(ctx, cmd)
			if err != nil {
				return err
			}

			fmt.Fprintf(s.out, "buffer: %s (%s pages)\n", humanize.IBytes(n),
				humanize.Comma(int64(n/pagefault.PageSize())))

			return s.runWaves(ctx, n, benches, waves)
		},
	}

	cmd.Flags().StringVar(&size, "size", "256MiB", "buffer size, e.g. 64KiB or 1GB")
	cmd.Flags().IntVar(&waves, "waves", 1, "number of passes over all tests, 0 repeats until interrupted")
	cmd.Flags().StringVar(&tests, "tests", "all", "comma-separated tests to run (write+map, write)")

	return cmd
}

func writeAll(buf []byte) {
	for i := range buf {
		buf[i] = byte(i)
	}
}

func touchBenchmarks(size int) []benchmark {
	var reused []byte

	return []benchmark{
		{
			name: "write+map",
			run: func(t *repetition.Tester) error {
				mem, unmap, err := pagefault.MapAnonymous(size)
				if err != nil {
					return err
				}

				t.Begin()
				writeAll(mem)
				t.End()
				t.CountBytes(uint64(len(mem)))

				return unmap()
			},
		},
		{
			name: "write",
			run: func(t *repetition.Tester) error {
				if reused == nil {
					reused = make([]byte, size)
				}

				t.Begin()
				writeAll(reused)
				t.End()
				t.CountBytes(uint64(len(reused)))

				return nil
			},
		},
	}
}
