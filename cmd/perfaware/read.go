package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cwbudde/perfaware/profiler"
	"github.com/cwbudde/perfaware/repetition"
)

func newReadCmd(a *app) *cobra.Command {
	var (
		waves   int
		tests   string
		profile bool
	)

	cmd := &cobra.Command{
		Use:   "read <file>",
		Short: "Measure reading a whole file into memory",
		Long: `read repeatedly reads the whole file, once into a freshly allocated
buffer ("read+alloc"), once into a buffer reused across iterations ("read")
and once through os.ReadFile ("readfile").`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			path := args[0]

			info, err := os.Stat(path)
			if err != nil {
				return err
			}

			if info.Size() <= 0 {
				return fmt.Errorf("%s: file is empty", path)
			}

			size := uint64(info.Size())

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			benches, err := selectBenchmarks(readBenchmarks(f, path, size), tests)
			if err != nil {
				return err
			}

			s, err := a.newSession(ctx, cmd)
			if err != nil {
				return err
			}

			fmt.Fprintf(s.out, "%s: %s\n", path, humanize.IBytes(size))

			if !profile {
				return s.runWaves(ctx, size, benches, waves)
			}

			prof := profiler.New(profiler.WithFrequency(s.frequency), profiler.WithOutput(s.out))
			prof.Start()

			for i, b := range benches {
				run := b.run
				benches[i].run = func(t *repetition.Tester) error {
					defer prof.ZoneBytes(b.name, size)()
					return run(t)
				}
			}

			err = s.runWaves(ctx, size, benches, waves)

			fmt.Fprintf(s.out, "\n%s\n", headingStyle.Render("--- profile ---"))
			prof.End()

			return err
		},
	}

	cmd.Flags().IntVar(&waves, "waves", 1, "number of passes over all tests, 0 repeats until interrupted")
	cmd.Flags().StringVar(&tests, "tests", "all", "comma-separated tests to run (read+alloc, read, readfile)")
	cmd.Flags().BoolVar(&profile, "profile", false, "profile the test bodies and print the profile at the end")

	return cmd
}

func readBenchmarks(f *os.File, path string, size uint64) []benchmark {
	reused := make([]byte, size)

	readAt := func(t *repetition.Tester, buf []byte) error {
		t.Begin()
		n, err := io.ReadFull(io.NewSectionReader(f, 0, int64(len(buf))), buf)
		t.End()

		if err != nil {
			return err
		}

		t.CountBytes(uint64(n))

		return nil
	}

	return []benchmark{
		{
			name: "read+alloc",
			run: func(t *repetition.Tester) error {
				return readAt(t, make([]byte, size))
			},
		},
		{
			name: "read",
			run: func(t *repetition.Tester) error {
				return readAt(t, reused)
			},
		},
		{
			name: "readfile",
			run: func(t *repetition.Tester) error {
				t.Begin()
				data, err := os.ReadFile(path)
				t.End()

				if err != nil {
					return err
				}

				t.CountBytes(uint64(len(data)))

				return nil
			},
		},
	}
}
