package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cwbudde/perfaware/internal/cpu"
	"github.com/cwbudde/perfaware/pagefault"
	"github.com/cwbudde/perfaware/timer"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the timer, page size and fault probes available on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			freq := timer.EstimateCPUFrequency(a.cfg.EstimateWait)

			fmt.Fprintln(out, headingStyle.Render("timer"))
			fmt.Fprintf(out, "  source:      %s (high precision: %t)\n", timer.Source(), cpu.IsHighPrecision())
			fmt.Fprintf(out, "  os counter:  %s\n", humanize.SIWithDigits(float64(timer.OSTickFrequency()), 3, "Hz"))

			if freq == 0 {
				fmt.Fprintln(out, "  frequency:   unavailable")
			} else {
				fmt.Fprintf(out, "  frequency:   %s (estimated over %v)\n",
					humanize.SIWithDigits(float64(freq), 3, "Hz"), a.cfg.EstimateWait)
			}

			fmt.Fprintln(out, headingStyle.Render("memory"))
			fmt.Fprintf(out, "  page size:   %s\n", humanize.IBytes(pagefault.PageSize()))

			for _, name := range pagefault.Names() {
				status := "ok"

				probe, err := pagefault.Lookup(name)
				if err == nil {
					_, err = probe.Count()
				}

				if err != nil {
					status = err.Error()
				}

				marker := " "
				if name == a.cfg.FaultProbe {
					marker = "*"
				}

				fmt.Fprintf(out, "  %sprobe %-9s %s\n", marker, name+":", status)
			}

			fmt.Fprintln(out, headingStyle.Render("cpu"))
			fmt.Fprintf(out, "  features:    %s\n", cpu.DetectFeatures())

			return nil
		},
	}
}
