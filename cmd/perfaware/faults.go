package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/perfaware/pagefault"
)

func newFaultsCmd(a *app) *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "faults",
		Short: "Print page faults taken when touching the first N pages of a mapping",
		Long: `faults maps fresh anonymous memory for every row, writes to its first
"Touch Count" pages and prints the faults the write took as CSV. "Extra
Count" is the difference between faults taken and pages touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pages <= 0 {
				return fmt.Errorf("invalid --pages %d: must be positive", pages)
			}

			probe, err := a.cfg.Probe()
			if err != nil {
				return err
			}

			if _, err := probe.Count(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			pageSize := int(pagefault.PageSize())
			size := pages * pageSize

			fmt.Fprintln(out, "Page Count,Touch Count,Fault Count,Extra Count")

			for touch := 1; touch <= pages; touch++ {
				mem, unmap, err := pagefault.MapAnonymous(size)
				if err != nil {
					return err
				}

				before, err := probe.Count()
				if err != nil {
					_ = unmap()
					return err
				}

				writeAll(mem[:touch*pageSize])

				after, err := probe.Count()
				if err != nil {
					_ = unmap()
					return err
				}

				faults := after - before
				fmt.Fprintf(out, "%d,%d,%d,%d\n", pages, touch, faults, int64(faults)-int64(touch))

				if err := unmap(); err != nil {
					return err
				}
			}

			a.logger.Debug("fault probe finished", "pages", pages, "page_size", pageSize)

			return nil
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 1024, "size of the mapping in pages")

	return cmd
}
