package main

import (
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cwbudde/perfaware/internal/config"
	"github.com/cwbudde/perfaware/internal/telemetry"
	"github.com/cwbudde/perfaware/pagefault"
	"github.com/cwbudde/perfaware/repetition"
	"github.com/cwbudde/perfaware/timer"
)

var headingStyle = lipgloss.NewStyle().Bold(true)

// app holds state shared by all subcommands of one invocation.
type app struct {
	root     *cobra.Command
	v        *viper.Viper
	cfgFile  string
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
}

func newApp() *app {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "perfaware",
		Short: "Cycle-accurate repetition tests and page fault probes",
		Long: `perfaware times operations with the CPU timestamp counter, repeats them
until no faster run has been seen for a while, and reports the best, worst
and average run together with throughput and page fault counts.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./perfaware.yaml)")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.Float64("seconds", repetition.DefaultTimeBudget.Seconds(), "seconds without a new minimum before a test completes")
	flags.Duration("estimate-wait", timer.DefaultEstimateWait, "window used to estimate the CPU timer frequency")
	flags.String("fault-probe", "rusage", "page fault probe ("+strings.Join(pagefault.Names(), ", ")+")")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.Bool("no-live", false, "do not redraw the minimum in place")
	flags.String("log-file", "", "also write JSON logs to this file")
	flags.String("baseline", "", "compare best runs against this file and save improvements to it")

	root.AddCommand(
		newReadCmd(a),
		newTouchCmd(a),
		newFaultsCmd(a),
		newInfoCmd(a),
	)

	a.root = root

	return a
}

func (a *app) init(cmd *cobra.Command) error {
	if err := config.BindFlags(a.v, cmd.Root().PersistentFlags()); err != nil {
		return err
	}

	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger, a.closeLog = telemetry.NewLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogFile)
	slog.SetDefault(a.logger)

	if cfg.File != "" {
		a.logger.Debug("using config file", "path", cfg.File)
	}

	return nil
}

// close releases the log file, if one was opened.
func (a *app) close() error {
	if a.closeLog == nil {
		return nil
	}

	return a.closeLog()
}
