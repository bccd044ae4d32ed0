// Package config resolves CLI settings from flags, environment variables,
// an optional .env file and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cwbudde/perfaware/pagefault"
	"github.com/cwbudde/perfaware/repetition"
	"github.com/cwbudde/perfaware/timer"
)

// EnvPrefix is prepended to every environment variable, e.g. PERFAWARE_SECONDS.
const EnvPrefix = "PERFAWARE"

// Keys understood by Load.
const (
	KeySeconds      = "seconds"
	KeyEstimateWait = "estimate_wait"
	KeyFaultProbe   = "fault_probe"
	KeyMetricsAddr  = "metrics_addr"
	KeyNoLive       = "no_live"
	KeyVerbose      = "verbose"
	KeyLogFile      = "log_file"
	KeyBaseline     = "baseline"
)

var (
	// ErrInvalidBudget is returned for a non-positive time budget.
	ErrInvalidBudget = errors.New("perfaware/config: time budget must be positive")

	// ErrInvalidEstimateWait is returned for a non-positive estimation window.
	ErrInvalidEstimateWait = errors.New("perfaware/config: estimate wait must be positive")
)

// Config is the resolved CLI configuration.
type Config struct {
	TimeBudget   time.Duration
	EstimateWait time.Duration
	FaultProbe   string
	MetricsAddr  string
	Live         bool
	Verbose      bool
	LogFile      string

	// Baseline is the file best runs are compared against and saved to.
	Baseline string

	// File is the config file that was read, empty if none.
	File string
}

// Probe resolves the configured page fault probe.
func (c *Config) Probe() (pagefault.Probe, error) {
	return pagefault.Lookup(c.FaultProbe)
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeySeconds, repetition.DefaultTimeBudget.Seconds())
	v.SetDefault(KeyEstimateWait, timer.DefaultEstimateWait)
	v.SetDefault(KeyFaultProbe, "rusage")
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyNoLive, false)
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyBaseline, "")
}

// BindFlags binds the flags in fs to their keys. Flag names use dashes where
// keys use underscores; flags without a matching key are ignored.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	keys := map[string]bool{
		KeySeconds: true, KeyEstimateWait: true, KeyFaultProbe: true, KeyMetricsAddr: true,
		KeyNoLive: true, KeyVerbose: true, KeyLogFile: true, KeyBaseline: true,
	}

	var err error

	fs.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !keys[key] || err != nil {
			return
		}

		err = v.BindPFlag(key, f)
	})

	return err
}

// Load reads .env, the config file and the environment into v and returns the
// validated configuration. With an empty cfgFile a perfaware.yaml in the
// working directory is used when present.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("perfaware")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("perfaware/config: reading config: %w", err)
		}
	}

	cfg := &Config{
		TimeBudget:   time.Duration(v.GetFloat64(KeySeconds) * float64(time.Second)),
		EstimateWait: v.GetDuration(KeyEstimateWait),
		FaultProbe:   v.GetString(KeyFaultProbe),
		MetricsAddr:  v.GetString(KeyMetricsAddr),
		Live:         !v.GetBool(KeyNoLive),
		Verbose:      v.GetBool(KeyVerbose),
		LogFile:      v.GetString(KeyLogFile),
		Baseline:     v.GetString(KeyBaseline),
		File:         v.ConfigFileUsed(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges and that the fault probe exists.
func (c *Config) Validate() error {
	if c.TimeBudget <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidBudget, c.TimeBudget)
	}

	if c.EstimateWait <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidEstimateWait, c.EstimateWait)
	}

	if _, err := c.Probe(); err != nil {
		return err
	}

	return nil
}
