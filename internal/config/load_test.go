package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/perfaware/pagefault"
)

// chdir moves into an empty directory so no stray perfaware.yaml or .env is
// picked up.
func chdir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)

	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.TimeBudget)
	assert.Equal(t, 100*time.Millisecond, cfg.EstimateWait)
	assert.Equal(t, "rusage", cfg.FaultProbe)
	assert.Empty(t, cfg.MetricsAddr)
	assert.True(t, cfg.Live)
	assert.False(t, cfg.Verbose)
	assert.Empty(t, cfg.File)
}

func TestLoad_Env(t *testing.T) {
	chdir(t)
	t.Setenv("PERFAWARE_SECONDS", "2.5")
	t.Setenv("PERFAWARE_ESTIMATE_WAIT", "20ms")
	t.Setenv("PERFAWARE_NO_LIVE", "true")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 2500*time.Millisecond, cfg.TimeBudget)
	assert.Equal(t, 20*time.Millisecond, cfg.EstimateWait)
	assert.False(t, cfg.Live)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PERFAWARE_METRICS_ADDR=127.0.0.1:9100\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PERFAWARE_METRICS_ADDR") })

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seconds: 3\nfault_probe: procstat\nverbose: true\nbaseline: best.txt\n"), 0o600))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.TimeBudget)
	assert.Equal(t, "procstat", cfg.FaultProbe)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "best.txt", cfg.Baseline)
	assert.Equal(t, path, cfg.File)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := chdir(t)

	_, err := Load(viper.New(), filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_FlagsOverride(t *testing.T) {
	chdir(t)
	t.Setenv("PERFAWARE_SECONDS", "4")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Float64("seconds", 10, "")
	fs.Bool("no-live", false, "")
	fs.String("unrelated", "", "")
	require.NoError(t, fs.Parse([]string{"--seconds", "0.5", "--no-live"}))

	v := viper.New()
	require.NoError(t, BindFlags(v, fs))

	cfg, err := Load(v, "")
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.TimeBudget)
	assert.False(t, cfg.Live)
}

func TestLoad_Validation(t *testing.T) {
	chdir(t)

	t.Run("budget", func(t *testing.T) {
		t.Setenv("PERFAWARE_SECONDS", "0")

		_, err := Load(viper.New(), "")
		require.ErrorIs(t, err, ErrInvalidBudget)
	})

	t.Run("estimate wait", func(t *testing.T) {
		t.Setenv("PERFAWARE_ESTIMATE_WAIT", "-1s")

		_, err := Load(viper.New(), "")
		require.ErrorIs(t, err, ErrInvalidEstimateWait)
	})

	t.Run("probe", func(t *testing.T) {
		t.Setenv("PERFAWARE_FAULT_PROBE", "top")

		_, err := Load(viper.New(), "")
		require.ErrorIs(t, err, pagefault.ErrUnknownProbe)
	})
}
