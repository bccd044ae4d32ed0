package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/perfaware/pagefault"
)

var fastFlags = []string{"--seconds", "0.02", "--estimate-wait", "5ms", "--no-live"}

// run executes the CLI in an empty working directory and returns the exit code
// with captured stdout and stderr.
func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Chdir(t.TempDir())

	return runApp(newApp(), args...)
}

func runApp(a *app, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer

	a.root.SetArgs(args)
	a.root.SetOut(&stdout)
	a.root.SetErr(&stderr)

	code := execute(a)

	return code, stdout.String(), stderr.String()
}

func requireUnix(t *testing.T) {
	t.Helper()

	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("getrusage probe not available on " + runtime.GOOS)
	}
}

func writeTempFile(t *testing.T, size int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "input.bin")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xAB}, size), 0o600))

	return path
}

func TestInfo(t *testing.T) {
	code, out, stderr := run(t, "info", "--estimate-wait", "5ms")
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, out, "source:")
	assert.Contains(t, out, "page size:")
	assert.Contains(t, out, "*probe rusage:")
	assert.Contains(t, out, "features:    "+runtime.GOARCH)
}

func TestFaults_CSV(t *testing.T) {
	requireUnix(t)

	code, out, stderr := run(t, "faults", "--pages", "4")
	require.Equal(t, 0, code, stderr)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Page Count,Touch Count,Fault Count,Extra Count", lines[0])

	for i, line := range lines[1:] {
		fields := strings.Split(line, ",")
		require.Len(t, fields, 4, line)
		assert.Equal(t, "4", fields[0])
		assert.Equal(t, []string{"1", "2", "3", "4"}[i], fields[1])
	}
}

func TestFaults_InvalidPages(t *testing.T) {
	code, _, stderr := run(t, "faults", "--pages", "0")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid --pages")
}

func TestRead(t *testing.T) {
	requireUnix(t)

	path := writeTempFile(t, 64<<10)

	args := append([]string{"read", path, "--tests", "read,read+alloc"}, fastFlags...)
	code, out, stderr := run(t, args...)
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, out, "64 KiB")
	assert.Contains(t, out, "--- read ---")
	assert.Contains(t, out, "--- read+alloc ---")
	assert.NotContains(t, out, "--- readfile ---")
	assert.Equal(t, 2, strings.Count(out, "Avg: "))
	assert.Equal(t, 2, strings.Count(out, "Page faults: "))
}

func TestRead_WavesAndProfile(t *testing.T) {
	requireUnix(t)

	path := writeTempFile(t, 16<<10)

	args := append([]string{"read", path, "--tests", "readfile", "--waves", "2", "--profile"}, fastFlags...)
	code, out, stderr := run(t, args...)
	require.Equal(t, 0, code, stderr)

	assert.Equal(t, 2, strings.Count(out, "--- readfile ---"))
	assert.Contains(t, out, "--- profile ---")
	assert.Contains(t, out, "readfile[")
	assert.Contains(t, out, "program took")
}

func TestRead_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		code, _, stderr := run(t, "read", filepath.Join(t.TempDir(), "nope"))
		assert.Equal(t, 1, code)
		assert.Contains(t, stderr, "Error:")
	})

	t.Run("empty file", func(t *testing.T) {
		code, _, stderr := run(t, "read", writeTempFile(t, 0))
		assert.Equal(t, 1, code)
		assert.Contains(t, stderr, "file is empty")
	})

	t.Run("unknown test", func(t *testing.T) {
		code, _, stderr := run(t, "read", writeTempFile(t, 16), "--tests", "mmap")
		assert.Equal(t, 1, code)
		assert.Contains(t, stderr, `unknown test "mmap"`)
	})

	t.Run("missing argument", func(t *testing.T) {
		code, _, _ := run(t, "read")
		assert.Equal(t, 1, code)
	})
}

func TestTouch(t *testing.T) {
	requireUnix(t)

	args := append([]string{"touch", "--size", "64KiB"}, fastFlags...)
	code, out, stderr := run(t, args...)
	require.Equal(t, 0, code, stderr)

	pages := (64 << 10) / pagefault.PageSize()
	assert.Contains(t, out, fmt.Sprintf("buffer: 64 KiB (%d pages)", pages))
	assert.Contains(t, out, "--- write+map ---")
	assert.Contains(t, out, "--- write ---")
}

func TestTouch_InvalidSize(t *testing.T) {
	code, _, stderr := run(t, "touch", "--size", "lots")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid --size")
}

func TestConfigErrorsFailCommand(t *testing.T) {
	code, _, stderr := run(t, "info", "--fault-probe", "top")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown probe")

	code, _, _ = run(t, "info", "--seconds=-1")
	assert.Equal(t, 1, code)
}

func TestExecute_RecoversPanics(t *testing.T) {
	a := newApp()
	a.root.AddCommand(&cobra.Command{
		Use: "boom",
		Run: func(*cobra.Command, []string) {
			panic("timer went backwards")
		},
	})

	t.Chdir(t.TempDir())

	code, _, stderr := runApp(a, "boom")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error: timer went backwards")
}

func TestSelectBenchmarks(t *testing.T) {
	benches := []benchmark{{name: "a"}, {name: "b"}, {name: "c"}}

	all, err := selectBenchmarks(benches, "all")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := selectBenchmarks(benches, "c, a")
	require.NoError(t, err)
	assert.Equal(t, "c, a", benchmarkNames(some))

	_, err = selectBenchmarks(benches, " , ")
	require.Error(t, err)

	_, err = selectBenchmarks(benches, "d")
	require.ErrorContains(t, err, "want a, b, c")
}

func TestTouch_Baseline(t *testing.T) {
	requireUnix(t)

	path := filepath.Join(t.TempDir(), "baseline.txt")
	args := append([]string{"touch", "--size", "64KiB", "--tests", "write", "--baseline", path}, fastFlags...)

	code, out, stderr := run(t, args...)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Baseline: none")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "write:65536:"), string(data))

	code, out, stderr = run(t, args...)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Baseline: ")
	assert.NotContains(t, out, "Baseline: none")
	assert.Contains(t, out, "%)")
}

func TestExecute_ClosesLogFile(t *testing.T) {
	requireUnix(t)

	logFile := filepath.Join(t.TempDir(), "perfaware.log")

	a := newApp()
	t.Chdir(t.TempDir())

	code, _, stderr := runApp(a, "faults", "--pages", "1", "--verbose", "--log-file", logFile)
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"fault probe finished"`)

	require.ErrorIs(t, a.close(), os.ErrClosed, "execute should have closed the log file")
}
