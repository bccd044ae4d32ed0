// Package pagefault is a best-effort probe of the page faults taken by the
// running process. It may be unavailable on a platform; callers should treat
// ErrUnavailable as "feature disabled", never as a reason to abort.
package pagefault

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnavailable is returned when the fault counter cannot be read.
	ErrUnavailable = errors.New("perfaware/pagefault: page fault count unavailable")

	// ErrUnknownProbe is returned by Lookup for an unregistered probe name.
	ErrUnknownProbe = errors.New("perfaware/pagefault: unknown probe")
)

// Probe reads the cumulative number of page faults taken by the process.
type Probe interface {
	Count() (uint64, error)
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func() (uint64, error)

// Count calls f.
func (f ProbeFunc) Count() (uint64, error) { return f() }

// Default is the probe used by Count.
var Default Probe = Rusage{}

// Count returns the faults taken by the process since it started, using Default.
func Count() (uint64, error) {
	return Default.Count()
}

var probes = map[string]Probe{
	"rusage":   Rusage{},
	"procstat": ProcStat{},
}

// Lookup returns the probe registered under name ("rusage" or "procstat").
func Lookup(name string) (Probe, error) {
	p, ok := probes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownProbe, name, Names())
	}

	return p, nil
}

// Names lists the registered probe names in sorted order.
func Names() []string {
	names := make([]string, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

var (
	pageSizeOnce sync.Once
	pageSize     uint64
)

// PageSize returns the memory page size. It is resolved once and cached for the
// lifetime of the process.
func PageSize() uint64 {
	pageSizeOnce.Do(func() {
		pageSize = uint64(systemPageSize())
	})

	return pageSize
}

// TouchedMB converts a fault count into the memory it maps, in MiB.
func TouchedMB(faults uint64) float64 {
	return float64(faults*PageSize()) / 1024 / 1024
}
