//go:build unix

package pagefault

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Rusage reads minor and major faults of the calling process from getrusage(2).
type Rusage struct{}

// Count returns ru_minflt + ru_majflt.
func (Rusage) Count() (uint64, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, fmt.Errorf("%w: getrusage: %w", ErrUnavailable, err)
	}

	return uint64(ru.Minflt) + uint64(ru.Majflt), nil
}

func systemPageSize() int {
	return unix.Getpagesize()
}
