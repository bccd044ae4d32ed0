//go:build !unix

package pagefault

import "os"

// Rusage is unavailable on this platform.
type Rusage struct{}

// Count always fails with ErrUnavailable.
func (Rusage) Count() (uint64, error) {
	return 0, ErrUnavailable
}

func systemPageSize() int {
	return os.Getpagesize()
}
