//go:build unix

package pagefault

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MapAnonymous maps size bytes of fresh, untouched anonymous memory. Every
// first write to one of its pages takes a page fault. Call unmap when done.
func MapAnonymous(size int) (mem []byte, unmap func() error, err error) {
	mem, err = unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}

	return mem, func() error { return unix.Munmap(mem) }, nil
}
