//go:build !unix

package pagefault

// MapAnonymous falls back to a Go heap allocation, which the runtime may have
// pre-faulted.
func MapAnonymous(size int) (mem []byte, unmap func() error, err error) {
	return make([]byte, size), func() error { return nil }, nil
}
