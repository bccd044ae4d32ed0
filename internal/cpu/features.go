package cpu

import (
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// Features describes the CPU the measurements were taken on.
type Features struct {
	HasSSE2      bool
	HasAVX       bool
	HasAVX2      bool
	HasAVX512    bool
	HasERMS      bool
	HasNEON      bool
	Architecture string
}

// DetectFeatures reports the available CPU features for the current process.
func DetectFeatures() Features {
	return Features{
		HasSSE2:      cpu.X86.HasSSE2,
		HasAVX:       cpu.X86.HasAVX,
		HasAVX2:      cpu.X86.HasAVX2,
		HasAVX512:    cpu.X86.HasAVX512,
		HasERMS:      cpu.X86.HasERMS,
		HasNEON:      cpu.ARM64.HasASIMD,
		Architecture: runtime.GOARCH,
	}
}

// String lists the detected features, e.g. "amd64 sse2 avx avx2".
func (f Features) String() string {
	parts := []string{f.Architecture}

	flags := []struct {
		name string
		on   bool
	}{
		{"sse2", f.HasSSE2},
		{"avx", f.HasAVX},
		{"avx2", f.HasAVX2},
		{"avx512", f.HasAVX512},
		{"erms", f.HasERMS},
		{"neon", f.HasNEON},
	}
	for _, flag := range flags {
		if flag.on {
			parts = append(parts, flag.name)
		}
	}

	return strings.Join(parts, " ")
}
