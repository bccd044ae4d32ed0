package pagefault

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// ProcStat reads minor and major faults from /proc/self/stat. It only works
// where procfs is mounted.
type ProcStat struct {
	// MountPoint overrides the procfs mount point. Empty means procfs.DefaultMountPoint.
	MountPoint string
}

// Count returns minflt + majflt of the calling process.
func (p ProcStat) Count() (uint64, error) {
	mount := p.MountPoint
	if mount == "" {
		mount = procfs.DefaultMountPoint
	}

	fs, err := procfs.NewFS(mount)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	self, err := fs.Self()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	stat, err := self.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return uint64(stat.MinFlt) + uint64(stat.MajFlt), nil
}
