//go:build linux || darwin

package host

import (
	"fmt"

	"fledge/pkg/types"

	"golang.org/x/sys/unix"
)

func diskUsage(path string) (types.DiskUsage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return types.DiskUsage{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	return types.DiskUsage{
		Total: st.Blocks * bsize,
		Used:  (st.Blocks - st.Bfree) * bsize,
		Free:  st.Bavail * bsize,
	}, nil
}
