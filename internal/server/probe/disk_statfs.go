//go:build linux || darwin

package probe

import "golang.org/x/sys/unix"

func diskUsage(path string) (DiskReading, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return DiskReading{}, err
	}
	bsize := uint64(st.Bsize)
	total := uint64(st.Blocks) * bsize
	free := uint64(st.Bfree) * bsize
	return DiskReading{
		Total: total,
		Used:  total - free,
		Free:  uint64(st.Bavail) * bsize,
	}, nil
}
