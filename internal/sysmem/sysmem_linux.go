//go:build linux

package sysmem

import "golang.org/x/sys/unix"

func read() (Stats, bool) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return Stats{}, false
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return Stats{
		Total: uint64(info.Totalram) * unit,
		Free:  (uint64(info.Freeram) + uint64(info.Bufferram)) * unit,
	}, true
}
