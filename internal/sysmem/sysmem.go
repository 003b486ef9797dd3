// Package sysmem reports physical memory so the CLI can warn before a run
// that loads the full trip history into memory.
package sysmem

// Stats is a snapshot of physical memory in bytes.
type Stats struct {
	Total uint64
	Free  uint64
}

// Read returns the current memory snapshot. ok is false on platforms where
// the numbers are not available.
func Read() (s Stats, ok bool) {
	return read()
}
