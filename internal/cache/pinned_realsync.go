//go:build realsync

package cache

import (
	"golang.org/x/sys/unix"
)

// allocPinned allocates a page-aligned, anonymous-mapped host staging
// buffer via unix.Mmap, the direct analogue of the teacher's mmapQueues
// anonymous I/O buffer allocation, for builds that want real pinned memory
// behavior instead of a plain Go slice.
func allocPinned(size int) []byte {
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		// Fall back to a regular slice rather than panicking; pinning is an
		// optimization, not a correctness requirement for this engine.
		return make([]byte, size)
	}
	return buf
}

// freePinned releases a buffer obtained from allocPinned.
func freePinned(buf []byte) {
	if buf == nil {
		return
	}
	_ = unix.Munmap(buf)
}
