// Package codec reinterprets a device buffer's raw bytes as a typed numeric
// slice sharing the same backing memory, the way the teacher's
// pointerFromMmap reinterprets a raw mmap address as a Go pointer for the
// descriptor ring. Kernel adapters use this to operate on points, labels,
// masses, and centroids in place without an intermediate copy.
package codec

import "unsafe"

// Floats views buf as a slice of T (float32 or float64). buf's length must
// be a multiple of sizeof(T); any remainder is dropped from the view.
//
//go:noinline
func Floats[T ~float32 | ~float64](buf []byte) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	n := len(buf) / size
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&buf[0])), n)
}

// Unsigneds views buf as a slice of T (uint32 or uint64). buf's length must
// be a multiple of sizeof(T); any remainder is dropped from the view.
//
//go:noinline
func Unsigneds[T ~uint32 | ~uint64](buf []byte) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	n := len(buf) / size
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&buf[0])), n)
}

// Bytes is the inverse of Floats/Unsigneds: it reinterprets a typed slice as
// its raw backing bytes, for building host-resident objects (point files,
// centroid vectors) the cache stages into device buffers.
func Bytes[T ~float32 | ~float64 | ~uint32 | ~uint64](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*size)
}
