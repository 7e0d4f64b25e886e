package accel

import "unsafe"

// Scalar is an element type that can be staged to a device buffer.
type Scalar interface {
	~uint32 | ~int32 | ~float32
}

// Bytes reinterprets s as raw bytes without copying.
func Bytes[T Scalar](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero)))
}

// View reinterprets b as a slice of T without copying. Trailing bytes that do
// not fill a whole element are dropped.
func View[T Scalar](b []byte) []T {
	var zero T
	n := len(b) / int(unsafe.Sizeof(zero))
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// SizeOf returns the byte size of n elements of T.
func SizeOf[T Scalar](n int) uint64 {
	var zero T
	return uint64(n) * uint64(unsafe.Sizeof(zero))
}
