// Package pool provides bucketed sync.Pool instances for mip surface
// buffers. Mip levels quadruple in byte size, so the size classes quadruple
// too: a buffer sized for one level serves every coarser level of the same
// chain without reallocation.
package pool

import "sync"

// Size classes, quadrupling like mip surfaces (4 bytes per pixel).
const (
	Size64B  = 64      // up to 4x4
	Size1K   = 1024    // up to 16x16
	Size16K  = 16384   // up to 64x64
	Size256K = 262144  // up to 256x256
	Size4M   = 1 << 22 // up to 1024x1024
	Size64M  = 1 << 26 // up to 4096x4096
)

var sizes = [6]int{Size64B, Size1K, Size16K, Size256K, Size4M, Size64M}

// bucketIndex returns the pool index for a given size, or -1 when the size
// exceeds the largest class.
func bucketIndex(size int) int {
	for i, s := range sizes {
		if size <= s {
			return i
		}
	}
	return -1
}

var pools [6]sync.Pool

func init() {
	for i := range pools {
		sz := sizes[i]
		pools[i] = sync.Pool{
			New: func() any {
				b := make([]byte, sz)
				return &b
			},
		}
	}
}

// Get returns a byte slice of length size from the pool. Sizes beyond the
// largest class are allocated directly. The caller must call Put when done.
func Get(size int) []byte {
	idx := bucketIndex(size)
	if idx < 0 {
		return make([]byte, size)
	}
	bp := pools[idx].Get().(*[]byte)
	b := *bp
	if cap(b) < size {
		b = make([]byte, size)
		*bp = b
		return b
	}
	return b[:size]
}

// Put returns a byte slice to the pool. The slice must have been obtained
// from Get. Slices outside the class range are dropped.
func Put(b []byte) {
	c := cap(b)
	if c < Size64B {
		return
	}
	idx := bucketIndex(c)
	if idx < 0 {
		return
	}
	b = b[:c]
	pools[idx].Put(&b)
}
