package confecalc

import (
	"fmt"
	"unsafe"

	"github.com/LynnColeArt/confecalc/real3"
)

// SharedMemory hands out typed regions of a block's shared memory.
// Regions are laid out in request order, each starting on a
// SharedAlignment boundary, mirroring how a kernel lays out mixed-size
// buffers in one dynamic shared allocation.
//
// A SharedMemory is owned by one thread; concurrent threads each use
// their own carver from Block.Shared.
type SharedMemory struct {
	buf []byte
	off int64
}

// NewSharedMemory wraps an existing buffer, for carving outside a launch.
// buf must start on a SharedAlignment boundary (see AllocAligned).
func NewSharedMemory(buf []byte) *SharedMemory {
	return &SharedMemory{buf: buf}
}

// Used returns the number of bytes carved so far, padding included.
func (s *SharedMemory) Used() int64 {
	return s.off
}

// Remaining returns the number of bytes not yet carved.
func (s *SharedMemory) Remaining() int64 {
	return int64(len(s.buf)) - s.off
}

// Bytes carves n raw bytes.
func (s *SharedMemory) Bytes(n int) ([]byte, error) {
	start, err := s.reserve(int64(n))
	if err != nil {
		return nil, err
	}
	return s.buf[start : start+int64(n) : start+int64(n)], nil
}

func (s *SharedMemory) reserve(nbytes int64) (int64, error) {
	if nbytes < 0 {
		return 0, NewInvalidArgError("SharedMemory", fmt.Sprintf("negative size %d", nbytes))
	}
	start := PadToAlignment(s.off, SharedAlignment)
	if start+nbytes > int64(len(s.buf)) {
		return 0, NewMemoryError("SharedMemory",
			fmt.Sprintf("need %d bytes at offset %d, block has %d", nbytes, start, len(s.buf)),
			ErrSharedMemoryExhausted)
	}
	s.off = start + nbytes
	return start, nil
}

// SharedSlice carves a region of n elements of E. E must not contain
// pointers: shared memory is plain bytes the garbage collector never scans.
func SharedSlice[E any](s *SharedMemory, n int) ([]E, error) {
	var zero E
	size := int64(unsafe.Sizeof(zero))
	if align := int64(unsafe.Alignof(zero)); align > SharedAlignment {
		return nil, NewInvalidArgError("SharedSlice", fmt.Sprintf("element alignment %d exceeds %d", align, SharedAlignment))
	}
	start, err := s.reserve(size * int64(n))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []E{}, nil
	}
	return unsafe.Slice((*E)(unsafe.Pointer(&s.buf[start])), n), nil
}

// SharedCoords carves room for n stored atoms.
func SharedCoords[T real3.Float](s *SharedMemory, n int) (real3.Coords[T], error) {
	buf, err := SharedSlice[T](s, n*real3.Stride[T]())
	if err != nil {
		return real3.Coords[T]{}, err
	}
	return real3.WrapCoords(buf), nil
}

// SizeofCoords returns the bytes n stored atoms occupy.
func SizeofCoords[T real3.Float](n int) int64 {
	return int64(n) * int64(real3.StorageSize[T]())
}

// SharedFootprint returns the bytes needed to carve regions of the given
// sizes in order, with the alignment padding SharedMemory inserts.
func SharedFootprint(sizes ...int64) int64 {
	var total int64
	for _, size := range sizes {
		total = PadToAlignment(total, SharedAlignment) + size
	}
	return total
}
