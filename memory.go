package confecalc

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/LynnColeArt/confecalc/real3"
)

// MemcpyKind specifies the direction of memory transfer.
// In the unified memory model, these are provided for CUDA compatibility
// but are treated identically since all memory is CPU-accessible.
type MemcpyKind int

const (
	MemcpyHostToHost     MemcpyKind = iota // Host to host transfer
	MemcpyHostToDevice                     // Host to device transfer
	MemcpyDeviceToHost                     // Device to host transfer
	MemcpyDeviceToDevice                   // Device to device transfer
	MemcpyDefault                          // Default transfer (infer direction)
)

// DevicePtr represents a pointer to device memory. Use the typed views
// (Float32, Float64, Int32, Byte) to access the data.
type DevicePtr struct {
	ptr  unsafe.Pointer
	size int
}

// MemoryPool manages device memory allocation with efficient reuse.
// It maintains a free list of previously allocated blocks to reduce
// allocation overhead and memory fragmentation.
type MemoryPool struct {
	mu         sync.Mutex
	allocated  map[uintptr]*allocation
	freeList   []*allocation
	totalAlloc int64
	peakAlloc  int64
}

type allocation struct {
	buf  []byte
	size int
	used bool
}

// NewMemoryPool creates a new memory pool.
// The pool tracks allocations and provides statistics on memory usage.
func NewMemoryPool() *MemoryPool {
	return &MemoryPool{
		allocated: make(map[uintptr]*allocation),
	}
}

// Malloc allocates device memory of the specified size in bytes.
// The memory is aligned to MemoryAlignment.
func (ctx *Context) Malloc(size int) (DevicePtr, error) {
	return ctx.memory.Allocate(size)
}

// Free releases device memory allocated by Malloc.
// The memory may be retained in the pool for future allocations.
func (ctx *Context) Free(ptr DevicePtr) error {
	return ctx.memory.Free(ptr)
}

// MemoryStats returns the bytes currently allocated and the peak.
func (ctx *Context) MemoryStats() (allocated, peak int64) {
	return ctx.memory.GetStats()
}

// Memcpy copies memory between host and device.
// Supports DevicePtr and slices of fixed-size numeric elements, including
// named types such as confspace.TermRef.
func (ctx *Context) Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	dstBytes, err := asBytes("dst", dst)
	if err != nil {
		return err
	}
	srcBytes, err := asBytes("src", src)
	if err != nil {
		return err
	}
	if size > len(dstBytes) || size > len(srcBytes) {
		return NewInvalidArgError("Memcpy", fmt.Sprintf("copy of %d bytes exceeds dst %d or src %d", size, len(dstBytes), len(srcBytes)))
	}
	if size > 0 {
		copy(dstBytes[:size], srcBytes[:size])
	}
	return nil
}

func asBytes(name string, v interface{}) ([]byte, error) {
	switch d := v.(type) {
	case DevicePtr:
		return d.Byte(), nil
	case []byte:
		return d, nil
	case []float32:
		return sliceBytes(d), nil
	case []float64:
		return sliceBytes(d), nil
	case []int32:
		return sliceBytes(d), nil
	}
	// slices of named numeric types, such as term handles
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		switch rv.Type().Elem().Kind() {
		case reflect.Uint8, reflect.Int32, reflect.Uint32, reflect.Int64, reflect.Uint64, reflect.Float32, reflect.Float64:
			if rv.Len() == 0 {
				return nil, nil
			}
			return unsafe.Slice((*byte)(rv.UnsafePointer()), rv.Len()*int(rv.Type().Elem().Size())), nil
		}
	}
	return nil, NewInvalidArgError("Memcpy", fmt.Sprintf("unsupported %s type: %T", name, v))
}

func sliceBytes[E any](s []E) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero E
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// MemoryPool methods

// Allocate allocates memory from the pool
func (mp *MemoryPool) Allocate(size int) (DevicePtr, error) {
	if size <= 0 {
		return DevicePtr{}, ErrInvalidSize
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	alignedSize := int(PadToAlignment(int64(max(size, MinAllocationSize)), MemoryAlignment))

	// Try to reuse from free list
	for i, alloc := range mp.freeList {
		if alloc.size >= alignedSize {
			mp.freeList = append(mp.freeList[:i], mp.freeList[i+1:]...)
			alloc.used = true
			clear(alloc.buf)

			mp.totalAlloc += int64(alloc.size)
			if mp.totalAlloc > mp.peakAlloc {
				mp.peakAlloc = mp.totalAlloc
			}

			return DevicePtr{
				ptr:  unsafe.Pointer(&alloc.buf[0]),
				size: size,
			}, nil
		}
	}

	buf := AllocAligned(alignedSize, MemoryAlignment)
	alloc := &allocation{
		buf:  buf,
		size: alignedSize,
		used: true,
	}
	ptr := unsafe.Pointer(&buf[0])
	mp.allocated[uintptr(ptr)] = alloc

	mp.totalAlloc += int64(alignedSize)
	if mp.totalAlloc > mp.peakAlloc {
		mp.peakAlloc = mp.totalAlloc
	}

	return DevicePtr{
		ptr:  ptr,
		size: size,
	}, nil
}

// Free returns memory to the pool. Freeing a zero DevicePtr is a no-op.
func (mp *MemoryPool) Free(ptr DevicePtr) error {
	if ptr.ptr == nil {
		return nil
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	alloc, ok := mp.allocated[uintptr(ptr.ptr)]
	if !ok {
		return NewMemoryError("Free", "pointer not found in allocation pool", nil)
	}

	if !alloc.used {
		return ErrDoubleFree
	}

	alloc.used = false
	mp.freeList = append(mp.freeList, alloc)
	mp.totalAlloc -= int64(alloc.size)

	return nil
}

// GetStats returns memory pool statistics
func (mp *MemoryPool) GetStats() (allocated, peak int64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.totalAlloc, mp.peakAlloc
}

// DevicePtr methods for convenience

// Float32 returns a float32 slice view of the device memory.
func (d DevicePtr) Float32() []float32 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*float32)(d.ptr), d.size/4)
}

// Float64 returns a float64 slice view of the device memory.
func (d DevicePtr) Float64() []float64 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*float64)(d.ptr), d.size/8)
}

// Int32 returns an int32 slice view of the device memory.
func (d DevicePtr) Int32() []int32 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*int32)(d.ptr), d.size/4)
}

// Byte returns a byte slice view of the device memory.
func (d DevicePtr) Byte() []byte {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(d.ptr), d.size)
}

// Size returns the size in bytes of the memory region
func (d DevicePtr) Size() int {
	return d.size
}

// DeviceCoords views device memory as stored atoms of precision T.
// The memory size must be a multiple of real3.StorageSize[T]().
func DeviceCoords[T real3.Float](d DevicePtr) real3.Coords[T] {
	if d.ptr == nil {
		return real3.Coords[T]{}
	}
	n := d.size / real3.ScalarSize[T]()
	return real3.WrapCoords(unsafe.Slice((*T)(d.ptr), n))
}

// MallocCoords allocates device memory for n stored atoms of precision T
// and returns it both as a pointer (for Free) and as coordinates.
func MallocCoords[T real3.Float](ctx *Context, n int) (DevicePtr, real3.Coords[T], error) {
	ptr, err := ctx.Malloc(int(SizeofCoords[T](n)))
	if err != nil {
		return DevicePtr{}, real3.Coords[T]{}, err
	}
	return ptr, DeviceCoords[T](ptr), nil
}
