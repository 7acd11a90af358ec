package confecalc

import (
	"fmt"
	"unsafe"
)

// PadToAlignment rounds size up to the next multiple of alignment.
// alignment must be positive.
func PadToAlignment(size, alignment int64) int64 {
	if alignment <= 0 {
		panic(NewInvalidArgError("PadToAlignment", fmt.Sprintf("alignment must be positive, got %d", alignment)))
	}
	return (size + alignment - 1) / alignment * alignment
}

// AllocAligned allocates a zeroed byte slice of the given size whose first
// byte sits at an address divisible by alignment (a power of two).
//
// This works by over-allocating and returning a slice starting at an
// aligned offset. The returned slice keeps the whole allocation alive.
func AllocAligned(size, alignment int) []byte {
	if size <= 0 {
		return nil
	}
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		panic(NewInvalidArgError("AllocAligned", fmt.Sprintf("alignment must be a power of two, got %d", alignment)))
	}

	raw := make([]byte, size+alignment-1)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	offset := int((uintptr(alignment) - addr&uintptr(alignment-1)) & uintptr(alignment-1))

	return raw[offset : offset+size : offset+size]
}
