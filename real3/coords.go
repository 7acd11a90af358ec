package real3

import (
	"fmt"
)

// Coords is a contiguous buffer of stored atoms. Atom i occupies
// Raw()[i*Stride : (i+1)*Stride]; padding scalars are always zero.
//
// The zero value is an empty buffer. Coords values are views: copying a
// Coords shares the underlying storage.
type Coords[T Float] struct {
	buf    []T
	stride int
}

// NewCoords allocates a zeroed buffer of n atoms.
func NewCoords[T Float](n int) Coords[T] {
	s := Stride[T]()
	return Coords[T]{buf: make([]T, n*s), stride: s}
}

// WrapCoords views an existing scalar buffer as stored atoms. The buffer
// length must be a multiple of Stride[T]().
func WrapCoords[T Float](buf []T) Coords[T] {
	s := Stride[T]()
	if len(buf)%s != 0 {
		panic(fmt.Sprintf("real3: buffer of %d scalars is not a multiple of stride %d", len(buf), s))
	}
	return Coords[T]{buf: buf, stride: s}
}

// FromSlice packs atoms into a freshly allocated buffer.
func FromSlice[T Float](atoms []Real3[T]) Coords[T] {
	c := NewCoords[T](len(atoms))
	for i, a := range atoms {
		c.Set(i, a)
	}
	return c
}

// Len returns the number of atoms in the buffer.
func (c Coords[T]) Len() int {
	if c.stride == 0 {
		return 0
	}
	return len(c.buf) / c.stride
}

// Raw returns the underlying scalars, padding included.
func (c Coords[T]) Raw() []T {
	return c.buf
}

// At returns atom i.
func (c Coords[T]) At(i int) Real3[T] {
	j := i * c.stride
	return Real3[T]{c.buf[j], c.buf[j+1], c.buf[j+2]}
}

// Set stores v as atom i.
func (c Coords[T]) Set(i int, v Real3[T]) {
	j := i * c.stride
	c.buf[j] = v.X
	c.buf[j+1] = v.Y
	c.buf[j+2] = v.Z
}

// Slice returns a view of n atoms starting at atom offset.
func (c Coords[T]) Slice(offset, n int) Coords[T] {
	return Coords[T]{buf: c.buf[offset*c.stride : (offset+n)*c.stride], stride: c.stride}
}

// ToSlice unpacks the buffer.
func (c Coords[T]) ToSlice() []Real3[T] {
	out := make([]Real3[T], c.Len())
	for i := range out {
		out[i] = c.At(i)
	}
	return out
}

// CopyFrom copies all of src into c starting at atom offset and returns
// the number of atoms copied. The copy is one contiguous transfer.
func (c Coords[T]) CopyFrom(src Coords[T], offset int) int {
	copy(c.buf[offset*c.stride:], src.buf)
	return src.Len()
}

// CopyFromStrided copies the atoms of src whose index is congruent to
// rank modulo size into c starting at atom offset. When every rank in
// [0, size) runs it, the whole of src is copied with no atom written
// twice. It returns src.Len() on every rank.
func (c Coords[T]) CopyFromStrided(src Coords[T], offset, rank, size int) int {
	n := src.Len()
	s := c.stride
	for i := rank; i < n; i += size {
		copy(c.buf[(offset+i)*s:(offset+i+1)*s], src.buf[i*s:(i+1)*s])
	}
	return n
}

// Fill stores v into n atoms starting at atom offset.
func (c Coords[T]) Fill(offset, n int, v Real3[T]) {
	if n <= 0 {
		return
	}
	if v == (Real3[T]{}) {
		clear(c.buf[offset*c.stride : (offset+n)*c.stride])
		return
	}
	for i := offset; i < offset+n; i++ {
		c.Set(i, v)
	}
}

// FillStrided is the cooperative form of Fill: rank fills the atoms
// offset+rank, offset+rank+size, ...
func (c Coords[T]) FillStrided(offset, n int, v Real3[T], rank, size int) {
	for i := rank; i < n; i += size {
		c.Set(offset+i, v)
		if c.stride > 3 {
			c.buf[(offset+i)*c.stride+3] = 0
		}
	}
}

// Equal reports whether c and o hold the same scalars, padding included.
// NaN compares equal to NaN.
func (c Coords[T]) Equal(o Coords[T]) bool {
	if len(c.buf) != len(o.buf) || c.stride != o.stride {
		return false
	}
	for i, a := range c.buf {
		b := o.buf[i]
		if a != b && (a == a || b == b) {
			return false
		}
	}
	return true
}
