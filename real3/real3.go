package real3

import (
	"math"
	"unsafe"
)

// Float is the set of supported coordinate precisions.
type Float interface {
	~float32 | ~float64
}

// Real3 is a point or direction in 3D space.
type Real3[T Float] struct {
	X, Y, Z T
}

// New builds a Real3 from three components.
func New[T Float](x, y, z T) Real3[T] {
	return Real3[T]{X: x, Y: y, Z: z}
}

// FromInts builds a Real3 from integer components.
func FromInts[T Float](x, y, z int) Real3[T] {
	return Real3[T]{X: T(x), Y: T(y), Z: T(z)}
}

// Add returns v + o.
func (v Real3[T]) Add(o Real3[T]) Real3[T] {
	return Real3[T]{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Real3[T]) Sub(o Real3[T]) Real3[T] {
	return Real3[T]{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Neg returns -v.
func (v Real3[T]) Neg() Real3[T] {
	return Real3[T]{-v.X, -v.Y, -v.Z}
}

// Scale returns s*v.
func (v Real3[T]) Scale(s T) Real3[T] {
	return Real3[T]{v.X * s, v.Y * s, v.Z * s}
}

// AddIn adds o to v in place.
func (v *Real3[T]) AddIn(o Real3[T]) {
	v.X += o.X
	v.Y += o.Y
	v.Z += o.Z
}

// SubIn subtracts o from v in place.
func (v *Real3[T]) SubIn(o Real3[T]) {
	v.X -= o.X
	v.Y -= o.Y
	v.Z -= o.Z
}

// LenSq returns the squared length of v.
func (v Real3[T]) LenSq() T {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Len returns the length of v.
func (v Real3[T]) Len() T {
	// Rounding a float64 square root back to float32 gives the
	// correctly rounded float32 square root.
	return T(math.Sqrt(float64(v.LenSq())))
}

// Normalize scales v to unit length in place. A zero vector becomes NaN.
func (v *Real3[T]) Normalize() {
	invlen := 1 / v.Len()
	v.X *= invlen
	v.Y *= invlen
	v.Z *= invlen
}

// IsNaN reports whether any component of v is NaN.
func (v Real3[T]) IsNaN() bool {
	return v.X != v.X || v.Y != v.Y || v.Z != v.Z
}

// Dot returns the dot product of a and b.
func Dot[T Float](a, b Real3[T]) T {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// Cross returns the cross product a × b.
func Cross[T Float](a, b Real3[T]) Real3[T] {
	return Real3[T]{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

// DistanceSq returns the squared distance between a and b.
func DistanceSq[T Float](a, b Real3[T]) T {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return dx*dx + dy*dy + dz*dz
}

// ScalarSize returns the size in bytes of one T.
func ScalarSize[T Float]() int {
	var z T
	return int(unsafe.Sizeof(z))
}

// Stride returns the number of scalars one stored atom occupies:
// 4 for float32 (16 bytes, last scalar is padding) and 3 for float64.
func Stride[T Float]() int {
	if ScalarSize[T]() == 4 {
		return 4
	}
	return 3
}

// StorageSize returns the number of bytes one stored atom occupies.
func StorageSize[T Float]() int {
	return Stride[T]() * ScalarSize[T]()
}
