// Copyright ©2026 The confecalc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package real3 provides the 3-component coordinate type used by every
// energy calculation, in 32-bit and 64-bit precision.
//
// Arithmetic happens on the logical Real3 value. Bulk storage goes through
// Coords, a flat scalar buffer with a fixed per-atom stride: 32-bit atoms
// occupy 16 bytes (one inert padding scalar) so a whole atom moves with a
// single 128-bit transfer, and 64-bit atoms occupy their natural 24 bytes.
//
// Example usage:
//
//	a := real3.New[float32](1, 2, 3)
//	b := real3.FromInts[float32](0, 1, 0)
//	n := real3.Cross(a, b)
//	n.Normalize()
//	if n.IsNaN() {
//		// a and b were parallel
//	}
package real3
