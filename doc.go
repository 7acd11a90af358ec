// Copyright ©2019 The Gonum Authors. All rights reserved.
// Copyright ©2026 The confecalc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package confecalc assembles per-conformation inputs for molecular
// energy evaluation inside protein design search.
//
// The root package is the execution runtime: a CPU device described
// with GPU-style limits, grid/block kernel launches, cooperative blocks
// whose goroutines share memory and a barrier, thread groups and tiles,
// occupancy-driven block sizing and alignment helpers.
//
// The subpackages hold the domain:
//   - real3: 32-bit and 64-bit coordinate math and padded coordinate storage
//   - confspace: the conformation space descriptor, its energy-term
//     tables, term-slot flattening and a compressed binary codec
//   - assignment: building the coordinate buffer and energy-term lookup
//     for one assignment of conformations to positions, sequentially or
//     cooperatively inside a thread block
package confecalc
