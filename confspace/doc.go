// Package confspace describes a conformation space: the design
// positions of a molecule, the candidate conformations at each position,
// the static atoms shared by every conformation and the precomputed
// energy terms between them.
//
// Energy terms live in one arena per ConfSpace and are addressed by
// TermRef handles. Per-assignment lookup tables store handles in a flat
// array of NumTermSlots(numPos) slots laid out as
//
//	[0]                      static/static
//	[1, 1+n)                 static/position p
//	[1+n, 1+2n)              position p internal
//	[1+2n, 1+2n+n(n-1)/2)    position pair (p1, p2), p1 > p2, at p1(p1-1)/2 + p2
//
// ConfSpaces are built with a Builder, generated with Random, or
// read with Decode/ReadFile.
package confspace
