// Package assignment assembles the atoms and energy-term lookup table of
// one conformation assignment.
//
// An Assignment selects one conformation (or none) per design position of
// a confspace.ConfSpace. Construction lays the static atoms and then one
// fixed-size block per position out in a single coordinate buffer, and
// records, for every pair of positions (the static atoms counting as a
// position), which precomputed energy term applies:
//
//	cs := ...                              // *confspace.ConfSpace[float32]
//	a := assignment.New(cs, []int32{0, -1, 1})
//	defer a.Close()
//	terms := a.Terms(2, 0)                 // pairs between positions 2 and 0
//	atom := a.Atoms().At(int(a.Index(2, 0)))
//
// New allocates and owns its storage. NewInto fills caller buffers on the
// calling goroutine. NewShared is the cooperative form: every thread of a
// confecalc.ThreadGroup calls it with the same arguments and shared
// storage, the work is split across ranks, and the tables are complete on
// every thread when it returns. All three produce identical tables and
// coordinates for the same input.
//
// Every slot is written during construction, so tables reused across
// assignments never hold values from an earlier one: positions without a
// conformation get confspace.NoTerms and an energy of zero.
//
// Inputs are trusted. Run external assignment vectors through
// confspace.ValidateConf first.
package assignment
