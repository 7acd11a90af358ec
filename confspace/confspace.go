package confspace

import (
	"github.com/LynnColeArt/confecalc/real3"
)

// StaticPos is the position index that stands for "no position" in term
// lookups: Index(StaticPos, p) is the static/position slot of p.
const StaticPos = -1

// Unassigned is the assignment value of a position with no conformation.
// Any negative value means unassigned.
const Unassigned int32 = -1

// TermRef is a handle to an energy term held by a ConfSpace.
type TermRef int32

// NoTerms is the TermRef of a slot that holds no term.
const NoTerms TermRef = -1

// Valid reports whether r refers to a term.
func (r TermRef) Valid() bool {
	return r >= 0
}

// AtomPair is one interacting atom pair and the index of its energy
// parameters in ConfSpace.Params. Atom indices are local to the atom
// blocks the term connects.
type AtomPair struct {
	Atomi1  int32
	Atomi2  int32
	Paramsi int32
}

// AtomPairs is one precomputed energy term: every atom pair of an
// interaction class between two fragments (or within one).
type AtomPairs struct {
	Pairs []AtomPair
}

// Len returns the number of atom pairs in the term.
func (a *AtomPairs) Len() int {
	return len(a.Pairs)
}

// Conf is one candidate conformation at a position.
type Conf[T real3.Float] struct {
	ID             string
	AtomCoords     real3.Coords[T]
	InternalEnergy T
	FragIndex      int32
}

// Pos is a design position and its candidate conformations.
type Pos[T real3.Float] struct {
	Index       int
	Name        string
	MaxNumAtoms int
	NumFrags    int
	Confs       []Conf[T]
}

// NumConfs returns the number of candidate conformations.
func (p *Pos[T]) NumConfs() int {
	return len(p.Confs)
}

// ConfSpace describes everything that does not change between
// assignments: positions, candidate conformations, static atoms and the
// precomputed energy-term tables. It is immutable once built and safe
// for concurrent readers.
type ConfSpace[T real3.Float] struct {
	NumPos          int
	MaxNumConfAtoms int64
	Positions       []Pos[T]

	StaticAtomCoords real3.Coords[T]
	StaticEnergy     T

	// Params holds the energy parameters AtomPair.Paramsi refers to
	Params [][]T

	terms        []AtomPairs
	staticStatic TermRef
	staticPos    [][]TermRef   // [posi][frag]
	pos          [][]TermRef   // [posi][frag]
	posPos       [][][]TermRef // [IndexPosPos-1-2n][frag1][frag2]
}

// NumTermSlots returns the size of the flattened term table for numPos
// positions: one static/static slot, numPos static/position slots,
// numPos position slots and one slot per unordered position pair.
func NumTermSlots(numPos int) int {
	return 1 + 2*numPos + numPos*(numPos-1)/2
}

// NumTermSlots returns the size of the flattened term table.
func (cs *ConfSpace[T]) NumTermSlots() int {
	return NumTermSlots(cs.NumPos)
}

// IndexStaticStatic returns the slot of the static/static term.
func (cs *ConfSpace[T]) IndexStaticStatic() int64 {
	return 0
}

// IndexStaticPos returns the slot of the static/position term of posi.
func (cs *ConfSpace[T]) IndexStaticPos(posi int) int64 {
	return 1 + int64(posi)
}

// IndexPos returns the slot of the position-internal term of posi.
func (cs *ConfSpace[T]) IndexPos(posi int) int64 {
	return 1 + int64(cs.NumPos) + int64(posi)
}

// IndexPosPos returns the slot of the pair term of posi1 and posi2.
// posi1 must be greater than posi2.
func (cs *ConfSpace[T]) IndexPosPos(posi1, posi2 int) int64 {
	p1 := int64(posi1)
	return 1 + 2*int64(cs.NumPos) + p1*(p1-1)/2 + int64(posi2)
}

// Index maps a position pair onto its slot in the flattened term table.
// StaticPos stands in for the static atoms, so Index(StaticPos, StaticPos)
// is the static/static slot, Index(StaticPos, p) and Index(p, StaticPos)
// the static/position slot of p, Index(p, p) the internal slot of p.
// The result is symmetric in its arguments.
func (cs *ConfSpace[T]) Index(posi1, posi2 int) int64 {
	switch {
	case posi1 == posi2:
		if posi1 == StaticPos {
			return cs.IndexStaticStatic()
		}
		return cs.IndexPos(posi1)
	case posi1 == StaticPos:
		return cs.IndexStaticPos(posi2)
	case posi2 == StaticPos:
		return cs.IndexStaticPos(posi1)
	case posi1 > posi2:
		return cs.IndexPosPos(posi1, posi2)
	default:
		return cs.IndexPosPos(posi2, posi1)
	}
}

// Pos returns position posi.
func (cs *ConfSpace[T]) Pos(posi int) *Pos[T] {
	return &cs.Positions[posi]
}

// Conf returns conformation confi at position posi.
func (cs *ConfSpace[T]) Conf(posi int, confi int32) *Conf[T] {
	return &cs.Positions[posi].Confs[confi]
}

// StaticStaticPairs returns the static/static term.
func (cs *ConfSpace[T]) StaticStaticPairs() TermRef {
	return cs.staticStatic
}

// StaticPosPairs returns the term between the static atoms and fragment
// frag at posi.
func (cs *ConfSpace[T]) StaticPosPairs(posi int, frag int32) TermRef {
	return cs.staticPos[posi][frag]
}

// PosPairs returns the internal term of fragment frag at posi.
func (cs *ConfSpace[T]) PosPairs(posi int, frag int32) TermRef {
	return cs.pos[posi][frag]
}

// PosPosPairs returns the term between fragment frag1 at posi1 and
// fragment frag2 at posi2. posi1 must be greater than posi2.
func (cs *ConfSpace[T]) PosPosPairs(posi1 int, frag1 int32, posi2 int, frag2 int32) TermRef {
	return cs.posPos[cs.IndexPosPos(posi1, posi2)-1-2*int64(cs.NumPos)][frag1][frag2]
}

// Terms resolves a term handle. It returns nil for NoTerms.
func (cs *ConfSpace[T]) Terms(ref TermRef) *AtomPairs {
	if !ref.Valid() {
		return nil
	}
	return &cs.terms[ref]
}

// NumTerms returns the number of distinct terms held.
func (cs *ConfSpace[T]) NumTerms() int {
	return len(cs.terms)
}
