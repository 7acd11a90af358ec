package assignment

import (
	"github.com/LynnColeArt/confecalc/confspace"
	"github.com/LynnColeArt/confecalc/real3"
)

// Shared holds the lookup tables of an Assignment. For cooperative
// construction they live in block shared memory (see CarveShared).
type Shared[T real3.Float] struct {
	IndexOffsets []int32             // One per position
	AtomPairs    []confspace.TermRef // confspace.NumTermSlots(numPos) slots
	ConfEnergies []T                 // One per position
}

// NewTables allocates tables for numPos positions.
func NewTables[T real3.Float](numPos int) Shared[T] {
	return Shared[T]{
		IndexOffsets: make([]int32, numPos),
		AtomPairs:    make([]confspace.TermRef, confspace.NumTermSlots(numPos)),
		ConfEnergies: make([]T, numPos),
	}
}

// Assignment is the assembled form of one assignment vector: atom
// coordinates for the static atoms and every position, plus the energy
// terms and internal energies that apply. It is read-only once built.
type Assignment[T real3.Float] struct {
	noCopy noCopy

	cs     *confspace.ConfSpace[T]
	conf   []int32
	atoms  real3.Coords[T]
	tables Shared[T]
	owned  bool
}

// New assembles conf over cs into freshly allocated storage owned by the
// Assignment. Close releases it.
func New[T real3.Float](cs *confspace.ConfSpace[T], conf []int32) *Assignment[T] {
	a := NewInto(cs, conf, real3.NewCoords[T](int(cs.MaxNumConfAtoms)), NewTables[T](cs.NumPos))
	a.owned = true
	return a
}

// NewInto assembles conf over cs into caller storage: atoms must hold
// cs.MaxNumConfAtoms atoms and tables must be sized for cs.NumPos
// positions. The Assignment borrows both.
func NewInto[T real3.Float](cs *confspace.ConfSpace[T], conf []int32, atoms real3.Coords[T], tables Shared[T]) *Assignment[T] {
	a := &Assignment[T]{cs: cs, conf: conf, atoms: atoms, tables: tables}
	var zero real3.Real3[T]

	offset := atoms.CopyFrom(cs.StaticAtomCoords, 0)
	tables.AtomPairs[cs.IndexStaticStatic()] = cs.StaticStaticPairs()

	for posi1 := range cs.Positions {
		pos1 := &cs.Positions[posi1]
		tables.IndexOffsets[posi1] = int32(offset)

		n := 0
		if confi1 := conf[posi1]; confi1 >= 0 {
			conf1 := cs.Conf(posi1, confi1)
			n = atoms.CopyFrom(conf1.AtomCoords, offset)
			tables.ConfEnergies[posi1] = conf1.InternalEnergy
			tables.AtomPairs[cs.IndexStaticPos(posi1)] = cs.StaticPosPairs(posi1, conf1.FragIndex)
			tables.AtomPairs[cs.IndexPos(posi1)] = cs.PosPairs(posi1, conf1.FragIndex)
			for posi2 := 0; posi2 < posi1; posi2++ {
				tables.AtomPairs[cs.IndexPosPos(posi1, posi2)] = a.pairTerm(posi1, conf1.FragIndex, posi2)
			}
		} else {
			tables.ConfEnergies[posi1] = 0
			tables.AtomPairs[cs.IndexStaticPos(posi1)] = confspace.NoTerms
			tables.AtomPairs[cs.IndexPos(posi1)] = confspace.NoTerms
			for posi2 := 0; posi2 < posi1; posi2++ {
				tables.AtomPairs[cs.IndexPosPos(posi1, posi2)] = confspace.NoTerms
			}
		}

		atoms.Fill(offset+n, pos1.MaxNumAtoms-n, zero)
		offset += pos1.MaxNumAtoms
	}

	return a
}

// pairTerm returns the term between fragment frag1 at posi1 and whatever
// posi2 holds, or NoTerms when posi2 is unassigned.
func (a *Assignment[T]) pairTerm(posi1 int, frag1 int32, posi2 int) confspace.TermRef {
	confi2 := a.conf[posi2]
	if confi2 < 0 {
		return confspace.NoTerms
	}
	return a.cs.PosPosPairs(posi1, frag1, posi2, a.cs.Conf(posi2, confi2).FragIndex)
}

// Close releases storage the Assignment owns and detaches it from
// borrowed storage. Later calls do nothing. The Assignment must not be
// used afterwards.
func (a *Assignment[T]) Close() {
	if a.cs == nil {
		return
	}
	a.cs = nil
	a.conf = nil
	a.atoms = real3.Coords[T]{}
	a.tables = Shared[T]{}
	a.owned = false
}

// Owned reports whether the Assignment allocated its own storage.
func (a *Assignment[T]) Owned() bool {
	return a.owned
}

// ConfSpace returns the conformation space the assignment refers to.
func (a *Assignment[T]) ConfSpace() *confspace.ConfSpace[T] {
	return a.cs
}

// Conf returns the assignment vector.
func (a *Assignment[T]) Conf() []int32 {
	return a.conf
}

// Atoms returns the assembled coordinates: the static atoms, then one
// block of Pos.MaxNumAtoms atoms per position, zero padded.
func (a *Assignment[T]) Atoms() real3.Coords[T] {
	return a.atoms
}

// Tables returns the lookup tables.
func (a *Assignment[T]) Tables() Shared[T] {
	return a.tables
}

// AtomPairs returns the energy term between posi1 and posi2, either of
// which may be confspace.StaticPos. The order of the arguments does not
// matter.
func (a *Assignment[T]) AtomPairs(posi1, posi2 int) confspace.TermRef {
	return a.tables.AtomPairs[a.cs.Index(posi1, posi2)]
}

// Terms resolves AtomPairs. It returns nil when no term applies.
func (a *Assignment[T]) Terms(posi1, posi2 int) *confspace.AtomPairs {
	return a.cs.Terms(a.AtomPairs(posi1, posi2))
}

// ConfEnergy returns the internal energy of the conformation at posi, or
// zero when posi is unassigned.
func (a *Assignment[T]) ConfEnergy(posi int) T {
	return a.tables.ConfEnergies[posi]
}

// IndexOffset returns the index of the first atom of posi's block.
func (a *Assignment[T]) IndexOffset(posi int) int32 {
	return a.tables.IndexOffsets[posi]
}

// StaticIndex returns the index of static atom atomi.
func (a *Assignment[T]) StaticIndex(atomi int) int64 {
	return int64(atomi)
}

// Index returns the index of atom atomi of the conformation at posi.
func (a *Assignment[T]) Index(posi, atomi int) int64 {
	return int64(a.tables.IndexOffsets[posi]) + int64(atomi)
}

// noCopy may be embedded into structs which must not be copied after
// first use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
